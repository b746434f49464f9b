package main

import (
	"github.com/notefold/notefold/internal/config"
	"github.com/spf13/cobra"
)

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv NOTEBOOK [FOLDER]",
		Short: "Move a notebook into a folder (default folder when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, _, database, err := newService(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			folderID := ""
			if len(args) == 2 {
				folderID = args[1]
			}
			if err := svc.MoveNotebook(cmd.Context(), args[0], folderID); err != nil {
				return err
			}
			meta, err := svc.NotebookMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("notebook %s now in %v\n", args[0], meta.FolderIDs)
			return nil
		},
	}
}
