package main

import (
	"github.com/notefold/notefold/internal/config"
	"github.com/spf13/cobra"
)

func newMkdirCmd() *cobra.Command {
	var parent, color string
	cmd := &cobra.Command{
		Use:   "mkdir NAME",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
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

			f, err := svc.CreateFolder(cmd.Context(), args[0], parent, color)
			if err != nil {
				return err
			}
			cmd.Printf("created folder %s [%s]\n", f.Name, f.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent folder id (omit for a root folder)")
	cmd.Flags().StringVar(&color, "color", "", "display color")
	return cmd
}
