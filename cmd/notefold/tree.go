package main

import (
	"fmt"
	"strings"

	"github.com/notefold/notefold/internal/config"
	"github.com/notefold/notefold/internal/organizer"
	"github.com/spf13/cobra"
)

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print the folder tree",
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

			roots, err := svc.Folders(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range roots {
				printNode(cmd, n)
			}

			tags, err := svc.Tags(cmd.Context())
			if err != nil {
				return err
			}
			if len(tags) > 0 {
				cmd.Println()
				for _, t := range tags {
					cmd.Printf("#%s (%d)\n", t.Name, t.Count)
				}
			}
			return nil
		},
	}
}

func printNode(cmd *cobra.Command, n *organizer.FolderNode) {
	indent := strings.Repeat("  ", n.Depth-1)
	suffix := ""
	if len(n.NotebookIDs) > 0 {
		suffix = fmt.Sprintf(" (%d notebooks)", len(n.NotebookIDs))
	}
	cmd.Printf("%s%s  [%s]%s\n", indent, n.Name, n.ID, suffix)
	for _, c := range n.Children {
		printNode(cmd, c)
	}
}
