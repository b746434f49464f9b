package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notefold",
		Short: "A notebook folder and tag organizer",
		Long:  "Notefold — folders, tags, and notebook metadata kept in sync across devices through snapshot replication.",
	}

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
