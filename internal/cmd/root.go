package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"multiplex/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "multiplex",
		Short: "A terminal multiplexer for parallel agent sessions",
		Long:  "multiplex runs several PTY-backed sessions side by side, tiled or stacked, each optionally in its own git worktree.",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the multiplex version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version.DisplayVersion())
			return nil
		},
	}
}
