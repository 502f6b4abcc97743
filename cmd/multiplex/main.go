// Command multiplex is the CLI entry point: a thin wrapper around the
// cobra command tree in internal/cmd.
package main

import (
	"fmt"
	"os"

	"multiplex/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
