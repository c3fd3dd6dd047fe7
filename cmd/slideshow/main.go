// Package main provides the slideshow command-line tool. It renders a
// vertical slideshow video from local files without starting the API server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slideshow",
		Short:         "Render vertical slideshow videos from images and music",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRenderCommand())
	cmd.AddCommand(newTransitionsCommand())
	return cmd
}
