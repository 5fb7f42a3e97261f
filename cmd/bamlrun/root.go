package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
)

// rootFlags holds the flag values shared by every subcommand.
var rootFlags struct {
	srcDir string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bamlrun",
		Short:         "Load a baml_src directory and render or run its functions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&rootFlags.srcDir, "src", "baml_src", "path to the baml_src directory")

	root.AddCommand(newRenderCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newStreamCmd())
	root.AddCommand(newTestCmd())
	return root
}

// loadRuntime builds a Runtime from rootFlags.srcDir, printing accumulated
// diagnostics and returning an error if the build failed.
func loadRuntime() (*baml.Runtime, error) {
	rt, diags := baml.FromDirectory(rootFlags.srcDir, nil)
	for _, w := range diags.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w.Error())
	}
	if diags.HasErrors() {
		return nil, diags.Combined()
	}
	return rt, nil
}
