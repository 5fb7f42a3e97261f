package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
)

func newStreamCmd() *cobra.Command {
	var argsJSON, client string
	cmd := &cobra.Command{
		Use:   "stream <function>",
		Short: "Run a function call with streaming, printing tokens as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			fnName := posArgs[0]
			args, err := parseArgs(rt, fnName, argsJSON)
			if err != nil {
				return err
			}
			var opts []baml.CallOpts
			if client != "" {
				opts = append(opts, baml.CallOpts{ClientOverride: client})
			}
			out := cmd.OutOrStdout()
			onToken := func(tok string) { fmt.Fprint(out, tok) }
			val, outcome, err := baml.StreamFunction(cmd.Context(), rt, fnName, args, onToken, opts...)
			fmt.Fprintln(out)
			if err != nil {
				return err
			}
			printValue(cmd, val, outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "{}", "JSON object of argument name to value")
	cmd.Flags().StringVar(&client, "client", "", "override the function's declared client for this call")
	return cmd
}
