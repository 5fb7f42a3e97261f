package main

import (
	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
)

func newRunCmd() *cobra.Command {
	var argsJSON, client string
	cmd := &cobra.Command{
		Use:   "run <function>",
		Short: "Render, dispatch, coerce, and check a function call end to end",
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
			val, outcome, err := baml.CallFunction(cmd.Context(), rt, fnName, args, opts...)
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
