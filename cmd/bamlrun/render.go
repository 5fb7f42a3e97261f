package main

import (
	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
)

func newRenderCmd() *cobra.Command {
	var argsJSON string
	cmd := &cobra.Command{
		Use:   "render <function>",
		Short: "Render a function's prompt without dispatching it to any client",
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
			rendered, err := baml.RenderPrompt(rt, fnName, args)
			if err != nil {
				return err
			}
			printRendered(cmd, rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&argsJSON, "args", "{}", "JSON object of argument name to value")
	return cmd
}
