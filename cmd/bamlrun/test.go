package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
	"github.com/bamlgo/baml/internal/value"
)

func newTestCmd() *cobra.Command {
	var run bool
	cmd := &cobra.Command{
		Use:   "test <test-name>",
		Short: "Print a declared test case's resolved function and arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			testName := posArgs[0]
			fnName, args, err := baml.GetTestParams(rt, testName)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "function: %s\n", fnName)
			native := make(map[string]any, len(args))
			for k, v := range args {
				native[k] = value.ToNative(v)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(native)

			if !run {
				return nil
			}
			val, outcome, err := baml.CallFunction(cmd.Context(), rt, fnName, args)
			if err != nil {
				return err
			}
			printValue(cmd, val, outcome)
			return nil
		},
	}
	cmd.Flags().BoolVar(&run, "run", false, "also dispatch the test's function call against a live provider")
	return cmd
}
