package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bamlgo/baml"
	"github.com/bamlgo/baml/internal/template"
	"github.com/bamlgo/baml/internal/value"
)

func printRendered(cmd *cobra.Command, rendered *baml.RenderedPrompt) {
	out := cmd.OutOrStdout()
	if !rendered.IsChat {
		fmt.Fprintln(out, rendered.Completion)
		return
	}
	for _, msg := range rendered.Messages {
		fmt.Fprintf(out, "--- %s ---\n", msg.Role)
		for _, part := range msg.Parts {
			if part.Kind == template.PartText {
				fmt.Fprintln(out, part.Text)
			} else {
				fmt.Fprintf(out, "[media: %s]\n", part.Media.URL+part.Media.Path)
			}
		}
	}
}

func printValue(cmd *cobra.Command, v *value.Value, outcome baml.CheckOutcome) {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(value.ToNative(v))
	if len(outcome.Checks) > 0 || outcome.Assert != nil {
		fmt.Fprintln(out, "--- checks ---")
		for _, c := range outcome.Checks {
			fmt.Fprintf(out, "  failed: %s\n", c.String())
		}
		if outcome.Assert != nil {
			fmt.Fprintf(out, "  assert failed: %s\n", outcome.Assert.String())
		}
	}
}
