package main

import (
	"encoding/json"
	"fmt"

	"github.com/bamlgo/baml"
	"github.com/bamlgo/baml/internal/coerce"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/value"
)

// parseArgs decodes a JSON object of {paramName: jsonValue} and coerces
// each value against fn's declared input type, reusing the same
// JSON-ish coercer the runtime feeds provider responses through: a CLI
// caller's hand-typed JSON is exactly as "loosely formatted" as a model's.
func parseArgs(rt *baml.Runtime, fnName, rawJSON string) (map[string]*value.Value, error) {
	fn, ok := rt.IR.Functions[fnName]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", fnName)
	}
	raw := map[string]json.RawMessage{}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
			return nil, fmt.Errorf("--args must be a JSON object: %w", err)
		}
	}

	paramType := make(map[string]*ir.Param, len(fn.Inputs))
	for i := range fn.Inputs {
		paramType[fn.Inputs[i].Name] = &fn.Inputs[i]
	}

	out := make(map[string]*value.Value, len(fn.Inputs))
	for name, p := range paramType {
		text, ok := raw[name]
		if !ok {
			continue // missing input; CallFunction/coercion downstream reports it if required
		}
		v, err := coerce.CoerceText(string(text), p.Type, rt.IR, coerce.Options{})
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", name, err)
		}
		out[name] = v
	}
	for name := range raw {
		if _, known := paramType[name]; !known {
			return nil, fmt.Errorf("function %q has no input %q", fnName, name)
		}
	}
	return out, nil
}
