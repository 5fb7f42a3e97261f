// Package baml re-exports internal/runtime's call surface as the
// project's top-level, consumer-facing API.
package baml

import (
	"context"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/checks"
	"github.com/bamlgo/baml/internal/runtime"
	"github.com/bamlgo/baml/internal/template"
	"github.com/bamlgo/baml/internal/value"
)

// Runtime owns one immutable build of the generated IR plus the client
// registry built from it.
type Runtime = runtime.Runtime

// Live holds a runtime build behind an atomic pointer, for callers using
// Watch to pick up source changes without restarting.
type Live = runtime.Live

// Watcher debounces filesystem changes under a baml_src root and drives
// Live's reloads.
type Watcher = runtime.Watcher

// Diagnostics collects errors/warnings accumulated while building a
// Runtime.
type Diagnostics = bamlerr.Diagnostics

// Value is the dynamic value returned by a function call or test lookup.
type Value = value.Value

// CheckOutcome is the result of evaluating a class's @check/@assert
// constraints against a returned value.
type CheckOutcome = checks.Outcome

// RenderedPrompt is a function's prompt rendered to completion text or a
// chat message list, without being dispatched to any client.
type RenderedPrompt = template.RenderedPrompt

// CallOpts selects among a function's declared {client, prompt} configs
// and optionally overrides which client dispatches the call, mirroring
// spec.md §6's which_config/client_override parameters.
type CallOpts = runtime.CallOpts

// FromDirectory loads every .baml/.json file under root, builds the IR,
// and returns a ready-to-use Runtime.
func FromDirectory(root string, env map[string]string) (*Runtime, *Diagnostics) {
	return runtime.FromDirectory(root, env)
}

// FromFileContent builds a Runtime from an in-memory file set (path ->
// source text) instead of reading from disk.
func FromFileContent(files map[string]string, env map[string]string) (*Runtime, *Diagnostics) {
	return runtime.FromFileContent(files, env)
}

// CallFunction renders fnName's prompt, dispatches it through its client,
// coerces the response into the function's declared output type, and
// evaluates its checks/asserts.
func CallFunction(ctx context.Context, rt *Runtime, fnName string, args map[string]*Value, opts ...CallOpts) (*Value, CheckOutcome, error) {
	return rt.CallFunction(ctx, fnName, args, opts...)
}

// StreamFunction mirrors CallFunction, delivering partial tokens to
// onToken as they arrive and coercing/checking only the final text.
func StreamFunction(ctx context.Context, rt *Runtime, fnName string, args map[string]*Value, onToken func(string), opts ...CallOpts) (*Value, CheckOutcome, error) {
	return rt.StreamFunction(ctx, fnName, args, onToken, opts...)
}

// RenderPrompt renders fnName's prompt without dispatching it to any
// client.
func RenderPrompt(rt *Runtime, fnName string, args map[string]*Value, opts ...CallOpts) (*RenderedPrompt, error) {
	rendered, _, err := rt.RenderPrompt(fnName, args, opts...)
	return rendered, err
}

// GetTestParams returns a declared test case's function name and
// argument values.
func GetTestParams(rt *Runtime, testName string) (fnName string, args map[string]*Value, err error) {
	return rt.GetTestParams(testName)
}

// Watch starts watching root for source changes, rebuilding the IR and
// swapping it into the returned Live on each settled change.
func Watch(ctx context.Context, rt *Runtime, root string, onReload func(*Runtime)) (*Live, *Watcher, error) {
	return rt.Watch(ctx, root, onReload)
}
