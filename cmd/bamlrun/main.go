// bamlrun is a thin CLI harness over the baml package: it loads a
// baml_src directory, then either renders a function's prompt, runs it
// end to end against a live provider, streams it, or prints a declared
// test's resolved arguments. It is a smoke-test tool, not a substitute
// for the project-init/codegen CLI that spec.md §1 keeps out of scope.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
