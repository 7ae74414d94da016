// provider-check registers stdin/stdout provider executables and runs conformance suites
// against them, recording each run in SQLite.
// Usage:
//
//	provider-check register echo ./bin/echo-provider "Echo stand-in"
//	provider-check run echo --repeat
//	provider-check history echo
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
