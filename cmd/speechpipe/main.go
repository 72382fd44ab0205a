// Package main is the entry point for the speechpipe CLI.
//
// Usage:
//
//	speechpipe [flags] <command> [flags]
//
// Commands:
//
//	run     - Run the recipe from --stage (stages 0-4)
//	status  - Show which stages are done for a configuration
//	config  - Print the resolved configuration as a recipe file
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dcshock/speechpipe/cmd/speechpipe/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
