// Package main implements the lva CLI.
// It runs live variable analysis over C# methods and graph descriptions,
// and manages the analysis cache and configuration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/l3aro/go-liveness/cmd/lva/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`lva version {{.Version}}
`)
	commands.RootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.RootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
