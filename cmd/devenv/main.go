// Command devenv is the entry point of the devenv CLI
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/devenvgo/devenv/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.NewCLI(cli.NewConfig()).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
