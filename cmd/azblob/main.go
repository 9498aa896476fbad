// Package main is the entry point for the azblob command line tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prn-tf/alexander-azblob/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.Options{}, os.Args[1:])
	stop()
	os.Exit(code)
}
