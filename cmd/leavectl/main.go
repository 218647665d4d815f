package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sysu-ecnc-dev/leavemaster/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.New().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}
