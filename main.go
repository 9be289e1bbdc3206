package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lakshaymaurya-felt/macmole/cmd"
)

// Set by the release build with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mm:", err)
		stop()
		os.Exit(1)
	}
}
