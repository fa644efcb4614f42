package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/plugincheck/internal/cli"
	"github.com/harun/plugincheck/pkg/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Violations were already printed one per line.
		if !errors.Is(err, report.ErrValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
