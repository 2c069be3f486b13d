package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agbru/fibnet/internal/app"
	apperrors "github.com/agbru/fibnet/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := app.New().Run(ctx, os.Args[1:])
	stop()

	if err != nil && !app.IsReported(err) && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(apperrors.ExitCode(err))
}
