// Command telebuild runs build sessions on the local machine.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/k11v/telebuild/internal/build"
)

func main() {
	run := func() int {
		var cli CLI
		kctx := kong.Parse(&cli,
			kong.Name("telebuild"),
			kong.Description("Run headless game engine builds of local projects."),
			kong.UsageOnError(),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		kctx.BindTo(ctx, (*context.Context)(nil))

		err := kctx.Run(&cli)
		if err == nil {
			return 0
		}

		exitErr := (*build.ExitError)(nil)
		switch {
		case errors.As(err, &exitErr):
			slog.Error("build failed", "error", err)
			return exitErr.ExitCode
		case errors.Is(err, build.ErrCanceled):
			slog.Info("build canceled")
			return 130
		case errors.Is(err, build.ErrConfiguration):
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		default:
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	os.Exit(run())
}
