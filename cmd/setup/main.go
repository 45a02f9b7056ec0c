package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/k11v/telebuild/internal/appenv"
	"github.com/k11v/telebuild/internal/apppg"
	"github.com/k11v/telebuild/internal/apps3"
)

type config struct {
	Postgres apppg.Config `envPrefix:"TELEBUILD_POSTGRES_"`
	S3       apps3.Config `envPrefix:"TELEBUILD_S3_"`
}

func main() {
	run := func() int {
		ctx := context.Background()

		environ, err := appenv.Environ(os.Environ(), ".env")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		var cfg config
		if err = env.ParseWithOptions(&cfg, env.Options{Environment: env.ToMap(environ)}); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		slog.Info("migrating postgres")
		if err = apppg.Setup(cfg.Postgres.ConnectionString()); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		slog.Info("creating bucket", "bucket", apps3.BucketName)
		if err = apps3.Setup(ctx, apps3.NewClient(cfg.S3.ConnectionString())); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		return 0
	}
	os.Exit(run())
}
