package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k11v/telebuild/internal/appenv"
	"github.com/k11v/telebuild/internal/apppg"
	"github.com/k11v/telebuild/internal/apps3"
	"github.com/k11v/telebuild/internal/build"
	"github.com/k11v/telebuild/internal/build/buildamqp"
	"github.com/k11v/telebuild/internal/build/buildpg"
	"github.com/k11v/telebuild/internal/build/builds3"
	"github.com/k11v/telebuild/internal/buildmetrics"
	"github.com/k11v/telebuild/internal/project"
)

// config holds the application configuration.
type config struct {
	Development bool             `env:"TELEBUILD_DEVELOPMENT"`
	AMQP        buildamqp.Config `envPrefix:"TELEBUILD_AMQP_"`
	Build       build.Config     `envPrefix:"TELEBUILD_BUILD_"`
	Postgres    apppg.Config     `envPrefix:"TELEBUILD_POSTGRES_"`
	Projects    project.Config   `envPrefix:"TELEBUILD_PROJECTS_"`
	S3          apps3.Config     `envPrefix:"TELEBUILD_S3_"`
	Worker      workerConfig     `envPrefix:"TELEBUILD_WORKER_"`
}

type workerConfig struct {
	Concurrency int `env:"CONCURRENCY"` // default: 1

	// MetricsAddr is where /metrics is served. Metrics aren't served if it is empty.
	MetricsAddr string `env:"METRICS_ADDR"`
}

// parseConfig parses the application configuration from the environment variables.
func parseConfig(environ []string) (*config, error) {
	var cfg config

	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func main() {
	run := func() int {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		environ, err := appenv.Environ(os.Environ(), ".env")
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		cfg, err := parseConfig(environ)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}

		var log *slog.Logger
		if cfg.Development {
			log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			log = slog.New(slog.NewJSONHandler(os.Stderr, nil))
		}
		slog.SetDefault(log)

		db, err := apppg.NewPool(ctx, cfg.Postgres.ConnectionString())
		if err != nil {
			log.Error("didn't create postgres pool", "error", err)
			return 1
		}
		defer db.Close()

		reg := prometheus.NewRegistry()
		runner, err := build.NewRunner(&build.RunnerParams{
			Config:   &cfg.Build,
			Log:      log,
			Observer: buildmetrics.NewRecorder(reg),
		})
		if err != nil {
			log.Error("didn't create runner", "error", err)
			return 1
		}

		executor := build.NewExecutor(&build.ExecutorParams{
			Config:   &cfg.Build,
			Database: buildpg.NewDatabase(db),
			Storage:  builds3.NewStorage(apps3.NewClient(cfg.S3.ConnectionString())),
			Projects: project.NewLister(&cfg.Projects),
			Sessions: build.NewDispatcher(runner),
			Log:      log,
		})

		if addr := cfg.Worker.MetricsAddr; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			metricsServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					log.Error("didn't serve metrics", "error", serveErr)
				}
			}()
			defer func() {
				if closeErr := metricsServer.Close(); closeErr != nil {
					log.Error("didn't close metrics server", "error", closeErr)
				}
			}()
		}

		worker := &Worker{
			ConnectionString: cfg.AMQP.ConnectionString(),
			Concurrency:      cfg.Worker.Concurrency,
			Executor:         executor,
			Log:              log.With("component", "worker"),
		}

		log.Info("starting worker")
		if err = worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("didn't run worker", "error", err)
			return 1
		}

		log.Info("stopped worker")
		return 0
	}
	os.Exit(run())
}
