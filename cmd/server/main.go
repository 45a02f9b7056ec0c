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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k11v/telebuild/internal/access"
	"github.com/k11v/telebuild/internal/appenv"
	"github.com/k11v/telebuild/internal/apppg"
	"github.com/k11v/telebuild/internal/apps3"
	"github.com/k11v/telebuild/internal/auth"
	"github.com/k11v/telebuild/internal/build"
	"github.com/k11v/telebuild/internal/build/buildamqp"
	"github.com/k11v/telebuild/internal/build/buildpg"
	"github.com/k11v/telebuild/internal/build/builds3"
	"github.com/k11v/telebuild/internal/project"
	"github.com/k11v/telebuild/internal/server"
)

const shutdownTimeout = 30 * time.Second

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

		log := newLogger(cfg.Development)
		slog.SetDefault(log)

		db, err := apppg.NewPool(ctx, cfg.Postgres.ConnectionString())
		if err != nil {
			log.Error("didn't create postgres pool", "error", err)
			return 1
		}
		defer db.Close()

		checker, err := access.NewChecker(&cfg.Access)
		if err != nil {
			log.Error("didn't create access checker", "error", err)
			return 1
		}

		verificationKey, err := auth.ReadVerificationKeyFile(cfg.Auth.VerificationKeyFile)
		if err != nil {
			log.Error("didn't read verification key", "error", err)
			return 1
		}

		projects := project.NewLister(&cfg.Projects)
		service := build.NewService(
			buildpg.NewDatabase(db),
			builds3.NewStorage(apps3.NewClient(cfg.S3.ConnectionString())),
			buildamqp.NewBroker(cfg.AMQP.ConnectionString()),
			projects,
		)

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv := server.New(&server.Params{
			Config:   &cfg.Server,
			Log:      log,
			Service:  service,
			Projects: projects,
			Checker:  checker,
			Verifier: auth.NewVerifier(verificationKey),
			Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		})

		shutdownDone := make(chan struct{})
		go func() {
			defer close(shutdownDone)
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Error("didn't shut down server", "error", shutdownErr)
			}
		}()

		log.Info("starting server", "addr", srv.Addr)
		err = srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("didn't serve", "error", err)
			return 1
		}

		<-shutdownDone
		log.Info("stopped server")
		return 0
	}
	os.Exit(run())
}

func newLogger(development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}
