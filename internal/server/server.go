package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
)

type Params struct {
	Config   *Config      // required
	Log      *slog.Logger // required
	Service  Service      // required
	Projects Projects     // required
	Checker  Checker      // required
	Verifier Verifier     // required
	Metrics  http.Handler // optional, served at /metrics
}

// New returns a new HTTP server.
// It should be started with http.Server's ListenAndServe.
func New(params *Params) *http.Server {
	cfg := params.Config
	addr := net.JoinHostPort(cfg.host(), strconv.Itoa(cfg.port()))

	subLogger := params.Log.With("component", "server")
	subLogLogger := slog.NewLogLogger(subLogger.Handler(), slog.LevelError)

	h := newHandler(subLogger, params.Service, params.Projects, params.Checker, params.Verifier, params.Metrics)

	return &http.Server{
		Addr:              addr,
		ErrorLog:          subLogLogger,
		Handler:           h,
		ReadHeaderTimeout: cfg.readHeaderTimeout(),
	}
}
