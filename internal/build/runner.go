package build

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// stderrGrace is how long the runner keeps reading stderr after the build tool is gone.
const stderrGrace = time.Second

// Result is the outcome of a session whose completion report was loaded.
type Result struct {
	SessionID    uuid.UUID
	LogPath      string // absolute, empty if the log isn't persisted
	ArtifactPath string // absolute
	Platform     Platform
	ExitCode     int
}

// Observer is notified about every session that reaches a terminal state.
type Observer interface {
	ObserveSession(platform Platform, state State, duration time.Duration)
}

type RunnerParams struct {
	Config   *Config      // required
	Log      *slog.Logger // required
	Console  io.Writer    // optional, defaults to os.Stdout
	Observer Observer     // optional
}

// Runner runs build sessions. It is safe for concurrent use.
type Runner struct {
	config   *Config
	launcher *Launcher
	log      *slog.Logger
	console  io.Writer
	observer Observer
}

// NewRunner returns a Runner. A missing binary is reported as ErrConfiguration.
func NewRunner(params *RunnerParams) (*Runner, error) {
	if params.Config.Bin == "" {
		return nil, fmt.Errorf("build.NewRunner: %w", errors.Join(ErrConfiguration, errors.New("missing binary")))
	}

	console := params.Console
	if console == nil {
		console = os.Stdout
	}

	return &Runner{
		config:   params.Config,
		launcher: &Launcher{Bin: params.Config.Bin, Env: params.Config.Env},
		log:      params.Log.With("component", "runner"),
		console:  console,
		observer: params.Observer,
	}, nil
}

// NewSession mints a session for req without touching the filesystem.
func (r *Runner) NewSession(req *Request) (*Session, error) {
	s, err := newSession(req, r.config.root(), r.config.logDir())
	if err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}
	return s, nil
}

// Run mints a session for req and runs it.
func (r *Runner) Run(ctx context.Context, req *Request) (*Result, *Session, error) {
	s, err := r.NewSession(req)
	if err != nil {
		return nil, nil, err
	}
	result, err := r.RunSession(ctx, s)
	return result, s, err
}

// RunSession runs s until the build tool exits or ctx is done.
//
// It writes the settings, spawns the build tool, routes its output,
// and loads the completion report after the build tool exits. If ctx is
// done first, the build tool is killed and a CanceledError is returned.
// A session can be run only once.
func (r *Runner) RunSession(ctx context.Context, s *Session) (*Result, error) {
	log := r.log.With("session_id", s.ID, "project", s.Request.ProjectName())
	start := time.Now()
	defer func() {
		if state := s.State(); r.observer != nil && state.Terminal() {
			r.observer.ObserveSession(s.Request.Platform(), state, time.Since(start))
		}
	}()

	if state := s.State(); state != StateCreated {
		return nil, fmt.Errorf("build.Runner: %w", &transitionError{From: state, To: StateSettingsWritten})
	}

	destination, err := r.config.destination(s.Request.Platform())
	if err != nil {
		return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", err))
	}
	err = WriteSettings(s, &Settings{
		Platform:    s.Request.Platform(),
		Secret:      s.Request.Secret(),
		Destination: destination,
	})
	if err != nil {
		return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", err))
	}
	if err = s.transition(StateSettingsWritten); err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}

	behaviour := r.config.logBehaviour()
	var logFile io.Writer
	if behaviour.Persists() {
		f, createErr := os.Create(s.LogFile)
		if createErr != nil {
			return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", errors.Join(ErrIO, createErr)))
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				log.Error("didn't close log file", "error", closeErr)
			}
		}()
		logFile = f
	}

	p, err := r.launcher.Start(s)
	if err != nil {
		return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", err))
	}
	if err = s.transition(StateSpawned); err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}
	log.Info("spawned build tool", "pid", p.cmd.Process.Pid, "session_root", s.Root)

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		logLines(log, p.stderr)
	}()

	if err = s.transition(StateRunning); err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}
	router := &LogRouter{Behaviour: behaviour, Console: r.console, File: logFile}
	state, err := p.supervise(ctx, func(stdout *os.File) error { return router.Route(stdout) })

	select {
	case <-stderrDone:
	case <-time.After(stderrGrace):
	}
	_ = p.stderr.Close()

	if err != nil {
		if errors.Is(err, ErrCanceled) {
			log.Info("canceled session")
			return nil, s.fail(StateCanceled, fmt.Errorf("build.Runner: %w", err))
		}
		return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", err))
	}
	if err = s.transition(StateCompleted); err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}
	log.Info("build tool exited", "exit_code", state.ExitCode())

	output, err := LoadOutput(s)
	if err != nil {
		return nil, s.fail(StateFailed, fmt.Errorf("build.Runner: %w", err))
	}
	if err = s.transition(StateOutputLoaded); err != nil {
		return nil, fmt.Errorf("build.Runner: %w", err)
	}

	result := &Result{
		SessionID:    s.ID,
		ArtifactPath: output.ArtifactPath,
		Platform:     output.Platform,
		ExitCode:     state.ExitCode(),
	}
	if behaviour.Persists() {
		result.LogPath = s.LogFile
	}
	return result, nil
}

// logLines logs every line of r until it is exhausted or closed.
func logLines(log *slog.Logger, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.Warn("build tool stderr", "line", scanner.Text())
	}
	if scanner.Err() != nil {
		// Keep the pipe drained so the build tool never blocks on stderr.
		_, _ = io.Copy(io.Discard, r)
	}
}
