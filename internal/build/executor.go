package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// finishTimeout bounds recording the outcome of a build after its context is done.
const finishTimeout = time.Minute

// Sessions creates and runs sessions that can be canceled by build ID.
// Dispatcher implements it.
type Sessions interface {
	NewSession(req *Request) (*Session, error)
	Reserve(ctx context.Context, key uuid.UUID) (runCtx context.Context, release func(), err error)
	RunSession(ctx context.Context, s *Session) (*Result, error)
	Cancel(key uuid.UUID) bool
}

type ExecutorParams struct {
	Config   *Config      // required, Entry and Secret are used
	Database Database     // required
	Storage  Storage      // required
	Projects Projects     // required
	Sessions Sessions     // required
	Log      *slog.Logger // required
}

// Executor executes queued builds on the worker side.
type Executor struct {
	config   *Config
	database Database
	storage  Storage
	projects Projects
	sessions Sessions
	log      *slog.Logger
}

func NewExecutor(params *ExecutorParams) *Executor {
	return &Executor{
		config:   params.Config,
		database: params.Database,
		storage:  params.Storage,
		projects: params.Projects,
		sessions: params.Sessions,
		log:      params.Log.With("component", "executor"),
	}
}

// Execute runs the session of a queued build and records its outcome.
// Builds that aren't queued are skipped. Session failures are recorded
// on the build and aren't returned.
func (e *Executor) Execute(ctx context.Context, id uuid.UUID) error {
	log := e.log.With("build_id", id)

	b, err := e.database.GetBuild(ctx, id)
	if err != nil {
		return fmt.Errorf("build.Executor: %w", err)
	}
	if b.Status != StatusQueued {
		log.Info("skipped build", "status", b.Status)
		return nil
	}

	req, err := e.request(b)
	if err != nil {
		log.Warn("didn't create request", "error", err)
		return e.finish(ctx, &DatabaseFinishBuildParams{ID: id, Status: StatusFailed, ExitCode: -1, Error: err.Error()})
	}
	s, err := e.sessions.NewSession(req)
	if err != nil {
		return fmt.Errorf("build.Executor: %w", err)
	}

	// The build is cancelable from the moment it becomes running.
	runCtx, release, err := e.sessions.Reserve(ctx, id)
	if err != nil {
		return fmt.Errorf("build.Executor: %w", err)
	}
	defer release()

	_, err = e.database.StartBuild(ctx, &DatabaseStartBuildParams{ID: id, SessionID: s.ID, SessionRoot: s.Root})
	if errors.Is(err, ErrConflict) {
		log.Info("skipped build that is no longer queued")
		return nil
	} else if err != nil {
		return fmt.Errorf("build.Executor: %w", err)
	}
	log.Info("started build", "session_id", s.ID, "project", b.Project, "platform", b.Platform)

	var result *Result
	var runErr error
	if runCtx.Err() != nil {
		runErr = &CanceledError{}
	} else {
		result, runErr = e.sessions.RunSession(runCtx, s)
	}

	// The outcome is recorded even if ctx is done.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()

	params := &DatabaseFinishBuildParams{ID: id, ExitCode: -1}

	if _, statErr := os.Stat(s.LogFile); statErr == nil {
		key := logKey(id)
		if uploadErr := e.storage.UploadFile(ctx, key, s.LogFile); uploadErr != nil {
			log.Error("didn't upload log", "error", uploadErr)
		} else {
			params.LogKey = key
		}
	}

	canceledErr := (*CanceledError)(nil)
	switch {
	case runErr == nil && result.ExitCode == 0:
		key := artifactKey(id, result.ArtifactPath)
		if uploadErr := e.storage.UploadFile(ctx, key, result.ArtifactPath); uploadErr != nil {
			log.Error("didn't upload artifact", "error", uploadErr)
			params.Status = StatusFailed
			params.Error = fmt.Sprintf("upload artifact: %v", uploadErr)
		} else {
			params.Status = StatusSucceeded
			params.ArtifactKey = key
		}
		params.ExitCode = result.ExitCode
	case runErr == nil:
		params.Status = StatusFailed
		params.ExitCode = result.ExitCode
		params.Error = (&ExitError{ExitCode: result.ExitCode}).Error()
	case errors.As(runErr, &canceledErr):
		params.Status = StatusCanceled
		if canceledErr.ProcessState != nil {
			params.ExitCode = canceledErr.ProcessState.ExitCode()
		}
	default:
		params.Status = StatusFailed
		params.Error = runErr.Error()
	}

	log.Info("finished build", "status", params.Status, "exit_code", params.ExitCode)
	return e.finish(ctx, params)
}

// Cancel cancels the session of a running build executed by e.
// It reports whether e was executing the build.
func (e *Executor) Cancel(id uuid.UUID) bool {
	return e.sessions.Cancel(id)
}

func (e *Executor) request(b *Build) (*Request, error) {
	p, err := e.projects.Get(b.Project)
	if err != nil {
		return nil, err
	}
	return NewRequest(&RequestParams{
		ProjectName:   p.Name,
		ProjectPath:   p.Path,
		WorkspacePath: p.WorkspacePath,
		Platform:      b.Platform,
		Entry:         e.config.Entry,
		Secret:        e.config.Secret,
	})
}

func (e *Executor) finish(ctx context.Context, params *DatabaseFinishBuildParams) error {
	if _, err := e.database.FinishBuild(ctx, params); err != nil {
		return fmt.Errorf("build.Executor: %w", err)
	}
	return nil
}
