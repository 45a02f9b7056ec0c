package build

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	settingsFileName = "settings.json"
	outputFileName   = "output.json"
	logFileName      = "android_build.log"
)

// Session is one build attempt.
// Its root directory is derived from a fresh time-ordered identifier
// and is never reused.
type Session struct {
	ID        uuid.UUID
	Request   *Request
	CreatedAt time.Time

	// RelRoot is the session root relative to the project path.
	// It is what the build tool receives.
	RelRoot string

	Root         string
	LogDir       string
	SettingsFile string
	OutputFile   string
	LogFile      string

	mu    sync.Mutex
	state State
	err   error
}

func newSession(req *Request, rootBase, logDir string) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	relRoot := filepath.Join(rootBase, id.String())
	root := filepath.Join(req.ProjectPath(), relRoot)
	logDirPath := filepath.Join(root, logDir)

	return &Session{
		ID:           id,
		Request:      req,
		CreatedAt:    time.Now().UTC(),
		RelRoot:      relRoot,
		Root:         root,
		LogDir:       logDirPath,
		SettingsFile: filepath.Join(root, settingsFileName),
		OutputFile:   filepath.Join(root, outputFileName),
		LogFile:      filepath.Join(logDirPath, logFileName),
		state:        StateCreated,
	}, nil
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error the session failed with, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanTransition(to) {
		return &transitionError{From: s.state, To: to}
	}
	s.state = to
	return nil
}

// fail moves the session to StateFailed or StateCanceled and records err.
// It returns err so it can be used in return statements.
func (s *Session) fail(to State, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CanTransition(to) {
		s.state = to
		s.err = err
	}
	return err
}
