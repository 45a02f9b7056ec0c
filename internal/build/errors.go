package build

import (
	"errors"
	"fmt"
	"os"
)

// Session error kinds. They are joined with the underlying error
// and should be tested with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrSpawn         = errors.New("spawn error")
	ErrCanceled      = errors.New("canceled")
	ErrOutputLoad    = errors.New("output load error")
	ErrIO            = errors.New("io error")
)

// Job error kinds.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrAlreadyDone   = errors.New("already done")
	ErrConflict      = errors.New("conflict")
)

// CanceledError is returned when a session is canceled while the build tool is running.
// ProcessState is the state of the killed and reaped child.
type CanceledError struct {
	ProcessState *os.ProcessState
}

func (e *CanceledError) Error() string {
	return "session canceled"
}

func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

// ExitError is returned when the build tool exits with a non-zero code.
type ExitError struct {
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code is %d", e.ExitCode)
}
