package build

import (
	"time"

	"github.com/google/uuid"
)

// Build is a queued or executed build of a project.
type Build struct {
	ID          uuid.UUID
	UserID      int64
	ChatID      int64
	Project     string
	Platform    Platform
	Status      Status
	SessionID   uuid.UUID // zero until the build is running
	SessionRoot string
	ExitCode    int
	Error       string
	LogKey      string
	ArtifactKey string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Status is the status of a Build.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

func ParseStatus(s string) (status Status, known bool) {
	status = Status(s)
	switch status {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled:
		return status, true
	default:
		return status, false
	}
}

// Done reports whether the status is final.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}
