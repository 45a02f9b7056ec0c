package build

import (
	"context"

	"github.com/google/uuid"
)

type Database interface {
	CreateBuild(ctx context.Context, params *DatabaseCreateBuildParams) (*Build, error)
	GetBuild(ctx context.Context, id uuid.UUID) (*Build, error)
	ListBuilds(ctx context.Context, params *DatabaseListBuildsParams) ([]*Build, error)

	// StartBuild moves a queued build to running.
	// It returns ErrConflict if the build isn't queued.
	StartBuild(ctx context.Context, params *DatabaseStartBuildParams) (*Build, error)

	// FinishBuild moves a queued or running build to a final status.
	// It returns ErrConflict if the build is already done.
	FinishBuild(ctx context.Context, params *DatabaseFinishBuildParams) (*Build, error)

	// CancelQueuedBuild moves a queued build to canceled.
	// It returns ErrConflict if the build isn't queued.
	CancelQueuedBuild(ctx context.Context, id uuid.UUID) (*Build, error)
}

type DatabaseCreateBuildParams struct {
	ID       uuid.UUID
	UserID   int64
	ChatID   int64
	Project  string
	Platform Platform
}

type DatabaseListBuildsParams struct {
	UserID int64
	Limit  int
	Offset int
}

type DatabaseStartBuildParams struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	SessionRoot string
}

type DatabaseFinishBuildParams struct {
	ID          uuid.UUID
	Status      Status
	ExitCode    int
	Error       string
	LogKey      string
	ArtifactKey string
}
