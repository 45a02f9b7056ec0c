package build

import (
	"context"

	"github.com/google/uuid"
)

type Broker interface {
	// SendBuildRequested asks a worker to execute a queued build.
	SendBuildRequested(ctx context.Context, id uuid.UUID) error

	// SendBuildCanceled tells every worker to cancel a running build.
	SendBuildCanceled(ctx context.Context, id uuid.UUID) error
}
