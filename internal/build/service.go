package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/telebuild/internal/project"
)

// Projects resolves project names.
type Projects interface {
	Get(name string) (*project.Project, error)
}

// Service manages builds on behalf of users.
type Service struct {
	database Database // required
	storage  Storage  // required
	broker   Broker   // required
	projects Projects // required

	// urlExpires is how long download URLs stay valid.
	urlExpires time.Duration
}

func NewService(database Database, storage Storage, broker Broker, projects Projects) *Service {
	return &Service{
		database:   database,
		storage:    storage,
		broker:     broker,
		projects:   projects,
		urlExpires: 24 * time.Hour,
	}
}

type CreateBuildParams struct {
	UserID   int64
	ChatID   int64
	Project  string
	Platform Platform
}

// CreateBuild queues a build and asks a worker to execute it.
func (s *Service) CreateBuild(ctx context.Context, params *CreateBuildParams) (*Build, error) {
	if _, known := ParsePlatform(string(params.Platform)); !known {
		return nil, fmt.Errorf("build.Service: %w", errors.Join(ErrConfiguration, fmt.Errorf("unknown platform %q", params.Platform)))
	}
	if _, err := s.projects.Get(params.Project); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			err = errors.Join(ErrNotFound, err)
		}
		return nil, fmt.Errorf("build.Service: %w", err)
	}

	b, err := s.database.CreateBuild(ctx, &DatabaseCreateBuildParams{
		ID:       uuid.New(),
		UserID:   params.UserID,
		ChatID:   params.ChatID,
		Project:  params.Project,
		Platform: params.Platform,
	})
	if err != nil {
		return nil, fmt.Errorf("build.Service: %w", err)
	}

	if err = s.broker.SendBuildRequested(ctx, b.ID); err != nil {
		if _, cancelErr := s.database.CancelQueuedBuild(ctx, b.ID); cancelErr != nil {
			slog.Default().Error("didn't cancel unsent build", "build_id", b.ID, "error", cancelErr)
		}
		return nil, fmt.Errorf("build.Service: %w", err)
	}

	return b, nil
}

type GetBuildParams struct {
	ID     uuid.UUID
	UserID int64
}

type GetBuildResult struct {
	Build       *Build
	LogURL      string // empty if there is no log
	ArtifactURL string // empty if there is no artifact
}

// GetBuild returns a build of the user with download URLs for its files.
func (s *Service) GetBuild(ctx context.Context, params *GetBuildParams) (*GetBuildResult, error) {
	b, err := s.getUserBuild(ctx, params.ID, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("build.Service: %w", err)
	}

	result := &GetBuildResult{Build: b}
	if b.LogKey != "" {
		result.LogURL, err = s.storage.DownloadURL(ctx, b.LogKey, s.urlExpires)
		if err != nil {
			return nil, fmt.Errorf("build.Service: %w", err)
		}
	}
	if b.ArtifactKey != "" {
		result.ArtifactURL, err = s.storage.DownloadURL(ctx, b.ArtifactKey, s.urlExpires)
		if err != nil {
			return nil, fmt.Errorf("build.Service: %w", err)
		}
	}

	return result, nil
}

type ListBuildsParams struct {
	UserID int64
	Limit  int // default: 20
	Offset int
}

func (s *Service) ListBuilds(ctx context.Context, params *ListBuildsParams) ([]*Build, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := max(params.Offset, 0)

	builds, err := s.database.ListBuilds(ctx, &DatabaseListBuildsParams{
		UserID: params.UserID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("build.Service: %w", err)
	}
	return builds, nil
}

type CancelBuildParams struct {
	ID     uuid.UUID
	UserID int64
}

// CancelBuild cancels a queued build right away or asks workers to cancel a running one.
// It returns ErrAlreadyDone if the build has a final status.
func (s *Service) CancelBuild(ctx context.Context, params *CancelBuildParams) (*Build, error) {
	b, err := s.getUserBuild(ctx, params.ID, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("build.Service: %w", err)
	}

	if b.Status == StatusQueued {
		canceled, cancelErr := s.database.CancelQueuedBuild(ctx, b.ID)
		if cancelErr == nil {
			return canceled, nil
		}
		if !errors.Is(cancelErr, ErrConflict) {
			return nil, fmt.Errorf("build.Service: %w", cancelErr)
		}
		// A worker took the build in the meantime.
		if b, err = s.database.GetBuild(ctx, b.ID); err != nil {
			return nil, fmt.Errorf("build.Service: %w", err)
		}
	}

	if b.Status.Done() {
		return nil, fmt.Errorf("build.Service: %w", ErrAlreadyDone)
	}

	if err = s.broker.SendBuildCanceled(ctx, b.ID); err != nil {
		return nil, fmt.Errorf("build.Service: %w", err)
	}
	return b, nil
}

func (s *Service) getUserBuild(ctx context.Context, id uuid.UUID, userID int64) (*Build, error) {
	b, err := s.database.GetBuild(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotFound
	}
	return b, nil
}
