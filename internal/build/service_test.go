package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/telebuild/internal/project"
)

const (
	callCreateBuild       = "CreateBuild"
	callGetBuild          = "GetBuild"
	callListBuilds        = "ListBuilds"
	callStartBuild        = "StartBuild"
	callFinishBuild       = "FinishBuild"
	callCancelQueuedBuild = "CancelQueuedBuild"
)

var _ Database = (*SpyDatabase)(nil)

// SpyDatabase keeps builds in memory and records the calls made to it.
type SpyDatabase struct {
	mu     sync.Mutex
	Builds map[uuid.UUID]*Build
	Calls  []string

	// StartBuildErr is returned by StartBuild if set.
	StartBuildErr error

	// StartBuildHook runs after StartBuild marks a build running.
	StartBuildHook func(b *Build)

	// CancelQueuedBuildHook runs before CancelQueuedBuild changes anything.
	CancelQueuedBuildHook func(b *Build)
}

func NewSpyDatabase(builds ...*Build) *SpyDatabase {
	d := &SpyDatabase{Builds: make(map[uuid.UUID]*Build)}
	for _, b := range builds {
		d.Builds[b.ID] = b
	}
	return d
}

func (d *SpyDatabase) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.Calls)
}

func (d *SpyDatabase) CreateBuild(_ context.Context, params *DatabaseCreateBuildParams) (*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callCreateBuild)

	if _, ok := d.Builds[params.ID]; ok {
		return nil, ErrAlreadyExists
	}
	b := &Build{
		ID:        params.ID,
		UserID:    params.UserID,
		ChatID:    params.ChatID,
		Project:   params.Project,
		Platform:  params.Platform,
		Status:    StatusQueued,
		ExitCode:  -1,
		CreatedAt: time.Now(),
	}
	d.Builds[b.ID] = b
	return clone(b), nil
}

func (d *SpyDatabase) GetBuild(_ context.Context, id uuid.UUID) (*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callGetBuild)

	b, ok := d.Builds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (d *SpyDatabase) ListBuilds(_ context.Context, params *DatabaseListBuildsParams) ([]*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callListBuilds)

	var builds []*Build
	for _, b := range d.Builds {
		if b.UserID == params.UserID {
			builds = append(builds, clone(b))
		}
	}
	return builds, nil
}

func (d *SpyDatabase) StartBuild(_ context.Context, params *DatabaseStartBuildParams) (*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callStartBuild)

	if d.StartBuildErr != nil {
		return nil, d.StartBuildErr
	}
	b, ok := d.Builds[params.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != StatusQueued {
		return nil, ErrConflict
	}
	b.Status = StatusRunning
	b.SessionID = params.SessionID
	b.SessionRoot = params.SessionRoot
	if d.StartBuildHook != nil {
		d.StartBuildHook(clone(b))
	}
	return clone(b), nil
}

func (d *SpyDatabase) FinishBuild(_ context.Context, params *DatabaseFinishBuildParams) (*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callFinishBuild)

	b, ok := d.Builds[params.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status.Done() {
		return nil, ErrConflict
	}
	b.Status = params.Status
	b.ExitCode = params.ExitCode
	b.Error = params.Error
	b.LogKey = params.LogKey
	b.ArtifactKey = params.ArtifactKey
	return clone(b), nil
}

func (d *SpyDatabase) CancelQueuedBuild(_ context.Context, id uuid.UUID) (*Build, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, callCancelQueuedBuild)

	b, ok := d.Builds[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.CancelQueuedBuildHook != nil {
		d.CancelQueuedBuildHook(b)
	}
	if b.Status != StatusQueued {
		return nil, ErrConflict
	}
	b.Status = StatusCanceled
	return clone(b), nil
}

func clone(b *Build) *Build {
	c := *b
	return &c
}

var _ Broker = (*StubBroker)(nil)

type StubBroker struct {
	mu        sync.Mutex
	Err       error
	Requested []uuid.UUID
	Canceled  []uuid.UUID
}

func (b *StubBroker) SendBuildRequested(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Requested = append(b.Requested, id)
	return nil
}

func (b *StubBroker) SendBuildCanceled(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Canceled = append(b.Canceled, id)
	return nil
}

var _ Storage = (*StubStorage)(nil)

// StubStorage keeps uploaded file contents by key.
type StubStorage struct {
	mu    sync.Mutex
	Err   error
	Files map[string]string
}

func (s *StubStorage) UploadFile(_ context.Context, key string, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	if s.Files == nil {
		s.Files = make(map[string]string)
	}
	s.Files[key] = string(data)
	return nil
}

func (s *StubStorage) DownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + key, nil
}

var _ Projects = StubProjects(nil)

// StubProjects maps project names to paths.
type StubProjects map[string]string

func (p StubProjects) Get(name string) (*project.Project, error) {
	path, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("stub: %w", project.ErrNotFound)
	}
	return &project.Project{Name: name, Path: path}, nil
}

func TestServiceCreateBuild(t *testing.T) {
	ctx := context.Background()
	projects := StubProjects{"arcade": "/srv/projects/arcade"}

	tests := []struct {
		name        string
		params      *CreateBuildParams
		brokerErr   error
		wantErr     error
		wantStatus  Status
		wantCalls   []string
		wantRequest bool
	}{
		{
			name:        "queues a build and requests it",
			params:      &CreateBuildParams{UserID: 42, ChatID: 7, Project: "arcade", Platform: PlatformAndroidDevelopment},
			wantStatus:  StatusQueued,
			wantCalls:   []string{callCreateBuild},
			wantRequest: true,
		},
		{
			name:      "doesn't queue a build of an unknown project",
			params:    &CreateBuildParams{UserID: 42, Project: "chess", Platform: PlatformAndroidDevelopment},
			wantErr:   ErrNotFound,
			wantCalls: nil,
		},
		{
			name:      "doesn't queue a build for an unknown platform",
			params:    &CreateBuildParams{UserID: 42, Project: "arcade", Platform: "iOS"},
			wantErr:   ErrConfiguration,
			wantCalls: nil,
		},
		{
			name:       "cancels the build when the request can't be sent",
			params:     &CreateBuildParams{UserID: 42, Project: "arcade", Platform: PlatformAndroidRelease},
			brokerErr:  errors.New("connection refused"),
			wantStatus: StatusCanceled,
			wantCalls:  []string{callCreateBuild, callCancelQueuedBuild},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := NewSpyDatabase()
			broker := &StubBroker{Err: tt.brokerErr}
			service := NewService(database, &StubStorage{}, broker, projects)

			b, err := service.CreateBuild(ctx, tt.params)
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tt.brokerErr == nil && err != nil {
				t.Fatalf("didn't want %q", err)
			}
			if tt.brokerErr != nil && err == nil {
				t.Fatal("got no error, want error")
			}

			if got, want := database.calls(), tt.wantCalls; !slices.Equal(got, want) {
				t.Fatalf("got calls %v, want %v", got, want)
			}
			for _, stored := range database.Builds {
				if got, want := stored.Status, tt.wantStatus; got != want {
					t.Fatalf("got %s, want %s", got, want)
				}
			}
			if tt.wantRequest {
				if got, want := broker.Requested, []uuid.UUID{b.ID}; !slices.Equal(got, want) {
					t.Fatalf("got %v, want %v", got, want)
				}
			}
		})
	}
}

func TestServiceGetBuild(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")

	t.Run("gets a build with download URLs", func(t *testing.T) {
		database := NewSpyDatabase(&Build{
			ID:          id,
			UserID:      42,
			Status:      StatusSucceeded,
			LogKey:      logKey(id),
			ArtifactKey: artifactKey(id, "/tmp/app.apk"),
		})
		service := NewService(database, &StubStorage{}, &StubBroker{}, StubProjects{})

		result, err := service.GetBuild(ctx, &GetBuildParams{ID: id, UserID: 42})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := result.LogURL, "https://storage.example.com/builds/aaaaaaaa-0000-0000-0000-000000000000/build.log"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := result.ArtifactURL, "https://storage.example.com/builds/aaaaaaaa-0000-0000-0000-000000000000/artifact/app.apk"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("doesn't get a build of another user", func(t *testing.T) {
		database := NewSpyDatabase(&Build{ID: id, UserID: 42, Status: StatusQueued})
		service := NewService(database, &StubStorage{}, &StubBroker{}, StubProjects{})

		_, err := service.GetBuild(ctx, &GetBuildParams{ID: id, UserID: 43})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
	})
}

func TestServiceListBuilds(t *testing.T) {
	database := NewSpyDatabase(
		&Build{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), UserID: 42},
		&Build{ID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), UserID: 43},
	)
	service := NewService(database, &StubStorage{}, &StubBroker{}, StubProjects{})

	builds, err := service.ListBuilds(context.Background(), &ListBuildsParams{UserID: 42, Limit: 1000})
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	if got, want := len(builds), 1; got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestServiceCancelBuild(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")

	tests := []struct {
		name         string
		status       Status
		hook         func(b *Build)
		wantErr      error
		wantStatus   Status
		wantCanceled bool
	}{
		{
			name:       "cancels a queued build right away",
			status:     StatusQueued,
			wantStatus: StatusCanceled,
		},
		{
			name:         "asks workers to cancel a running build",
			status:       StatusRunning,
			wantStatus:   StatusRunning,
			wantCanceled: true,
		},
		{
			name:         "asks workers to cancel a build started in the meantime",
			status:       StatusQueued,
			hook:         func(b *Build) { b.Status = StatusRunning },
			wantStatus:   StatusRunning,
			wantCanceled: true,
		},
		{
			name:       "doesn't cancel a build finished in the meantime",
			status:     StatusQueued,
			hook:       func(b *Build) { b.Status = StatusSucceeded },
			wantErr:    ErrAlreadyDone,
			wantStatus: StatusSucceeded,
		},
		{
			name:       "doesn't cancel a done build",
			status:     StatusFailed,
			wantErr:    ErrAlreadyDone,
			wantStatus: StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := NewSpyDatabase(&Build{ID: id, UserID: 42, Status: tt.status})
			database.CancelQueuedBuildHook = tt.hook
			broker := &StubBroker{}
			service := NewService(database, &StubStorage{}, broker, StubProjects{})

			_, err := service.CancelBuild(ctx, &CancelBuildParams{ID: id, UserID: 42})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("didn't want %q", err)
			}

			if got, want := database.Builds[id].Status, tt.wantStatus; got != want {
				t.Fatalf("got %s, want %s", got, want)
			}
			if got, want := len(broker.Canceled) == 1, tt.wantCanceled; got != want {
				t.Fatalf("got canceled %v, want %v", got, want)
			}
		})
	}

	t.Run("doesn't cancel a build of another user", func(t *testing.T) {
		database := NewSpyDatabase(&Build{ID: id, UserID: 42, Status: StatusRunning})
		broker := &StubBroker{}
		service := NewService(database, &StubStorage{}, broker, StubProjects{})

		_, err := service.CancelBuild(ctx, &CancelBuildParams{ID: id, UserID: 43})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("got %v, want ErrNotFound", err)
		}
		if len(broker.Canceled) != 0 {
			t.Fatalf("got %v, want no cancellation", broker.Canceled)
		}
	})
}
