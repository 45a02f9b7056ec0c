package buildpg

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/k11v/telebuild/internal/apppg"
	"github.com/k11v/telebuild/internal/build"
)

func NewTestDatabase(tb testing.TB, ctx context.Context) *Database {
	tb.Helper()

	if testing.Short() {
		tb.Skip("skipping in short mode")
	}

	username := "postgres"
	password := "postgres"

	req := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     username,
				"POSTGRES_PASSWORD": password,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	}

	c, err := testcontainers.GenericContainer(ctx, req)
	testcontainers.CleanupContainer(tb, c)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	connectionString := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable", username, password, host, port.Port())

	if err = apppg.Setup(connectionString); err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	pool, err := apppg.NewPool(ctx, connectionString)
	if err != nil {
		tb.Fatalf("didn't want %q", err)
	}
	tb.Cleanup(pool.Close)

	return NewDatabase(pool)
}

func TestDatabase(t *testing.T) {
	ctx := context.Background()
	database := NewTestDatabase(t, ctx)

	createBuild := func(t *testing.T, userID int64) *build.Build {
		t.Helper()
		b, err := database.CreateBuild(ctx, &build.DatabaseCreateBuildParams{
			ID:       uuid.New(),
			UserID:   userID,
			ChatID:   -100,
			Project:  "arcade",
			Platform: build.PlatformAndroidRelease,
		})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		return b
	}

	t.Run("creates and gets a build", func(t *testing.T) {
		b := createBuild(t, 1)

		if got, want := b.Status, build.StatusQueued; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}

		got, err := database.GetBuild(ctx, b.ID)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if want := b; !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	})

	t.Run("doesn't create a build twice", func(t *testing.T) {
		b := createBuild(t, 1)

		_, err := database.CreateBuild(ctx, &build.DatabaseCreateBuildParams{
			ID:       b.ID,
			UserID:   1,
			Project:  "arcade",
			Platform: build.PlatformAndroidRelease,
		})
		if !errors.Is(err, build.ErrAlreadyExists) {
			t.Fatalf("got %v, want %v", err, build.ErrAlreadyExists)
		}
	})

	t.Run("doesn't get a missing build", func(t *testing.T) {
		_, err := database.GetBuild(ctx, uuid.New())
		if !errors.Is(err, build.ErrNotFound) {
			t.Fatalf("got %v, want %v", err, build.ErrNotFound)
		}
	})

	t.Run("starts and finishes a build", func(t *testing.T) {
		b := createBuild(t, 2)
		sessionID := uuid.Must(uuid.NewV7())

		started, err := database.StartBuild(ctx, &build.DatabaseStartBuildParams{
			ID:          b.ID,
			SessionID:   sessionID,
			SessionRoot: "/projects/arcade/.telebuild/" + sessionID.String(),
		})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := started.Status, build.StatusRunning; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := started.SessionID, sessionID; got != want {
			t.Fatalf("got %v, want %v", got, want)
		}

		finished, err := database.FinishBuild(ctx, &build.DatabaseFinishBuildParams{
			ID:          b.ID,
			Status:      build.StatusSucceeded,
			ExitCode:    0,
			LogKey:      "builds/x/build.log",
			ArtifactKey: "builds/x/artifact/app.apk",
		})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := finished.Status, build.StatusSucceeded; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got, want := finished.ArtifactKey, "builds/x/artifact/app.apk"; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}

		_, err = database.FinishBuild(ctx, &build.DatabaseFinishBuildParams{ID: b.ID, Status: build.StatusFailed})
		if !errors.Is(err, build.ErrConflict) {
			t.Fatalf("got %v, want %v", err, build.ErrConflict)
		}
	})

	t.Run("doesn't start a canceled build", func(t *testing.T) {
		b := createBuild(t, 3)

		if _, err := database.CancelQueuedBuild(ctx, b.ID); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		_, err := database.StartBuild(ctx, &build.DatabaseStartBuildParams{ID: b.ID, SessionID: uuid.New()})
		if !errors.Is(err, build.ErrConflict) {
			t.Fatalf("got %v, want %v", err, build.ErrConflict)
		}
		_, err = database.CancelQueuedBuild(ctx, uuid.New())
		if !errors.Is(err, build.ErrNotFound) {
			t.Fatalf("got %v, want %v", err, build.ErrNotFound)
		}
	})

	t.Run("lists builds of a user newest first", func(t *testing.T) {
		first := createBuild(t, 4)
		second := createBuild(t, 4)
		_ = createBuild(t, 5)

		builds, err := database.ListBuilds(ctx, &build.DatabaseListBuildsParams{UserID: 4, Limit: 10})
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := len(builds), 2; got != want {
			t.Fatalf("got %d builds, want %d", got, want)
		}
		if got, want := builds[0].ID, second.ID; got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
		if got, want := builds[1].ID, first.ID; got != want {
			t.Fatalf("got %v, want %v", got, want)
		}
	})
}
