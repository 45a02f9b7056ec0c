package buildpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/k11v/telebuild/internal/build"
)

var _ build.Database = (*Database)(nil)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Database struct {
	db Querier // required
}

func NewDatabase(db Querier) *Database {
	return &Database{db: db}
}

const buildColumns = `
	id, user_id, chat_id, project, platform, status,
	session_id, session_root, exit_code, error, log_key, artifact_key,
	created_at, updated_at
`

// CreateBuild implements build.Database.
func (d *Database) CreateBuild(ctx context.Context, params *build.DatabaseCreateBuildParams) (*build.Build, error) {
	query := `
		INSERT INTO builds (id, user_id, chat_id, project, platform, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING` + buildColumns
	args := []any{params.ID, params.UserID, params.ChatID, params.Project, string(params.Platform), string(build.StatusQueued)}

	rows, _ := d.db.Query(ctx, query, args...)
	b, err := pgx.CollectExactlyOneRow(rows, rowToBuild)
	if err != nil {
		if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			err = errors.Join(build.ErrAlreadyExists, err)
		}
		return nil, fmt.Errorf("buildpg.Database: create build: %w", err)
	}

	return b, nil
}

// GetBuild implements build.Database.
func (d *Database) GetBuild(ctx context.Context, id uuid.UUID) (*build.Build, error) {
	query := `SELECT` + buildColumns + `FROM builds WHERE id = $1`
	args := []any{id}

	rows, _ := d.db.Query(ctx, query, args...)
	b, err := pgx.CollectExactlyOneRow(rows, rowToBuild)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("buildpg.Database: get build: %w", build.ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("buildpg.Database: get build: %w", err)
	}

	return b, nil
}

// ListBuilds implements build.Database.
func (d *Database) ListBuilds(ctx context.Context, params *build.DatabaseListBuildsParams) ([]*build.Build, error) {
	query := `
		SELECT` + buildColumns + `
		FROM builds
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2
		OFFSET $3
	`
	args := []any{params.UserID, params.Limit, params.Offset}

	rows, _ := d.db.Query(ctx, query, args...)
	builds, err := pgx.CollectRows(rows, rowToBuild)
	if err != nil {
		return nil, fmt.Errorf("buildpg.Database: list builds: %w", err)
	}

	return builds, nil
}

// StartBuild implements build.Database.
func (d *Database) StartBuild(ctx context.Context, params *build.DatabaseStartBuildParams) (*build.Build, error) {
	query := `
		UPDATE builds
		SET status = $2, session_id = $3, session_root = $4, updated_at = now()
		WHERE id = $1 AND status = $5
		RETURNING` + buildColumns
	args := []any{params.ID, string(build.StatusRunning), params.SessionID, params.SessionRoot, string(build.StatusQueued)}

	b, err := d.update(ctx, params.ID, query, args)
	if err != nil {
		return nil, fmt.Errorf("buildpg.Database: start build: %w", err)
	}
	return b, nil
}

// FinishBuild implements build.Database.
func (d *Database) FinishBuild(ctx context.Context, params *build.DatabaseFinishBuildParams) (*build.Build, error) {
	query := `
		UPDATE builds
		SET status = $2, exit_code = $3, error = $4, log_key = $5, artifact_key = $6, updated_at = now()
		WHERE id = $1 AND status IN ($7, $8)
		RETURNING` + buildColumns
	args := []any{
		params.ID, string(params.Status), params.ExitCode, params.Error, params.LogKey, params.ArtifactKey,
		string(build.StatusQueued), string(build.StatusRunning),
	}

	b, err := d.update(ctx, params.ID, query, args)
	if err != nil {
		return nil, fmt.Errorf("buildpg.Database: finish build: %w", err)
	}
	return b, nil
}

// CancelQueuedBuild implements build.Database.
func (d *Database) CancelQueuedBuild(ctx context.Context, id uuid.UUID) (*build.Build, error) {
	query := `
		UPDATE builds
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3
		RETURNING` + buildColumns
	args := []any{id, string(build.StatusCanceled), string(build.StatusQueued)}

	b, err := d.update(ctx, id, query, args)
	if err != nil {
		return nil, fmt.Errorf("buildpg.Database: cancel queued build: %w", err)
	}
	return b, nil
}

// update runs a conditional update of one build.
// When no row is updated, it tells a missing build from a build in another status.
func (d *Database) update(ctx context.Context, id uuid.UUID, query string, args []any) (*build.Build, error) {
	rows, _ := d.db.Query(ctx, query, args...)
	b, err := pgx.CollectExactlyOneRow(rows, rowToBuild)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := d.GetBuild(ctx, id); errors.Is(getErr, build.ErrNotFound) {
			return nil, build.ErrNotFound
		}
		return nil, build.ErrConflict
	} else if err != nil {
		return nil, err
	}
	return b, nil
}
