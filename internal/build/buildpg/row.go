package buildpg

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/k11v/telebuild/internal/build"
)

type row struct {
	ID          uuid.UUID `db:"id"`
	UserID      int64     `db:"user_id"`
	ChatID      int64     `db:"chat_id"`
	Project     string    `db:"project"`
	Platform    string    `db:"platform"`
	Status      string    `db:"status"`
	SessionID   uuid.UUID `db:"session_id"`
	SessionRoot string    `db:"session_root"`
	ExitCode    int       `db:"exit_code"`
	Error       string    `db:"error"`
	LogKey      string    `db:"log_key"`
	ArtifactKey string    `db:"artifact_key"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func rowToBuild(collectableRow pgx.CollectableRow) (*build.Build, error) {
	collectedRow, err := pgx.RowToStructByName[row](collectableRow)
	if err != nil {
		return nil, fmt.Errorf("row to build: %w", err)
	}

	status, known := build.ParseStatus(collectedRow.Status)
	if !known {
		slog.Default().Warn(
			"unknown status encountered while reading build",
			"status", collectedRow.Status,
			"build_id", collectedRow.ID,
		)
	}
	platform, known := build.ParsePlatform(collectedRow.Platform)
	if !known {
		slog.Default().Warn(
			"unknown platform encountered while reading build",
			"platform", collectedRow.Platform,
			"build_id", collectedRow.ID,
		)
	}

	return &build.Build{
		ID:          collectedRow.ID,
		UserID:      collectedRow.UserID,
		ChatID:      collectedRow.ChatID,
		Project:     collectedRow.Project,
		Platform:    platform,
		Status:      status,
		SessionID:   collectedRow.SessionID,
		SessionRoot: collectedRow.SessionRoot,
		ExitCode:    collectedRow.ExitCode,
		Error:       collectedRow.Error,
		LogKey:      collectedRow.LogKey,
		ArtifactKey: collectedRow.ArtifactKey,
		CreatedAt:   collectedRow.CreatedAt.UTC(),
		UpdatedAt:   collectedRow.UpdatedAt.UTC(),
	}, nil
}
