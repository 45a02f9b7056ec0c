package build

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var ErrFileTooLarge = errors.New("file too large")

type Storage interface {
	// UploadFile uploads the local file name under key.
	UploadFile(ctx context.Context, key string, name string) error

	// DownloadURL returns a URL the file under key can be downloaded from until it expires.
	DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

func logKey(buildID uuid.UUID) string {
	return path.Join("builds", buildID.String(), "build.log")
}

func artifactKey(buildID uuid.UUID, artifactPath string) string {
	return path.Join("builds", buildID.String(), "artifact", filepath.Base(artifactPath))
}
