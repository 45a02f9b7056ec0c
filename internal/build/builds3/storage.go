package builds3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/k11v/telebuild/internal/apps3"
	"github.com/k11v/telebuild/internal/build"
)

var _ build.Storage = (*Storage)(nil)

type Storage struct {
	client  *s3.Client
	presign *s3.PresignClient

	// uploadPartSize should be greater than or equal 5MB.
	// See github.com/aws/aws-sdk-go-v2/feature/s3/manager.
	uploadPartSize int
}

func NewStorage(client *s3.Client) *Storage {
	return &Storage{
		client:         client,
		presign:        s3.NewPresignClient(client),
		uploadPartSize: 10 * 1024 * 1024, // 10MB
	}
}

// UploadFile implements build.Storage.
func (s *Storage) UploadFile(ctx context.Context, key string, name string) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("builds3.Storage: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Default().Error("didn't close uploaded file", "error", closeErr)
		}
	}()

	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = int64(s.uploadPartSize)
	})
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &apps3.BucketName,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		if apiErr := smithy.APIError(nil); errors.As(err, &apiErr) && apiErr.ErrorCode() == "EntityTooLarge" {
			err = errors.Join(build.ErrFileTooLarge, err)
		}
		return fmt.Errorf("builds3.Storage: %w", err)
	}

	err = s3.NewObjectExistsWaiter(s.client).Wait(ctx, &s3.HeadObjectInput{
		Bucket: &apps3.BucketName,
		Key:    &key,
	}, time.Minute)
	if err != nil {
		return fmt.Errorf("builds3.Storage: %w", err)
	}

	return nil
}

// DownloadURL implements build.Storage.
func (s *Storage) DownloadURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &apps3.BucketName,
		Key:    &key,
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("builds3.Storage: %w", err)
	}
	return req.URL, nil
}
