package apps3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BucketName is the bucket build logs and artifacts are uploaded to.
// It is a variable so its address can be passed in S3 inputs.
var BucketName = "telebuild"

// bucketWaitTimeout bounds how long Setup waits for a created bucket to appear.
const bucketWaitTimeout = time.Minute

// Setup creates the bucket unless it already exists.
// Running it again against a set up storage does nothing.
func Setup(ctx context.Context, client *s3.Client) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &BucketName})
	if err == nil {
		return nil
	}
	if notFoundErr := (*types.NotFound)(nil); !errors.As(err, &notFoundErr) {
		return fmt.Errorf("apps3.Setup: head bucket %s: %w", BucketName, err)
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &BucketName})
	// Another setup may have created the bucket after HeadBucket.
	if ownedErr := (*types.BucketAlreadyOwnedByYou)(nil); err != nil && !errors.As(err, &ownedErr) {
		return fmt.Errorf("apps3.Setup: create bucket %s: %w", BucketName, err)
	}

	waiter := s3.NewBucketExistsWaiter(client)
	if err = waiter.Wait(ctx, &s3.HeadBucketInput{Bucket: &BucketName}, bucketWaitTimeout); err != nil {
		return fmt.Errorf("apps3.Setup: wait for bucket %s: %w", BucketName, err)
	}
	return nil
}
