package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	herrors "github.com/bullbot/history/internal/errors"
)

// S3API is the subset of the S3 client used by S3Storage.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Storage keeps snapshots in an S3 bucket or an S3-compatible store.
type S3Storage struct {
	client    S3API
	bucket    string
	attempts  int
	baseDelay time.Duration
}

// S3Config holds connection settings for S3Storage.
type S3Config struct {
	Region string

	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint string

	UsePathStyle bool

	// Attempts is the number of tries per request, at least 1.
	Attempts int

	// BaseDelay is the first retry delay; it doubles on each retry.
	BaseDelay time.Duration
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:    "us-east-1",
		Attempts:  4,
		BaseDelay: 100 * time.Millisecond,
	}
}

// NewS3Storage loads AWS credentials from the environment and connects to bucket.
func NewS3Storage(ctx context.Context, bucket string, cfg S3Config) (*S3Storage, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	s := NewS3StorageWithClient(client, bucket)
	if cfg.Attempts > 0 {
		s.attempts = cfg.Attempts
	}
	if cfg.BaseDelay > 0 {
		s.baseDelay = cfg.BaseDelay
	}
	return s, nil
}

// NewS3StorageWithClient wraps an existing client.
func NewS3StorageWithClient(client S3API, bucket string) *S3Storage {
	defaults := DefaultS3Config()
	return &S3Storage{
		client:    client,
		bucket:    bucket,
		attempts:  defaults.Attempts,
		baseDelay: defaults.BaseDelay,
	}
}

// Put writes data with one PutObject call; S3 replaces whole objects, so
// readers never see a partial snapshot.
func (s *S3Storage) Put(ctx context.Context, objectPath string, data []byte) error {
	if err := validateObjectPath(objectPath); err != nil {
		return err
	}

	err := s.withRetry(ctx, herrors.CodeUploadFailed, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(objectPath),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/x-history-snapshot"),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUploadFailed, objectPath, err)
	}
	return nil
}

// Get reads a whole object. A missing key reports ErrObjectNotFound.
func (s *S3Storage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	if err := validateObjectPath(objectPath); err != nil {
		return nil, err
	}

	var data []byte
	err := s.withRetry(ctx, herrors.CodeDownloadFailed, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		return err
	})
	switch {
	case err == nil:
		return data, nil
	case isS3NotFound(err):
		return nil, ErrObjectNotFound
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, objectPath, err)
	}
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *S3Storage) Delete(ctx context.Context, objectPath string) error {
	if err := validateObjectPath(objectPath); err != nil {
		return err
	}

	err := s.withRetry(ctx, herrors.CodeUploadFailed, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeleteFailed, objectPath, err)
	}
	return nil
}

// Exists reports whether objectPath is present.
func (s *S3Storage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := validateObjectPath(objectPath); err != nil {
		return false, err
	}

	err := s.withRetry(ctx, herrors.CodeDownloadFailed, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectPath),
		})
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case isS3NotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ListObjects returns the sorted keys under prefix.
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// withRetry runs op up to s.attempts times, doubling the delay between
// tries. Failures are classified as storage errors with code; only
// retryable ones are tried again.
func (s *S3Storage) withRetry(ctx context.Context, code string, op func() error) error {
	delay := s.baseDelay
	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = classifyS3Error(code, op())
		if err == nil || !herrors.IsRetryable(err) || attempt >= s.attempts {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// classifyS3Error maps an S3 client error to a storage error. Missing
// objects and context errors are never retryable.
func classifyS3Error(code string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isS3NotFound(err):
		return herrors.NewStorageError(herrors.CodeObjectNotFound, "s3 object not found", err)
	default:
		return herrors.NewStorageError(code, "s3 request failed", err)
	}
}

func isS3NotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
