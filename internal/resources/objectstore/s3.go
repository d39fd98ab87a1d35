// Package objectstore is the C13 object storage client: a narrow capability
// interface over S3-compatible storage (aws-sdk-go-v2/service/s3), keyed by
// resource UUID rather than content hash. Adapted from the teacher's
// content-addressed S3Store (pkg/artifacts/s3_store.go): resources here
// aren't deduplicated by content, so the hash-prefixed key scheme is
// replaced with resource_id-as-key, and a presigned-PUT path is added for
// the two-phase client-direct upload spec §4.10 describes — the teacher's
// store never needed that since it pushes bytes server-side itself.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

// Store is the narrow capability interface resource handling needs: get,
// stat, remove, confirm the bucket exists, and presign a direct-upload PUT.
// Kept separate from a generic blob-store interface (SPEC_FULL.md §9) since
// nothing else in this domain needs a wider one.
type Store interface {
	KeyFor(resourceID uuid.UUID) string
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (exists bool, size int64, err error)
	RemoveObject(ctx context.Context, key string) error
	BucketExists(ctx context.Context) (bool, error)
	PresignPut(ctx context.Context, key string, ttl time.Duration) (url string, err error)
}

// S3Store implements Store against an S3-compatible bucket.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	prefix  string
}

type Config struct {
	Bucket   string
	Region   string
	Endpoint string // custom endpoint (MinIO, LocalStack)
	Prefix   string
}

func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}
	client := s3.NewFromConfig(awsCfg, clientOpts)

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
	}, nil
}

// KeyFor derives the object key for a resource id. Exported so callers
// building presigned URLs and callers reading the object agree on the key.
func (s *S3Store) KeyFor(resourceID uuid.UUID) string {
	return s.prefix + resourceID.String()
}

func (s *S3Store) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperr.Wrap(err, "failed to read resource from object storage")
	}
	return result.Body, nil
}

// StatObject distinguishes "confirmed absent" (false, nil) from a genuine
// storage error (err != nil) — the per-upload verifier and the cleanup
// reaper both rely on never deleting a row on uncertain state (spec §4.11).
func (s *S3Store) StatObject(ctx context.Context, key string) (bool, int64, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, 0, nil
		}
		return false, 0, apperr.Wrap(err, "failed to stat resource in object storage")
	}
	size := int64(0)
	if head.ContentLength != nil {
		size = *head.ContentLength
	}
	return true, size, nil
}

func isNotFound(err error) bool {
	if smithy.ErrorCode(err) == "NotFound" {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

func (s *S3Store) RemoveObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperr.Wrap(err, "failed to delete resource from object storage")
	}
	return nil
}

func (s *S3Store) BucketExists(ctx context.Context) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return false, nil
	}
	return true, nil
}

// PresignPut mints a time-limited URL the client uploads directly to,
// implementing the first phase of the two-phase upload protocol (spec
// §4.10): the server never sees the bytes, only the eventual verification
// HEAD request confirms the object landed.
func (s *S3Store) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apperr.Wrap(err, "failed to presign upload URL")
	}
	return req.URL, nil
}
