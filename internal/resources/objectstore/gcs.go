//go:build gcp

// GCS backend, gated behind the "gcp" build tag exactly as the teacher
// gates pkg/artifacts/gcs_store.go — cloud.google.com/go/storage stays a
// direct dependency of this module without forcing every default build to
// link the GCS client. Adapted from the teacher's content-addressed
// GCSStore: the sha256-prefixed key scheme is replaced with the same
// resource_id-as-key scheme S3Store uses, and PresignPut is added for the
// two-phase upload flow (spec §4.10) the teacher's store never needed.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

// GCSStore implements Store against a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string

	// signerEmail/signerKeyPath back a V4 signed URL, since PresignPut has
	// no ADC-only equivalent on GCS (unlike S3's SDK-local presigning).
	signerEmail   string
	signerKeyPath string
}

// NewGCSStore creates a GCS-backed object store. Uses Application Default
// Credentials for the client itself, matching the teacher's NewGCSStore.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        cfg.Prefix,
		signerEmail:   cfg.SignerServiceAccount,
		signerKeyPath: cfg.SignerKeyPath,
	}, nil
}

// newGCSStoreFromEnv is the gcp-tagged half of the factory dispatch;
// see gcs_nogcp.go for the build without the GCS client linked in.
func newGCSStoreFromEnv(ctx context.Context, cfg GCSConfig) (Store, error) {
	return NewGCSStore(ctx, cfg)
}

func (s *GCSStore) KeyFor(resourceID uuid.UUID) string {
	return s.prefix + resourceID.String()
}

func (s *GCSStore) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to read resource from object storage")
	}
	return reader, nil
}

// StatObject distinguishes "confirmed absent" from a genuine storage
// error, same contract S3Store.StatObject promises to the upload verifier
// and cleanup reaper (spec §4.11).
func (s *GCSStore) StatObject(ctx context.Context, key string) (bool, int64, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, 0, nil
		}
		return false, 0, apperr.Wrap(err, "failed to stat resource in object storage")
	}
	return true, attrs.Size, nil
}

func (s *GCSStore) RemoveObject(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return apperr.Wrap(err, "failed to delete resource from object storage")
	}
	return nil
}

func (s *GCSStore) BucketExists(ctx context.Context) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// PresignPut mints a V4-signed PUT URL. Requires a service-account key
// file on disk (SignerKeyPath) since, unlike S3's SDK-local presigning,
// GCS V4 signing needs a private key rather than just ADC.
func (s *GCSStore) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.signerEmail == "" || s.signerKeyPath == "" {
		return "", apperr.New(apperr.InternalServerError, "GCS presigning is not configured (GCS_SIGNER_SERVICE_ACCOUNT/GCS_SIGNER_KEY_PATH unset)")
	}
	keyBytes, err := os.ReadFile(s.signerKeyPath)
	if err != nil {
		return "", apperr.Wrap(err, "failed to read GCS signer key")
	}
	url, err := storage.SignedURL(s.bucket, key, &storage.SignedURLOptions{
		GoogleAccessID: s.signerEmail,
		PrivateKey:     keyBytes,
		Method:         http.MethodPut,
		Expires:        time.Now().Add(ttl),
		Scheme:         storage.SigningSchemeV4,
	})
	if err != nil {
		return "", apperr.Wrap(err, "failed to presign upload URL")
	}
	return url, nil
}

// Close releases the underlying GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
