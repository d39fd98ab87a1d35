package objectstore

import (
	"context"
	"fmt"
	"os"
)

// Backend selects which Store implementation NewStoreFromConfig builds.
type Backend string

const (
	BackendS3  Backend = "s3"
	BackendGCS Backend = "gcs"
)

// FromConfig is the subset of internal/config.Config object-storage
// selection needs; kept narrow so this package doesn't import
// internal/config.
type FromConfig struct {
	Backend   string
	S3        Config
	GCSBucket string
	GCSPrefix string
}

// NewStoreFromConfig builds the configured Store backend, mirroring the
// teacher's pkg/artifacts.NewStoreFromEnv env-var dispatch: "s3" (default)
// builds an S3Store directly; "gcs" is only available in binaries built
// with -tags gcp, same gate the teacher puts on its own GCS backend.
func NewStoreFromConfig(ctx context.Context, cfg FromConfig) (Store, error) {
	backend := Backend(cfg.Backend)
	if backend == "" {
		backend = BackendS3
	}

	switch backend {
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	case BackendGCS:
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when OBJECT_STORE_BACKEND=gcs")
		}
		return newGCSStoreFromEnv(ctx, GCSConfig{
			Bucket:               cfg.GCSBucket,
			Prefix:               cfg.GCSPrefix,
			SignerServiceAccount: os.Getenv("GCS_SIGNER_SERVICE_ACCOUNT"),
			SignerKeyPath:        os.Getenv("GCS_SIGNER_KEY_PATH"),
		})
	default:
		return nil, fmt.Errorf("unsupported object store backend: %s", backend)
	}
}
