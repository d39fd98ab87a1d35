//go:build !gcp

package objectstore

import (
	"context"
	"fmt"
)

// newGCSStoreFromEnv stubs out the GCS backend when the binary isn't built
// with -tags gcp, matching the teacher's factory_nogcp.go: the dependency
// stays in go.mod and the code path is real, it just refuses at runtime
// instead of linking the GCS client into every default build.
func newGCSStoreFromEnv(ctx context.Context, cfg GCSConfig) (Store, error) {
	return nil, fmt.Errorf("GCS object storage is not enabled in this build (rebuild with -tags gcp)")
}
