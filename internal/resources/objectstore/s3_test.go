package objectstore_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ouroboros-project/ouroboros/internal/resources/objectstore"
)

func TestS3Store_ImplementsStore(t *testing.T) {
	var _ objectstore.Store = (*objectstore.S3Store)(nil)
}

func TestKeyFor_IncludesPrefixAndResourceID(t *testing.T) {
	store, err := objectstore.NewS3Store(t.Context(), objectstore.Config{
		Bucket: "resources", Region: "us-east-1", Prefix: "resources/",
	})
	assert.NoError(t, err)

	id := uuid.New()
	key := store.KeyFor(id)
	assert.Equal(t, "resources/"+id.String(), key)
}
