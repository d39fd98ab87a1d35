package resources_test

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/resources"
)

type fakeStore struct {
	domain.Store
	memberships map[int64][]domain.ProjectMembership
	resources   map[uuid.UUID]*domain.AttackResourceFile
	attackRefs  map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memberships: map[int64][]domain.ProjectMembership{},
		resources:   map[uuid.UUID]*domain.AttackResourceFile{},
		attackRefs:  map[uuid.UUID]int{},
	}
}

func (f *fakeStore) MembershipsForUser(ctx context.Context, userID int64) ([]domain.ProjectMembership, error) {
	return f.memberships[userID], nil
}

func (f *fakeStore) GetResource(ctx context.Context, id uuid.UUID) (*domain.AttackResourceFile, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, apperr.New(apperr.ResourceNotFound, "not found")
	}
	return r, nil
}

func (f *fakeStore) CreateResource(ctx context.Context, r *domain.AttackResourceFile) (*domain.AttackResourceFile, error) {
	f.resources[r.ID] = r
	return r, nil
}

func (f *fakeStore) UpdateResource(ctx context.Context, r *domain.AttackResourceFile) error {
	f.resources[r.ID] = r
	return nil
}

func (f *fakeStore) DeleteResource(ctx context.Context, id uuid.UUID) error {
	delete(f.resources, id)
	return nil
}

func (f *fakeStore) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]domain.AttackResourceFile, int, error) {
	var out []domain.AttackResourceFile
	for _, r := range f.resources {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (f *fakeStore) CountAttacksReferencingResource(ctx context.Context, id uuid.UUID) (int, error) {
	return f.attackRefs[id], nil
}

func (f *fakeStore) ListAttacksReferencingResource(ctx context.Context, id uuid.UUID) ([]domain.Attack, error) {
	return nil, nil
}

type fakeObjects struct {
	objects map[string][]byte
	statErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}}
}

func (o *fakeObjects) KeyFor(id uuid.UUID) string { return id.String() }

func (o *fakeObjects) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	b, ok := o.objects[key]
	if !ok {
		return nil, apperr.New(apperr.InternalServerError, "not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (o *fakeObjects) StatObject(ctx context.Context, key string) (bool, int64, error) {
	if o.statErr != nil {
		return false, 0, o.statErr
	}
	b, ok := o.objects[key]
	if !ok {
		return false, 0, nil
	}
	return true, int64(len(b)), nil
}

func (o *fakeObjects) RemoveObject(ctx context.Context, key string) error {
	delete(o.objects, key)
	return nil
}

func (o *fakeObjects) BucketExists(ctx context.Context) (bool, error) { return true, nil }

func (o *fakeObjects) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://example.invalid/" + key, nil
}

func newService(t *testing.T) (*resources.Service, *fakeStore, *fakeObjects) {
	t.Helper()
	store := newFakeStore()
	store.memberships[1] = []domain.ProjectMembership{{ProjectID: 10, UserID: 1, Role: "member"}}
	checker := authz.New(store)
	bus := eventbus.New()
	objects := newFakeObjects()
	svc := resources.NewService(store, checker, bus, objects, time.Hour, time.Minute)
	return svc, store, objects
}

func TestInitiateUpload_CreatesUnuploadedRowAndPresignsURL(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(10)
	result, created, err := svc.InitiateUpload(context.Background(), 1, resources.InitiateUploadInput{
		FileName: "rockyou.txt", ResourceType: domain.ResourceWordList, ProjectID: &projectID,
	})
	require.NoError(t, err)
	assert.False(t, created.IsUploaded)
	assert.NotEmpty(t, result.UploadURL)
	assert.Equal(t, 3600, result.ExpiresInSeconds)
	assert.Contains(t, store.resources, created.ID)
}

func TestInitiateUpload_DeniesAccessToUnownedProject(t *testing.T) {
	svc, _, _ := newService(t)
	projectID := int64(99)
	_, _, err := svc.InitiateUpload(context.Background(), 1, resources.InitiateUploadInput{
		FileName: "rockyou.txt", ResourceType: domain.ResourceWordList, ProjectID: &projectID,
	})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.ProjectAccessDenied, appErr.Kind)
}

func TestConfirmUpload_FailsWhenObjectNeverLanded(t *testing.T) {
	svc, store, _ := newService(t)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id}
	_, err := svc.ConfirmUpload(context.Background(), 1, id)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidResourceFormat, appErr.Kind)
}

func TestConfirmUpload_MarksUploadedAndRecordsSize(t *testing.T) {
	svc, store, objects := newService(t)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id}
	objects.objects[id.String()] = []byte("password1\npassword2\n")

	updated, err := svc.ConfirmUpload(context.Background(), 1, id)
	require.NoError(t, err)
	assert.True(t, updated.IsUploaded)
	assert.EqualValues(t, len("password1\npassword2\n"), updated.ByteSize)
}

func TestDelete_BlocksWhenReferencedByAttack(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID}
	store.attackRefs[id] = 1

	err := svc.Delete(context.Background(), 1, false, id)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidResourceState, appErr.Kind)
}

func TestDelete_RemovesObjectAndRowWhenUnreferenced(t *testing.T) {
	svc, store, objects := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID, IsUploaded: true}
	objects.objects[id.String()] = []byte("data")

	require.NoError(t, svc.Delete(context.Background(), 1, false, id))
	assert.NotContains(t, store.resources, id)
	assert.NotContains(t, objects.objects, id.String())
}

func TestCancel_RejectsAlreadyUploadedResource(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID, IsUploaded: true}

	err := svc.Cancel(context.Background(), 1, false, id)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidResourceState, appErr.Kind)
}

func TestCancel_DeletesUnconfirmedUploadAndObject(t *testing.T) {
	svc, store, objects := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID, IsUploaded: false}
	objects.objects[id.String()] = []byte("partial")

	require.NoError(t, svc.Cancel(context.Background(), 1, false, id))
	assert.NotContains(t, store.resources, id)
	assert.NotContains(t, objects.objects, id.String())
}

func TestPreview_InlineContentForEphemeralResource(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{
		ID: id, ProjectID: &projectID, ResourceType: domain.ResourceEphemeralWordList,
		Content: &domain.ResourceContent{Lines: []string{"a", "b", "c"}},
	}
	result, err := svc.Preview(context.Background(), 1, false, id, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, result.PreviewLines)
	assert.Nil(t, result.PreviewError)
}

func TestPreview_StreamsFromObjectStorageForUploadedResource(t *testing.T) {
	svc, store, objects := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{
		ID: id, ProjectID: &projectID, ResourceType: domain.ResourceWordList,
		LineEncoding: "utf-8", IsUploaded: true,
	}
	objects.objects[id.String()] = []byte("hunter2\nletmein\npassword\n")

	result, err := svc.Preview(context.Background(), 1, false, id, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hunter2", "letmein"}, result.PreviewLines)
}

func TestPreview_ReportsStorageErrorWithoutFailingRequest(t *testing.T) {
	svc, store, objects := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{
		ID: id, ProjectID: &projectID, ResourceType: domain.ResourceWordList, IsUploaded: true,
	}
	objects.statErr = apperr.New(apperr.InternalServerError, "boom")
	delete(objects.objects, id.String())

	result, err := svc.Preview(context.Background(), 1, false, id, 2)
	require.NoError(t, err)
	assert.Empty(t, result.PreviewLines)
	require.NotNil(t, result.PreviewError)
}

func TestUpdate_ReassignsProjectWithAccessCheck(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(10)
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID, FileName: "old.txt"}

	newProjectID := int64(99)
	newProjectPtr := &newProjectID
	_, err := svc.Update(context.Background(), 1, false, id, resources.UpdateInput{ProjectID: &newProjectPtr})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.ProjectAccessDenied, appErr.Kind)
}

func TestUpdate_SuperuserBypassesOwnershipCheck(t *testing.T) {
	svc, store, _ := newService(t)
	projectID := int64(123) // not in user 1's memberships
	id := uuid.New()
	store.resources[id] = &domain.AttackResourceFile{ID: id, ProjectID: &projectID, FileName: "old.txt"}

	newName := "renamed.txt"
	updated, err := svc.Update(context.Background(), 1, true, id, resources.UpdateInput{FileName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", updated.FileName)
}
