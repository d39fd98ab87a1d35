package hashlists_test

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/hashlists"
)

type fakeStore struct {
	domain.Store
	memberships map[int64][]domain.ProjectMembership
	hashLists   map[int64]*domain.HashList
	items       map[int64][]domain.HashItem
	campaignRef map[int64]int
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memberships: map[int64][]domain.ProjectMembership{},
		hashLists:   map[int64]*domain.HashList{},
		items:       map[int64][]domain.HashItem{},
		campaignRef: map[int64]int{},
	}
}

func (f *fakeStore) MembershipsForUser(ctx context.Context, userID int64) ([]domain.ProjectMembership, error) {
	return f.memberships[userID], nil
}

func (f *fakeStore) GetHashList(ctx context.Context, id int64) (*domain.HashList, error) {
	hl, ok := f.hashLists[id]
	if !ok {
		return nil, apperr.New(apperr.HashListNotFound, "not found")
	}
	return hl, nil
}

func (f *fakeStore) CreateHashList(ctx context.Context, hl *domain.HashList) (*domain.HashList, error) {
	f.nextID++
	hl.ID = f.nextID
	f.hashLists[hl.ID] = hl
	return hl, nil
}

func (f *fakeStore) UpdateHashList(ctx context.Context, hl *domain.HashList) error {
	f.hashLists[hl.ID] = hl
	return nil
}

func (f *fakeStore) DeleteHashList(ctx context.Context, id int64) error {
	delete(f.hashLists, id)
	return nil
}

func (f *fakeStore) ListHashLists(ctx context.Context, filter domain.HashListFilter) ([]domain.HashList, int, error) {
	var out []domain.HashList
	for _, hl := range f.hashLists {
		out = append(out, *hl)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListHashItems(ctx context.Context, hashListID int64, filter domain.HashItemFilter) ([]domain.HashItem, int, error) {
	items := f.items[hashListID]
	lo := filter.Offset
	if lo > len(items) {
		lo = len(items)
	}
	hi := lo + filter.Limit
	if hi > len(items) || filter.Limit == 0 {
		hi = len(items)
	}
	return items[lo:hi], len(items), nil
}

func (f *fakeStore) CountCampaignsReferencingHashList(ctx context.Context, hashListID int64) (int, error) {
	return f.campaignRef[hashListID], nil
}

func strPtr(s string) *string { return &s }

func newService(t *testing.T) (*hashlists.Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.memberships[1] = []domain.ProjectMembership{{ProjectID: 10, UserID: 1, Role: "member"}}
	checker := authz.New(store)
	bus := eventbus.New()
	return hashlists.NewService(store, checker, bus), store
}

func TestDelete_BlocksWhenReferencedByCampaign(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1}
	store.campaignRef[1] = 2
	err := svc.Delete(context.Background(), 1, 1)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidResourceState, appErr.Kind)
}

func TestDelete_AllowsUnreferencedList(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1}
	require.NoError(t, svc.Delete(context.Background(), 1, 1))
}

func TestExportPlaintext_OnlyCrackedLinesJoinedByNewline(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1, Name: "corp-leak"}
	store.items[1] = []domain.HashItem{
		{ID: 1, Hash: "aaa", PlainText: strPtr("hunter2")},
		{ID: 2, Hash: "bbb"},
		{ID: 3, Hash: "ccc", PlainText: strPtr("letmein")},
	}
	export, err := svc.ExportPlaintext(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "plaintext", export.Format)
	assert.Equal(t, 3, export.TotalItems)
	assert.Equal(t, 2, export.CrackedCount)
	assert.Equal(t, "hunter2\nletmein", export.Content)
}

func TestExportPotfile_IncludesSaltWhenPresent(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1, Name: "corp-leak"}
	store.items[1] = []domain.HashItem{
		{ID: 1, Hash: "aaa", Salt: strPtr("s1"), PlainText: strPtr("hunter2")},
		{ID: 2, Hash: "bbb", PlainText: strPtr("letmein")},
	}
	export, err := svc.ExportPotfile(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Contains(t, export.Content, "aaa:s1:hunter2")
	assert.Contains(t, export.Content, "bbb:letmein")
}

func TestExportCSV_HeaderAndStatusColumn(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1, Name: "corp-leak"}
	store.items[1] = []domain.HashItem{
		{ID: 1, Hash: "aaa", PlainText: strPtr("hunter2")},
		{ID: 2, Hash: "bbb"},
	}
	export, err := svc.ExportCSV(context.Background(), 1, 1, true)
	require.NoError(t, err)
	assert.Contains(t, export.Content, "id,hash,salt,plaintext,status\n")
	assert.Contains(t, export.Content, "1,aaa,,hunter2,cracked")
	assert.Contains(t, export.Content, "2,bbb,,,uncracked")
	assert.Equal(t, 1, export.CrackedCount)
}

func TestExportCSV_ExcludesUncrackedWhenRequested(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1, Name: "corp-leak"}
	store.items[1] = []domain.HashItem{
		{ID: 1, Hash: "aaa", PlainText: strPtr("hunter2")},
		{ID: 2, Hash: "bbb"},
	}
	export, err := svc.ExportCSV(context.Background(), 1, 1, false)
	require.NoError(t, err)
	assert.NotContains(t, export.Content, "bbb")
	assert.Equal(t, 1, export.TotalItems)
}

func TestExportCSV_QuotesPlaintextContainingDelimiters(t *testing.T) {
	svc, store := newService(t)
	store.hashLists[1] = &domain.HashList{ID: 1, Name: "corp-leak"}
	store.items[1] = []domain.HashItem{
		{ID: 1, Hash: "aaa", PlainText: strPtr(`comma,quote"newline` + "\n" + "tail")},
	}
	export, err := svc.ExportCSV(context.Background(), 1, 1, true)
	require.NoError(t, err)

	r := csv.NewReader(strings.NewReader(export.Content))
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2) // header + one data row
	assert.Equal(t, "aaa", records[1][1])
	assert.Equal(t, `comma,quote"newline`+"\ntail", records[1][3])
	assert.Equal(t, "cracked", records[1][4])
}
