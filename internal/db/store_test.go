package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/db"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

func TestGetProject_NotFoundMapsToApperr(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	mock.ExpectQuery("SELECT id, name FROM projects WHERE id").
		WithArgs(int64(1)).
		WillReturnError(sql.ErrNoRows)

	store := db.NewSQLStore(sqlDB, db.DialectPostgres)
	_, err = store.GetProject(context.Background(), 1)
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.ProjectNotFound, appErr.Kind)
}

func TestCreateCampaign_IssuesInsertWithReturningOnPostgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(42))
	mock.ExpectQuery("INSERT INTO campaigns").WillReturnRows(rows)

	store := db.NewSQLStore(sqlDB, db.DialectPostgres)
	c := &domain.Campaign{ProjectID: 1, HashListID: 2, Name: "test", State: "draft"}
	created, err := store.CreateCampaign(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestLiteModeRoundTrip_CampaignCRUD(t *testing.T) {
	sqlDB, dialect, err := db.Open(context.Background(), "", ":memory:")
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	store := db.NewSQLStore(sqlDB, dialect)
	require.NoError(t, store.InitSchema(context.Background()))

	_, err = sqlDB.Exec("INSERT INTO projects (name) VALUES ('p1')")
	require.NoError(t, err)
	_, err = sqlDB.Exec("INSERT INTO hash_lists (project_id, name, hash_type_id) VALUES (1, 'hl1', 0)")
	require.NoError(t, err)

	c := &domain.Campaign{ProjectID: 1, HashListID: 1, Name: "campaign-a", State: "draft"}
	created, err := store.CreateCampaign(context.Background(), c)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	fetched, err := store.GetCampaign(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "campaign-a", fetched.Name)

	fetched.Name = "campaign-b"
	require.NoError(t, store.UpdateCampaign(context.Background(), fetched))

	refetched, err := store.GetCampaign(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "campaign-b", refetched.Name)

	require.NoError(t, store.DeleteCampaign(context.Background(), created.ID))
	_, err = store.GetCampaign(context.Background(), created.ID)
	require.Error(t, err)
}

func TestListStaleUnuploadedResourceIDs_FiltersByAge(t *testing.T) {
	sqlDB, dialect, err := db.Open(context.Background(), "", ":memory:")
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	store := db.NewSQLStore(sqlDB, dialect)
	require.NoError(t, store.InitSchema(context.Background()))

	r := &domain.AttackResourceFile{FileName: "stale.txt", ResourceType: domain.ResourceWordList, IsUploaded: false}
	_, err = store.CreateResource(context.Background(), r)
	require.NoError(t, err)

	stale, err := store.ListStaleUnuploadedResourceIDs(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, r.ID, stale[0])

	fresh, err := store.ListStaleUnuploadedResourceIDs(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, fresh, 0)
}
