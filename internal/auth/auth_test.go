package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

type fakeStore struct {
	domain.Store
	keys  map[int64]*domain.APIKey
	users map[int64]*domain.User
}

func (f *fakeStore) GetAPIKey(ctx context.Context, id int64) (*domain.APIKey, error) {
	k, ok := f.keys[id]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound, "not found")
	}
	return k, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.New(apperr.UserNotFound, "not found")
	}
	return u, nil
}

func TestIssueAndVerifyToken_RoundTrips(t *testing.T) {
	issuer := auth.NewIssuer([]byte("test-signing-key"), time.Hour)
	token, err := issuer.IssueToken(1, 7)
	require.NoError(t, err)

	userID, apiKeyID, err := issuer.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
	assert.Equal(t, int64(7), apiKeyID)
}

func TestVerifyToken_ExpiredTokenFails(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), -time.Minute)
	token, err := issuer.IssueToken(1, 1)
	require.NoError(t, err)

	_, _, err = issuer.VerifyToken(token)
	require.Error(t, err)
}

func TestHashAndCompareSecret(t *testing.T) {
	hashed, err := auth.HashSecret("super-secret")
	require.NoError(t, err)
	assert.True(t, auth.CompareSecret(hashed, "super-secret"))
	assert.False(t, auth.CompareSecret(hashed, "wrong"))
}

func TestResolver_RejectsRevokedKey(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	token, err := issuer.IssueToken(1, 7)
	require.NoError(t, err)

	revokedAt := time.Now()
	store := &fakeStore{
		keys:  map[int64]*domain.APIKey{7: {ID: 7, UserID: 1, RevokedAt: &revokedAt}},
		users: map[int64]*domain.User{1: {ID: 1, IsActive: true}},
	}
	resolver := auth.NewResolver(store, issuer)
	_, err = resolver.Resolve(context.Background(), token)
	require.Error(t, err)
}

func TestResolver_RejectsInactiveUser(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	token, err := issuer.IssueToken(1, 7)
	require.NoError(t, err)

	store := &fakeStore{
		keys:  map[int64]*domain.APIKey{7: {ID: 7, UserID: 1}},
		users: map[int64]*domain.User{1: {ID: 1, IsActive: false}},
	}
	resolver := auth.NewResolver(store, issuer)
	_, err = resolver.Resolve(context.Background(), token)
	require.Error(t, err)
}

func TestResolver_AcceptsValidActiveKey(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	token, err := issuer.IssueToken(1, 7)
	require.NoError(t, err)

	store := &fakeStore{
		keys:  map[int64]*domain.APIKey{7: {ID: 7, UserID: 1}},
		users: map[int64]*domain.User{1: {ID: 1, IsActive: true, Email: "a@b.com"}},
	}
	resolver := auth.NewResolver(store, issuer)
	principal, err := resolver.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), principal.APIKeyID)
	assert.Equal(t, "a@b.com", principal.User.Email)
}

func TestMiddleware_AttachesPrincipalAndAPIKeyIDOnValidToken(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	token, err := issuer.IssueToken(1, 7)
	require.NoError(t, err)

	store := &fakeStore{
		keys:  map[int64]*domain.APIKey{7: {ID: 7, UserID: 1}},
		users: map[int64]*domain.User{1: {ID: 1, IsActive: true, Email: "a@b.com"}},
	}
	resolver := auth.NewResolver(store, issuer)

	var seenKeyID any
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "a@b.com", p.User.Email)
		seenKeyID = r.Context().Value(api.CtxKeyAPIKeyID)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	resolver.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", seenKeyID)
}

func TestMiddleware_PassesThroughWithoutPrincipalWhenTokenMissing(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	store := &fakeStore{keys: map[int64]*domain.APIKey{}, users: map[int64]*domain.User{}}
	resolver := auth.NewResolver(store, issuer)

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := auth.PrincipalFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	rec := httptest.NewRecorder()
	resolver.Middleware(next).ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_PassesThroughWithoutPrincipalWhenTokenInvalid(t *testing.T) {
	issuer := auth.NewIssuer([]byte("k"), time.Hour)
	store := &fakeStore{keys: map[int64]*domain.APIKey{}, users: map[int64]*domain.User{}}
	resolver := auth.NewResolver(store, issuer)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := auth.PrincipalFromContext(r.Context())
		assert.False(t, ok)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	req.Header.Set("Authorization", "Bearer garbage-token")
	rec := httptest.NewRecorder()
	resolver.Middleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
