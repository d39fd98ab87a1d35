// Package auth is the C12 ambient component: bearer API-key authentication
// for the Control API. A client exchanges a long-lived API key secret for a
// short-lived signed JWT; the JWT's kid claim names the api_keys row, its sub
// claim names the user. Grounded in spirit on the teacher's credential
// packages (pkg/credentials, pkg/crypto/sdjwt) — issue a signed token,
// verify it, resolve a principal — adapted to golang-jwt/v5 + bcrypt since
// neither of those teacher packages targets the bearer-token shape this
// domain needs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

// Principal is the authenticated identity attached to a request context.
type Principal struct {
	User     *domain.User
	APIKeyID int64
}

type ctxKey struct{}

// WithPrincipal returns a context carrying p, read back with PrincipalFromContext.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok
}

type claims struct {
	jwt.RegisteredClaims
	KeyID int64 `json:"kid"`
}

// Issuer signs and verifies bearer tokens.
type Issuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewIssuer(signingKey []byte, ttl time.Duration) *Issuer {
	return &Issuer{signingKey: signingKey, ttl: ttl}
}

// IssueToken mints a signed JWT for userID bound to apiKeyID.
func (i *Issuer) IssueToken(userID, apiKeyID int64) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		KeyID: apiKeyID,
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return "", apperr.Wrap(err, "failed to sign bearer token")
	}
	return signed, nil
}

// VerifyToken parses and validates tokenString, returning the subject user
// id and bound api key id. Does not consult the store — callers must still
// check the key isn't revoked.
func (i *Issuer) VerifyToken(tokenString string) (userID, apiKeyID int64, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	})
	if err != nil {
		return 0, 0, apperr.New(apperr.InsufficientPermissions, "invalid or expired bearer token")
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return 0, 0, apperr.New(apperr.InsufficientPermissions, "invalid or expired bearer token")
	}
	var sub int64
	if _, err := fmt.Sscanf(c.Subject, "%d", &sub); err != nil {
		return 0, 0, apperr.New(apperr.InsufficientPermissions, "malformed bearer token subject")
	}
	return sub, c.KeyID, nil
}

// HashSecret bcrypt-hashes a freshly minted API key secret before storage.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(err, "failed to hash api key secret")
	}
	return string(hashed), nil
}

// CompareSecret reports whether secret matches hashedSecret.
func CompareSecret(hashedSecret, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedSecret), []byte(secret)) == nil
}

// Resolver resolves a bearer token into a Principal, checking the backing
// api_keys row hasn't been revoked and the user is still active.
type Resolver struct {
	store  domain.Store
	issuer *Issuer
}

func NewResolver(store domain.Store, issuer *Issuer) *Resolver {
	return &Resolver{store: store, issuer: issuer}
}

var errRevokedOrInactive = errors.New("api key revoked or user inactive")

// Resolve verifies tokenString and loads the Principal it names.
func (r *Resolver) Resolve(ctx context.Context, tokenString string) (*Principal, error) {
	userID, apiKeyID, err := r.issuer.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	key, err := r.store.GetAPIKey(ctx, apiKeyID)
	if err != nil {
		return nil, apperr.New(apperr.InsufficientPermissions, "invalid or expired bearer token")
	}
	if key.Revoked() || key.UserID != userID {
		return nil, apperr.Wrap(errRevokedOrInactive, "invalid or expired bearer token")
	}

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.New(apperr.InsufficientPermissions, "invalid or expired bearer token")
	}
	if !user.IsActive {
		return nil, apperr.Wrap(errRevokedOrInactive, "invalid or expired bearer token")
	}

	return &Principal{User: user, APIKeyID: apiKeyID}, nil
}

// Middleware resolves the bearer token on every request, whatever its path,
// and attaches the resulting Principal to the request context; it never rejects a request itself — an absent or invalid token
// simply means PrincipalFromContext finds nothing, and the first handler
// that needs a principal returns InsufficientPermissions. Kept separate
// from api.Guard's panic recovery so the two concerns (authentication,
// crash isolation) can each be tested and reasoned about on their own.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		const prefix = "Bearer "
		if strings.HasPrefix(header, prefix) {
			token := strings.TrimPrefix(header, prefix)
			if p, err := r.Resolve(req.Context(), token); err == nil {
				ctx := WithPrincipal(req.Context(), p)
				ctx = context.WithValue(ctx, api.CtxKeyAPIKeyID, strconv.FormatInt(p.APIKeyID, 10))
				req = req.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, req)
	})
}
