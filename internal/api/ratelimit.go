package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// rateLimitConfig holds the local in-process limiter settings.
type rateLimitConfig struct {
	rps   rate.Limit
	burst int
}

// GlobalRateLimiter is a per-IP in-process token bucket, used when no Redis
// is configured (single-instance / local dev). Grounded on the teacher's
// pkg/api/middleware.go.
type GlobalRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	config   rateLimitConfig
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGlobalRateLimiter creates a new per-IP limiter: rps requests/sec, burst max burst.
func NewGlobalRateLimiter(rps int, burst int) *GlobalRateLimiter {
	rl := &GlobalRateLimiter{
		visitors: make(map[string]*visitor),
		config:   rateLimitConfig{rps: rate.Limit(rps), burst: burst},
	}
	go rl.cleanupVisitors()
	return rl
}

func (rl *GlobalRateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.config.rps, rl.config.burst)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *GlobalRateLimiter) cleanupVisitors() {
	for {
		time.Sleep(1 * time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// Middleware enforces the per-IP limit, writing a Problem Details 429 on
// rejection.
func (rl *GlobalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
		}

		if !rl.getVisitor(ip).Allow() {
			writeTooManyRequests(w, r, 5)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// KeyLimiter enforces a per-API-key quota across all instances of the
// control plane using a Redis-backed token bucket, so operators aren't
// rate-limited differently depending on which instance handled their last
// request. The Lua script and token-bucket shape are lifted from the
// teacher's kernel/limiter_redis.go almost verbatim — only the key
// namespace (api-key instead of actor) changes.
type KeyLimiter struct {
	client *redis.Client
	rps    float64
	burst  int
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    local added = elapsed * rate
    tokens = tokens + added
    if tokens > capacity then
        tokens = capacity
    end
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 60)

return {allowed, tokens}
`)

// NewKeyLimiter creates a Redis-backed per-API-key limiter. rps and burst
// describe the bucket's steady-state rate and peak capacity.
func NewKeyLimiter(client *redis.Client, rps float64, burst int) *KeyLimiter {
	return &KeyLimiter{client: client, rps: rps, burst: burst}
}

// Allow consumes one token from apiKeyID's bucket.
func (l *KeyLimiter) Allow(ctx context.Context, apiKeyID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:apikey:%s", apiKeyID)
	now := float64(time.Now().UnixMicro()) / 1e6

	res, err := tokenBucketScript.Run(ctx, l.client, []string{key}, l.rps, l.burst, 1, now).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limiter: %w", err)
	}
	results, ok := res.([]interface{})
	if !ok || len(results) != 2 {
		return false, fmt.Errorf("redis rate limiter: unexpected script result")
	}
	allowed, _ := results[0].(int64)
	return allowed == 1, nil
}

// Middleware enforces the per-key limit for an already-authenticated
// request, reading the API key id set by the auth middleware via ctxKeyAPIKeyID.
func (l *KeyLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyID, ok := r.Context().Value(ctxKeyAPIKeyID{}).(string)
		if !ok || keyID == "" {
			next.ServeHTTP(w, r)
			return
		}
		allowed, err := l.Allow(r.Context(), keyID)
		if err != nil {
			// Fail open: a rate limiter outage must not take down the
			// control plane.
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			writeTooManyRequests(w, r, 5)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ctxKeyAPIKeyID is the context key the auth middleware stores the
// authenticated API key's id under; defined here (rather than imported from
// internal/auth) to avoid a dependency cycle since internal/auth does not
// need to know about rate limiting.
type ctxKeyAPIKeyID struct{}

// CtxKeyAPIKeyID is exported so internal/auth can set the same key.
var CtxKeyAPIKeyID = ctxKeyAPIKeyID{}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeProblem(w, r, &HTTPError{StatusCode: http.StatusTooManyRequests, Detail: "Rate limit exceeded. Retry after the specified interval."})
}
