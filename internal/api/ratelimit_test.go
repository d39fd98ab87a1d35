package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ouroboros-project/ouroboros/internal/api"
)

func TestGlobalRateLimiter_BlocksAfterBurst(t *testing.T) {
	rl := api.NewGlobalRateLimiter(1, 2)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := rl.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	var codes []int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestGlobalRateLimiter_SeparatesVisitorsByIP(t *testing.T) {
	rl := api.NewGlobalRateLimiter(1, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := rl.Middleware(next)

	for _, ip := range []string{"203.0.113.1:1", "203.0.113.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
		req.RemoteAddr = ip
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "ip %s should get its own bucket", ip)
	}
}
