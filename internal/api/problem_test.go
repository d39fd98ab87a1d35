package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

func handlerReturning(err error) api.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error { return err }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHandle_TypedNotFound(t *testing.T) {
	h := api.Handle(handlerReturning(apperr.New(apperr.CampaignNotFound, "no such campaign")))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns/1", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	body := decode(t, w)
	assert.Equal(t, "campaign-not-found", body["type"])
	assert.Equal(t, "Campaign Not Found", body["title"])
	assert.Equal(t, float64(404), body["status"])
	assert.Equal(t, "no such campaign", body["detail"])
	assert.Equal(t, "/api/v1/control/campaigns/1", body["instance"])
}

func TestHandle_InvalidStateTransitionExtensions(t *testing.T) {
	err := apperr.NewStateTransition(apperr.StateTransitionParams{
		CurrentState:     "archived",
		AttemptedState:   "active",
		Action:           "start",
		EntityType:       "campaign",
		ValidTransitions: []string{"draft"},
		Detail:           "Cannot perform action 'start' on campaign: transition from 'archived' to 'active' is not allowed.",
	})
	h := api.Handle(handlerReturning(err))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/campaigns/42/start", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, "invalid-state-transition", body["type"])
	assert.Equal(t, "archived", body["current_state"])
	assert.Equal(t, "active", body["attempted_state"])
	assert.Equal(t, "start", body["action"])
	assert.Equal(t, "campaign", body["entity_type"])
	assert.Equal(t, []any{"draft"}, body["valid_transitions"])
}

func TestHandle_InternalErrorNeverLeaksCause(t *testing.T) {
	h := api.Handle(handlerReturning(apperr.Wrap(errors.New("pq: connection refused to host=10.0.0.1"), "An unexpected error occurred. Please try again later.")))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.NotContains(t, body["detail"], "10.0.0.1")
}

func TestHandle_GenericHTTPErrorShape(t *testing.T) {
	h := api.Handle(handlerReturning(&api.HTTPError{StatusCode: http.StatusUnprocessableEntity, Detail: map[string]any{"detail": "limit out of range", "field": "limit"}}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "about:blank", body["type"])
	assert.Equal(t, "limit out of range", body["detail"])
	assert.Equal(t, "limit", body["field"])
}

func TestGuard_PassesThroughNonControlPaths(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		panic("boom") //nolint:forbidigo // intentional: Guard must not intercept this path
	})
	h := api.Guard(next)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/agent/heartbeat", nil)
	w := httptest.NewRecorder()

	assert.Panics(t, func() { h.ServeHTTP(w, req) })
	assert.True(t, called)
}

func TestGuard_RecoversPanicOnControlPaths(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	h := api.Guard(next)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/control/campaigns", nil)
	w := httptest.NewRecorder()

	assert.NotPanics(t, func() { h.ServeHTTP(w, req) })
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
