package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

func TestKindStatusMapping(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.CampaignNotFound:        http.StatusNotFound,
		apperr.InvalidAttackConfig:     http.StatusBadRequest,
		apperr.ProjectAccessDenied:     http.StatusForbidden,
		apperr.UserConflict:            http.StatusConflict,
		apperr.InvalidStateTransition:  http.StatusConflict,
		apperr.InternalServerError:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		e := apperr.New(kind, "x")
		assert.Equal(t, status, e.Status())
	}
}

func TestWrap_NeverExposesCauseInDetail(t *testing.T) {
	cause := errors.New("pq: connection refused to host=10.0.0.1")
	e := apperr.Wrap(cause, "An unexpected error occurred. Please try again later.")
	assert.Equal(t, apperr.InternalServerError, e.Kind)
	assert.NotContains(t, e.Detail, "10.0.0.1")
	assert.ErrorIs(t, e, cause)
}

func TestAs_UnwrapsThroughFmtErrorf(t *testing.T) {
	base := apperr.New(apperr.CampaignNotFound, "no such campaign")
	wrapped := fmt.Errorf("loading campaign: %w", base)

	var e *apperr.Error
	require := assert.New(t)
	require.True(apperr.As(wrapped, &e))
	require.Equal(apperr.CampaignNotFound, e.Kind)
}

func TestStatusOf_DefaultsTo500ForUntypedErrors(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, apperr.StatusOf(errors.New("boom")))
}

func TestNewStateTransition_CarriesAllExtensions(t *testing.T) {
	e := apperr.NewStateTransition(apperr.StateTransitionParams{
		CurrentState:     "archived",
		AttemptedState:   "active",
		Action:           "start",
		EntityType:       "campaign",
		ValidTransitions: []string{"draft"},
		Detail:           "nope",
	})
	assert.Equal(t, apperr.InvalidStateTransition, e.Kind)
	assert.Equal(t, "archived", e.CurrentState)
	assert.Equal(t, "active", e.AttemptedState)
	assert.Equal(t, "start", e.Action)
	assert.Equal(t, "campaign", e.EntityType)
	assert.Equal(t, []string{"draft"}, e.ValidTransitions)
}
