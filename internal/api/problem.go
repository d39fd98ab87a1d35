// Package api is the Control API's HTTP boundary: RFC 9457 Problem Details
// rendering, rate limiting, and the pagination/validation envelopes shared
// by every /api/v1/control/* handler.
//
// Grounded on the teacher's pkg/api/apierror.go — the ProblemDetail shape,
// the Write* helper family, and the "never leak the real error to the
// client" rule are carried over; the extension fields required by
// InvalidStateTransition are new.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
)

// ControlPrefix is the only path family the Problem-Details boundary guards.
const ControlPrefix = "/api/v1/control/"

// ProblemDetail is the RFC 9457 response body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

// stateTransitionProblem adds the five mandatory (possibly-null) extensions
// InvalidStateTransition carries, per spec §4.1/§4.5.
type stateTransitionProblem struct {
	ProblemDetail
	CurrentState     *string  `json:"current_state"`
	AttemptedState   *string  `json:"attempted_state"`
	Action           *string  `json:"action"`
	EntityType       *string  `json:"entity_type"`
	ValidTransitions []string `json:"valid_transitions"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// HandlerFunc is a Control API handler that returns its failure instead of
// writing it directly — the Problem-Details boundary is the only place a Go
// error becomes a response body.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Guard wraps h so that any panic escaping a request is rendered as
// application/problem+json, but ONLY for requests under ControlPrefix; for
// every other path Guard is a pure pass-through (spec §4.5), so it is safe
// to wrap the entire mux with it.
func Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, ControlPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in control handler", "path", r.URL.Path, "panic", rec)
				writeProblem(w, r, apperr.Wrap(nil, "An unexpected error occurred. Please try again later."))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Handle adapts a HandlerFunc into an http.Handler, writing any returned
// error as a Problem Details response.
func Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			writeProblem(w, r, err)
		}
	})
}

// HTTPError models a generic framework-level HTTP exception: a status code
// plus a detail that is either a plain string or a map of extension fields
// (spec §4.5 point 2).
type HTTPError struct {
	StatusCode int
	Detail     any // string, or map[string]any
}

func (e *HTTPError) Error() string {
	if s, ok := e.Detail.(string); ok {
		return s
	}
	return reasonPhrase(e.StatusCode)
}

var reasonPhrases = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Unprocessable Entity",
	http.StatusInternalServerError: "Internal Server Error",
}

func reasonPhrase(status int) string {
	if t, ok := reasonPhrases[status]; ok {
		return t
	}
	return "HTTP Error"
}

// writeProblem converts err into the appropriate RFC 9457 body. Three cases
// (spec §4.5): a typed *apperr.Error gets full fidelity including
// state-transition extensions; an *HTTPError gets the "about:blank" shape
// with its mapping merged in as extensions; anything else becomes a 500
// whose detail never echoes err.Error().
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if apperr.As(err, &appErr) {
		writeTyped(w, r, appErr)
		return
	}

	var httpErr *HTTPError
	if asHTTPError(err, &httpErr) {
		writeHTTPError(w, r, httpErr)
		return
	}

	slog.Error("unhandled control-api error", "path", r.URL.Path, "error", err)
	writeTyped(w, r, apperr.Wrap(err, "An unexpected error occurred. Please try again later."))
}

func asHTTPError(err error, target **HTTPError) bool {
	for err != nil {
		if e, ok := err.(*HTTPError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func writeTyped(w http.ResponseWriter, r *http.Request, e *apperr.Error) {
	base := ProblemDetail{
		Type:     typeURI(e.Type()),
		Title:    e.Title(),
		Status:   e.Status(),
		Detail:   e.Detail,
		Instance: r.URL.Path,
		TraceID:  traceIDOf(r),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.Status())

	if e.Kind == apperr.InvalidStateTransition {
		_ = json.NewEncoder(w).Encode(stateTransitionProblem{
			ProblemDetail:    base,
			CurrentState:     strPtr(e.CurrentState),
			AttemptedState:   strPtr(e.AttemptedState),
			Action:           strPtr(e.Action),
			EntityType:       strPtr(e.EntityType),
			ValidTransitions: e.ValidTransitions,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(base)
}

func writeHTTPError(w http.ResponseWriter, r *http.Request, e *HTTPError) {
	detailStr := ""
	extensions := map[string]any{}
	switch d := e.Detail.(type) {
	case string:
		detailStr = d
	case map[string]any:
		if v, ok := d["detail"].(string); ok {
			detailStr = v
		}
		for k, v := range d {
			if k == "detail" {
				continue
			}
			extensions[k] = v
		}
	}
	if detailStr == "" {
		detailStr = reasonPhrase(e.StatusCode)
	}

	body := map[string]any{
		"type":     "about:blank",
		"title":    reasonPhrase(e.StatusCode),
		"status":   e.StatusCode,
		"detail":   detailStr,
		"instance": r.URL.Path,
	}
	reserved := map[string]struct{}{"type": {}, "title": {}, "status": {}, "detail": {}, "instance": {}}
	for k, v := range extensions {
		if _, isReserved := reserved[k]; isReserved {
			continue
		}
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func typeURI(tag string) string {
	if tag == "" {
		return "about:blank"
	}
	return tag
}

func traceIDOf(r *http.Request) string {
	sc := trace.SpanContextFromContext(r.Context())
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
