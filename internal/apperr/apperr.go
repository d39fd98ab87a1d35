// Package apperr defines the closed set of typed control-plane errors.
//
// Every error the Control API can produce is one of the Kinds below. Each
// kind carries a stable kebab-case type tag, a fixed human title, and an
// HTTP status — the dispatch table the Problem-Details boundary in
// internal/api uses to render RFC 9457 responses.
package apperr

import "net/http"

// Kind is the closed set of control-plane error kinds.
type Kind int

const (
	_ Kind = iota
	CampaignNotFound
	AttackNotFound
	AgentNotFound
	HashListNotFound
	HashItemNotFound
	ResourceNotFound
	UserNotFound
	ProjectNotFound
	TaskNotFound
	InvalidAttackConfig
	InvalidHashFormat
	InvalidResourceFormat
	InvalidResourceState
	InsufficientPermissions
	ProjectAccessDenied
	UserConflict
	InvalidStateTransition
	ValidationError
	InternalServerError
)

type kindInfo struct {
	typ    string
	title  string
	status int
}

var table = map[Kind]kindInfo{
	CampaignNotFound:        {"campaign-not-found", "Campaign Not Found", http.StatusNotFound},
	AttackNotFound:          {"attack-not-found", "Attack Not Found", http.StatusNotFound},
	AgentNotFound:           {"agent-not-found", "Agent Not Found", http.StatusNotFound},
	HashListNotFound:        {"hash-list-not-found", "Hash List Not Found", http.StatusNotFound},
	HashItemNotFound:        {"hash-item-not-found", "Hash Item Not Found", http.StatusNotFound},
	ResourceNotFound:        {"resource-not-found", "Resource Not Found", http.StatusNotFound},
	UserNotFound:            {"user-not-found", "User Not Found", http.StatusNotFound},
	ProjectNotFound:         {"project-not-found", "Project Not Found", http.StatusNotFound},
	TaskNotFound:            {"task-not-found", "Task Not Found", http.StatusNotFound},
	InvalidAttackConfig:     {"invalid-attack-config", "Invalid Attack Configuration", http.StatusBadRequest},
	InvalidHashFormat:       {"invalid-hash-format", "Invalid Hash Format", http.StatusBadRequest},
	InvalidResourceFormat:   {"invalid-resource-format", "Invalid Resource Format", http.StatusBadRequest},
	InvalidResourceState:    {"invalid-resource-state", "Invalid Resource State", http.StatusBadRequest},
	InsufficientPermissions: {"insufficient-permissions", "Insufficient Permissions", http.StatusForbidden},
	ProjectAccessDenied:     {"project-access-denied", "Project Access Denied", http.StatusForbidden},
	UserConflict:            {"user-conflict", "User Already Exists", http.StatusConflict},
	InvalidStateTransition:  {"invalid-state-transition", "Invalid State Transition", http.StatusConflict},
	ValidationError:         {"validation-error", "Unprocessable Entity", http.StatusUnprocessableEntity},
	InternalServerError:     {"internal-server-error", "Internal Server Error", http.StatusInternalServerError},
}

// Error is the single concrete error type for every Kind. InvalidStateTransition
// additionally populates CurrentState, AttemptedState, Action, EntityType and
// ValidTransitions; every other kind leaves them empty.
type Error struct {
	Kind   Kind
	Detail string

	CurrentState    string
	AttemptedState  string
	Action          string
	EntityType      string
	ValidTransitions []string

	cause error
}

func (e *Error) Error() string {
	info := table[e.Kind]
	if e.Detail == "" {
		return info.title
	}
	return info.title + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.cause }

// Type returns the stable kebab-case type tag for this error's Kind.
func (e *Error) Type() string { return table[e.Kind].typ }

// Title returns the fixed human title for this error's Kind.
func (e *Error) Title() string { return table[e.Kind].title }

// Status returns the HTTP status mapped to this error's Kind.
func (e *Error) Status() int { return table[e.Kind].status }

// New constructs an *Error of the given kind with a free-form detail string.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap constructs an InternalServerError carrying cause for logging, but
// never exposes cause in Detail — callers must supply a safe detail string.
func Wrap(cause error, detail string) *Error {
	return &Error{Kind: InternalServerError, Detail: detail, cause: cause}
}

// StateTransitionParams bundles the extension fields for InvalidStateTransition.
type StateTransitionParams struct {
	CurrentState     string
	AttemptedState   string
	Action           string
	EntityType       string
	ValidTransitions []string
	Detail           string
}

// NewStateTransition constructs the one, unified InvalidStateTransition shape
// (see SPEC_FULL.md §9, Open Question 1): mandatory Action/EntityType,
// optional everything else.
func NewStateTransition(p StateTransitionParams) *Error {
	return &Error{
		Kind:             InvalidStateTransition,
		Detail:           p.Detail,
		CurrentState:     p.CurrentState,
		AttemptedState:   p.AttemptedState,
		Action:           p.Action,
		EntityType:       p.EntityType,
		ValidTransitions: p.ValidTransitions,
	}
}

// StatusOf returns the HTTP status for an arbitrary error: the status of the
// first *Error found by As, or 500 otherwise.
func StatusOf(err error) int {
	var e *Error
	if As(err, &e) {
		return e.Status()
	}
	return http.StatusInternalServerError
}

// As walks err's single-error Unwrap chain and stores the first *Error it
// finds in target. Errors that unwrap to several errors (Unwrap() []error)
// are not searched.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
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
