// Package audit records structured mutation events, grounded on the
// teacher's pkg/audit/logger.go. The tenant-scoped principal lookup is
// replaced with this module's own auth.PrincipalFromContext, and Subscribe
// wires the logger into the event bus (internal/eventbus) rather than
// requiring every call site to invoke Record directly.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

// EventType categorizes an audit record.
type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventMutation EventType = "MUTATION"
	EventSystem   EventType = "SYSTEM"
)

// Event is a structured audit record.
type Event struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing structured JSON to os.Stdout.
func NewLogger() Logger {
	return NewLoggerWithWriter(os.Stdout)
}

// NewLoggerWithWriter creates a Logger writing to w, for tests and custom sinks.
func NewLoggerWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &logger{writer: w}
}

func (l *logger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	actorID := "system"
	if principal, ok := auth.PrincipalFromContext(ctx); ok && principal.User != nil {
		actorID = principal.User.Email
	}

	event := Event{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(encoded, '\n')...))
	return err
}

// mutationTopics is every topic that represents a persisted state change
// worth an audit trail — system-internal events like heartbeats are
// deliberately excluded.
var mutationTopics = []string{
	eventbus.TopicCampaignCreated, eventbus.TopicCampaignUpdated, eventbus.TopicCampaignDeleted,
	eventbus.TopicCampaignStarted, eventbus.TopicCampaignPaused, eventbus.TopicCampaignCompleted,
	eventbus.TopicAttackCreated, eventbus.TopicAttackUpdated, eventbus.TopicAttackDeleted,
	eventbus.TopicAttackStarted, eventbus.TopicAttackCompleted,
	eventbus.TopicHashListCreated, eventbus.TopicHashListUpdated,
	eventbus.TopicResourceUploaded, eventbus.TopicResourceDeleted,
}

// Subscribe registers l against every mutation topic on bus, so
// internal/campaigns, internal/attacks, internal/hashlists, and
// internal/resources get an audit trail for free by publishing their
// domain events — no direct dependency on this package.
func Subscribe(bus *eventbus.Bus, l Logger) {
	for _, topic := range mutationTopics {
		topic := topic
		bus.Subscribe(topic, "audit", func(ctx context.Context, payload map[string]any) error {
			return l.Record(ctx, EventMutation, topic, resourceOf(payload), payload)
		})
	}
}

func resourceOf(payload map[string]any) string {
	if id, ok := payload["id"]; ok {
		if s, ok := id.(string); ok {
			return s
		}
		return jsonString(id)
	}
	return ""
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
