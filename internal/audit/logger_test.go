package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/audit"
	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

func TestLogger_Record_WritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	err := logger.Record(context.Background(), audit.EventAccess, "login", "/api/v1/auth", nil)
	require.NoError(t, err)

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, "AUDIT: "))

	jsonPart := strings.TrimSpace(strings.TrimPrefix(output, "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	assert.Equal(t, audit.EventAccess, event.Type)
	assert.Equal(t, "login", event.Action)
	assert.Equal(t, "/api/v1/auth", event.Resource)
	assert.Equal(t, "system", event.ActorID)
	assert.Len(t, event.ID, 36)
}

func TestLogger_Record_WithMetadataAndAuthenticatedActor(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)

	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{
		User: &domain.User{ID: 1, Email: "operator@example.com"},
	})
	meta := map[string]any{"ip": "10.0.0.1"}
	err := logger.Record(ctx, audit.EventMutation, "campaign.start", "campaign:42", meta)
	require.NoError(t, err)

	jsonPart := strings.TrimSpace(strings.TrimPrefix(buf.String(), "AUDIT: "))
	var event audit.Event
	require.NoError(t, json.Unmarshal([]byte(jsonPart), &event))

	assert.Equal(t, "operator@example.com", event.ActorID)
	assert.Equal(t, "10.0.0.1", event.Metadata["ip"])
}

func TestSubscribe_RecordsOnCampaignMutationTopics(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)
	bus := eventbus.New()
	audit.Subscribe(bus, logger)

	failures := bus.Publish(context.Background(), eventbus.TopicCampaignCreated, map[string]any{"id": "7"})
	assert.Empty(t, failures)
	assert.Contains(t, buf.String(), eventbus.TopicCampaignCreated)
}

func TestSubscribe_IgnoresNonMutationTopics(t *testing.T) {
	var buf bytes.Buffer
	logger := audit.NewLoggerWithWriter(&buf)
	bus := eventbus.New()
	audit.Subscribe(bus, logger)

	bus.Publish(context.Background(), eventbus.TopicAgentHeartbeat, map[string]any{"id": "7"})
	assert.Empty(t, buf.String())
}
