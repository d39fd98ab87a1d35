package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

func TestNew_DisabledWhenEndpointUnset(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "ouroborosd"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.False(t, p.enabled)
}

func TestNew_DisabledProviderTracerIsSafeToUse(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)

	tracer := p.Tracer()
	require.NotNil(t, tracer)
	_, span := tracer.Start(context.Background(), "test.span")
	span.End()
}

func TestShutdown_NoopOnDisabledProvider(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestSubscribe_CampaignAndAttackLifecycleDoesNotPanicOnDisabledProvider(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)

	bus := eventbus.New()
	Subscribe(bus, p)

	ctx := context.Background()
	require.Empty(t, bus.Publish(ctx, eventbus.TopicCampaignStarted, map[string]any{"id": "1"}))
	require.Empty(t, bus.Publish(ctx, eventbus.TopicCampaignCompleted, map[string]any{"id": "1"}))
	require.Empty(t, bus.Publish(ctx, eventbus.TopicAttackStarted, map[string]any{"id": "2"}))
	require.Empty(t, bus.Publish(ctx, eventbus.TopicAttackCompleted, map[string]any{"id": "2"}))
	require.Empty(t, bus.Publish(ctx, eventbus.TopicHashCracked, map[string]any{"id": "3"}))
}
