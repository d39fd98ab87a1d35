package eventbus_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

func TestSubscribePublishUnsubscribe_RoundTrip(t *testing.T) {
	b := eventbus.New()
	calls := 0
	h := func(ctx context.Context, payload map[string]any) error {
		calls++
		return nil
	}

	b.Subscribe("campaign.created", "counter", h)
	b.Publish(context.Background(), "campaign.created", map[string]any{"id": 1})
	assert.Equal(t, 1, calls)

	b.Unsubscribe("campaign.created", "counter")
	b.Publish(context.Background(), "campaign.created", map[string]any{"id": 2})
	assert.Equal(t, 1, calls, "handler must not be called after unsubscribe")
}

func TestPublish_NoHandlers_IsNoopEmptySlice(t *testing.T) {
	b := eventbus.New()
	failures := b.Publish(context.Background(), "nothing.subscribed", nil)
	assert.Empty(t, failures)
}

func TestPublish_HandlerFailureIsolation(t *testing.T) {
	b := eventbus.New()
	var order []string

	b.Subscribe("t", "ok-1", func(ctx context.Context, p map[string]any) error {
		order = append(order, "ok-1")
		return nil
	})
	b.Subscribe("t", "boom", func(ctx context.Context, p map[string]any) error {
		order = append(order, "boom")
		return errors.New("boom failed")
	})
	b.Subscribe("t", "ok-2", func(ctx context.Context, p map[string]any) error {
		order = append(order, "ok-2")
		return nil
	})

	failures := b.Publish(context.Background(), "t", nil)

	require.Len(t, failures, 1)
	assert.Equal(t, "boom", failures[0].HandlerName)
	assert.Equal(t, "t", failures[0].EventType)
	assert.Equal(t, []string{"ok-1", "boom", "ok-2"}, order, "a failing handler must not block later handlers")
}

func TestPublish_HandlerPanicIsRecordedNotFatal(t *testing.T) {
	b := eventbus.New()
	b.Subscribe("t", "panics", func(ctx context.Context, p map[string]any) error {
		panic("handler exploded")
	})
	failures := b.Publish(context.Background(), "t", nil)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "panicked")
}

// TestPublish_OrderingProperty is a gopter property test: for any sequence of
// N handlers, Publish invokes them in exactly subscription order and the
// returned failure list names exactly the handlers that errored — spec §8,
// "Quantified invariants".
func TestPublish_OrderingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("handlers run in subscription order; failures match the failing subset", prop.ForAll(
		func(failMask []bool) bool {
			b := eventbus.New()
			var observed []string
			var wantFailures []string

			for i, fails := range failMask {
				name := fmt.Sprintf("h%d", i)
				idx := i
				shouldFail := fails
				b.Subscribe("topic", name, func(ctx context.Context, p map[string]any) error {
					observed = append(observed, name)
					if shouldFail {
						return fmt.Errorf("handler %d failed", idx)
					}
					return nil
				})
				if fails {
					wantFailures = append(wantFailures, name)
				}
			}

			got := b.Publish(context.Background(), "topic", nil)

			var gotNames []string
			for _, f := range got {
				gotNames = append(gotNames, f.HandlerName)
			}

			orderOK := len(observed) == len(failMask)
			for i, name := range observed {
				if name != fmt.Sprintf("h%d", i) {
					orderOK = false
				}
			}

			return orderOK && equalStrings(gotNames, wantFailures)
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
