package observability

import (
	"context"

	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

// Subscribe registers p's gauge instruments against the campaign/attack
// lifecycle topics, mirroring internal/audit.Subscribe's bus-wiring
// pattern: subsystems publish domain events and gain metrics for free,
// with no direct dependency on this package. Safe to call on a disabled
// Provider — the instruments are nil there, same as the teacher's
// RecordRequest/RecordError guard their counters with a nil check.
func Subscribe(bus *eventbus.Bus, p *Provider) {
	bus.Subscribe(eventbus.TopicCampaignStarted, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.activeCampaigns != nil {
			p.activeCampaigns.Add(ctx, 1)
		}
		return nil
	})
	bus.Subscribe(eventbus.TopicCampaignCompleted, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.activeCampaigns != nil {
			p.activeCampaigns.Add(ctx, -1)
		}
		return nil
	})
	bus.Subscribe(eventbus.TopicCampaignPaused, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.activeCampaigns != nil {
			p.activeCampaigns.Add(ctx, -1)
		}
		return nil
	})

	bus.Subscribe(eventbus.TopicAttackStarted, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.activeAttacks != nil {
			p.activeAttacks.Add(ctx, 1)
		}
		return nil
	})
	bus.Subscribe(eventbus.TopicAttackCompleted, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.activeAttacks != nil {
			p.activeAttacks.Add(ctx, -1)
		}
		return nil
	})

	bus.Subscribe(eventbus.TopicHashCracked, "observability", func(ctx context.Context, payload map[string]any) error {
		if p.hashesCracked != nil {
			p.hashesCracked.Add(ctx, 1)
		}
		return nil
	})
}
