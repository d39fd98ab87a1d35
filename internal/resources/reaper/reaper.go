// Package reaper runs the periodic cleanup worker spec §4.11 describes: on
// a configurable interval, delete AttackResourceFile rows whose upload never
// completed within the configured age threshold, removing the backing
// object (if any) first. Grounded on the teacher's job-runner idiom (a
// ticking goroutine, context-cancellable, logging a per-sweep summary)
// rather than any cron library — the teacher never pulls one in for this
// shape of "do X every N minutes" worker.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/resources/objectstore"
)

// Worker periodically reaps stale, never-confirmed resource uploads.
type Worker struct {
	store    domain.Store
	objects  objectstore.Store
	interval time.Duration
	maxAge   time.Duration
	log      *slog.Logger
}

func New(store domain.Store, objects objectstore.Store, interval, maxAge time.Duration, log *slog.Logger) *Worker {
	return &Worker{store: store, objects: objects, interval: interval, maxAge: maxAge, log: log}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.maxAge)
	ids, err := w.store.ListStaleUnuploadedResourceIDs(ctx, cutoff)
	if err != nil {
		w.log.Error("reaper: failed to list stale resources", "error", err)
		return
	}

	deleted, failed := 0, 0
	for _, id := range ids {
		err := w.store.LockResourceForReap(ctx, id, func(ctx context.Context, r *domain.AttackResourceFile) error {
			if r.IsUploaded {
				return nil // uploaded since the listing query ran, leave it alone
			}
			if exists, _, statErr := w.objects.StatObject(ctx, w.objects.KeyFor(id)); statErr != nil {
				return statErr
			} else if exists {
				if rmErr := w.objects.RemoveObject(ctx, w.objects.KeyFor(id)); rmErr != nil {
					return rmErr
				}
			}
			return w.store.DeleteResource(ctx, id)
		})
		if err != nil {
			failed++
			w.log.Warn("reaper: failed to reap resource", "resource_id", id, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 || failed > 0 {
		w.log.Info("reaper: sweep complete", "deleted", deleted, "errors", failed)
	}
}
