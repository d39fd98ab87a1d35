package resources

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ScheduleVerification launches the per-upload verification described in
// spec §4.11: after the presigned URL's expected window, confirm the object
// actually landed. The rule is conservative throughout — any uncertainty
// (a storage error, a row that's vanished, an object that's already there)
// means "do nothing", never "delete". Only a confirmed-absent object on a
// still-unconfirmed row gets cleaned up, and that is exactly the state the
// periodic reaper (reaper/reaper.go) would also eventually reap — this just
// catches it sooner.
func (s *Service) ScheduleVerification(id uuid.UUID, log *slog.Logger) {
	go func() {
		time.Sleep(s.verificationDelay)
		s.verifyUpload(context.Background(), id, log)
	}()
}

func (s *Service) verifyUpload(ctx context.Context, id uuid.UUID, log *slog.Logger) {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return // deleted, or a lookup error — either way there's nothing to verify
	}
	if r.IsUploaded {
		return // confirmed through ConfirmUpload before the timer fired
	}

	exists, _, err := s.objects.StatObject(ctx, s.objects.KeyFor(id))
	if err != nil {
		log.Warn("resource upload verification: storage error, leaving row in place", "resource_id", id, "error", err)
		return
	}
	if exists {
		// the client PUT the object but never called confirm-upload; leave it
		// for an explicit confirm or for the age-based reaper to catch later.
		return
	}

	if err := s.store.DeleteResource(ctx, id); err != nil {
		log.Warn("resource upload verification: failed to delete unconfirmed row", "resource_id", id, "error", err)
	}
}
