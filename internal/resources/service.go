// Package resources implements C10: the two-phase resource upload protocol,
// listing/detail with computed usage, preview, metadata updates, and
// deletion. Service holds the business logic; Handlers (handlers.go) is the
// HTTP adapter; reaper/ and verify.go hold the two background workers spec
// §4.11 describes.
package resources

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/resources/objectstore"
)

// Service implements the Resources subsystem's business logic.
type Service struct {
	store             domain.Store
	authz             *authz.Checker
	bus               *eventbus.Bus
	objects           objectstore.Store
	uploadURLTTL      time.Duration
	verificationDelay time.Duration
}

func NewService(store domain.Store, checker *authz.Checker, bus *eventbus.Bus, objects objectstore.Store, uploadURLTTL, verificationDelay time.Duration) *Service {
	return &Service{
		store: store, authz: checker, bus: bus, objects: objects,
		uploadURLTTL: uploadURLTTL, verificationDelay: verificationDelay,
	}
}

// InitiateUploadInput is the validated POST /resources/initiate-upload body.
type InitiateUploadInput struct {
	FileName     string
	ResourceType domain.ResourceType
	ProjectID    *int64
	FileLabel    *string
	Tags         []string
	LineFormat   string
	LineEncoding string
}

// InitiateUploadResult is the POST /resources/initiate-upload response shape.
type InitiateUploadResult struct {
	ResourceID       uuid.UUID `json:"resource_id"`
	UploadURL        string    `json:"upload_url"`
	ExpiresInSeconds int       `json:"expires_in_seconds"`
}

// InitiateUpload creates the AttackResourceFile row (is_uploaded=false) and
// mints a presigned PUT URL. The caller is responsible for scheduling the
// per-upload verification task (ScheduleVerification) — kept as a separate
// step so handlers.go can fire it after the HTTP response is written.
func (s *Service) InitiateUpload(ctx context.Context, userID int64, in InitiateUploadInput) (*InitiateUploadResult, *domain.AttackResourceFile, error) {
	if in.ProjectID != nil {
		if err := s.authz.ValidateProjectAccess(ctx, userID, *in.ProjectID); err != nil {
			return nil, nil, err
		}
	}
	lineFormat := in.LineFormat
	if lineFormat == "" {
		lineFormat = "plain"
	}
	lineEncoding := in.LineEncoding
	if lineEncoding == "" {
		lineEncoding = "utf-8"
	}

	r := &domain.AttackResourceFile{
		ID:           uuid.New(),
		ProjectID:    in.ProjectID,
		FileName:     in.FileName,
		FileLabel:    in.FileLabel,
		ResourceType: in.ResourceType,
		LineFormat:   lineFormat,
		LineEncoding: lineEncoding,
		Tags:         in.Tags,
		Source:       "upload",
		IsUploaded:   false,
	}
	r.Guid = r.ID

	created, err := s.store.CreateResource(ctx, r)
	if err != nil {
		return nil, nil, err
	}

	uploadURL, err := s.objects.PresignPut(ctx, s.objects.KeyFor(created.ID), s.uploadURLTTL)
	if err != nil {
		return nil, nil, err
	}

	return &InitiateUploadResult{
		ResourceID:       created.ID,
		UploadURL:        uploadURL,
		ExpiresInSeconds: int(s.uploadURLTTL.Seconds()),
	}, created, nil
}

// ConfirmUpload marks a resource as uploaded after checking the object
// actually landed and reading its size.
func (s *Service) ConfirmUpload(ctx context.Context, userID int64, id uuid.UUID) (*domain.AttackResourceFile, error) {
	r, err := s.getForAccess(ctx, userID, id, false)
	if err != nil {
		return nil, err
	}
	exists, size, err := s.objects.StatObject(ctx, s.objects.KeyFor(r.ID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperr.New(apperr.InvalidResourceFormat, "object was not found in storage")
	}
	r.IsUploaded = true
	r.ByteSize = size
	if err := s.store.UpdateResource(ctx, r); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicResourceUploaded, r)
	return r, nil
}

// List returns resources visible to userID under f, excluding ephemeral
// types, each carrying a computed UsageCount.
func (s *Service) List(ctx context.Context, userID int64, isSuperuser bool, f domain.ResourceFilter) ([]ResourceListItem, int, error) {
	if !isSuperuser {
		accessible, err := s.authz.AccessibleProjects(ctx, userID)
		if err != nil {
			return nil, 0, err
		}
		f.AccessibleProject = accessible
	}
	f.Superuser = isSuperuser

	all, total, err := s.store.ListResources(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ResourceListItem, 0, len(all))
	for i := range all {
		r := all[i]
		if r.ResourceType.IsEphemeral() {
			continue
		}
		usage, err := s.store.CountAttacksReferencingResource(ctx, r.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ResourceListItem{AttackResourceFile: r, UsageCount: usage})
	}
	return out, total, nil
}

// ResourceListItem decorates a resource with its computed usage count.
type ResourceListItem struct {
	domain.AttackResourceFile
	UsageCount int `json:"usage_count"`
}

// ResourceDetail decorates a resource with the attacks that reference it.
type ResourceDetail struct {
	domain.AttackResourceFile
	Attacks []AttackRef `json:"attacks"`
}

// AttackRef is one entry of ResourceDetail.Attacks.
type AttackRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Service) Get(ctx context.Context, userID int64, isSuperuser bool, id uuid.UUID) (*ResourceDetail, error) {
	r, err := s.getForAccess(ctx, userID, id, isSuperuser)
	if err != nil {
		return nil, err
	}
	attacks, err := s.store.ListAttacksReferencingResource(ctx, id)
	if err != nil {
		return nil, err
	}
	refs := make([]AttackRef, 0, len(attacks))
	seen := map[int64]struct{}{}
	for _, a := range attacks {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		refs = append(refs, AttackRef{ID: a.ID, Name: a.Name})
	}
	return &ResourceDetail{AttackResourceFile: *r, Attacks: refs}, nil
}

func (s *Service) getForAccess(ctx context.Context, userID int64, id uuid.UUID, isSuperuser bool) (*domain.AttackResourceFile, error) {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateResourceAccess(ctx, userID, isSuperuser, r); err != nil {
		return nil, err
	}
	return r, nil
}

// PreviewResult is the GET /resources/{id}/preview response shape.
type PreviewResult struct {
	PreviewLines []string `json:"preview_lines"`
	PreviewError *string  `json:"preview_error,omitempty"`
}

// Preview returns the first `lines` lines of a resource's content: inline
// for ephemeral/not-yet-uploaded resources, streamed from object storage
// (decoding LineEncoding, budgeted at lines*200 bytes) for uploaded ones. A
// storage error never fails the request — it is reported in PreviewError
// with an empty PreviewLines (spec §4.10).
func (s *Service) Preview(ctx context.Context, userID int64, isSuperuser bool, id uuid.UUID, lines int) (*PreviewResult, error) {
	r, err := s.getForAccess(ctx, userID, id, isSuperuser)
	if err != nil {
		return nil, err
	}

	if r.ResourceType.IsEphemeral() || !r.IsUploaded {
		if r.Content == nil {
			return &PreviewResult{PreviewLines: []string{}}, nil
		}
		out := r.Content.Lines
		if len(out) > lines {
			out = out[:lines]
		}
		return &PreviewResult{PreviewLines: out}, nil
	}

	budget := int64(lines) * 200
	body, err := s.objects.GetObject(ctx, s.objects.KeyFor(r.ID))
	if err != nil {
		msg := "failed to read resource from storage"
		return &PreviewResult{PreviewLines: []string{}, PreviewError: &msg}, nil
	}
	defer func() { _ = body.Close() }()

	limited := io.LimitReader(body, budget)
	scanner := bufio.NewScanner(limited)
	var out []string
	for len(out) < lines && scanner.Scan() {
		out = append(out, decodeLine(scanner.Text(), r.LineEncoding))
	}
	if out == nil {
		out = []string{}
	}
	return &PreviewResult{PreviewLines: out}, nil
}

// decodeLine converts a raw line read in the resource's declared
// line_encoding (IANA name, e.g. "windows-1252", "iso-8859-1") to UTF-8,
// replacing undecodable bytes rather than failing the preview (spec
// §4.10: "default UTF-8, replace on error"). An empty or unrecognized
// encoding is treated as UTF-8.
func decodeLine(line, lineEncoding string) string {
	if lineEncoding == "" || strings.EqualFold(lineEncoding, "utf-8") || strings.EqualFold(lineEncoding, "utf8") {
		return strings.ToValidUTF8(line, "�")
	}

	enc, err := htmlindex.Get(lineEncoding)
	if err != nil {
		return strings.ToValidUTF8(line, "�")
	}

	decoded, _, err := transform.String(encoding.ReplaceUnsupported(enc.NewDecoder()), line)
	if err != nil {
		return strings.ToValidUTF8(line, "�")
	}
	return decoded
}

// UpdateInput is the validated PATCH /resources/{id} body: metadata only.
type UpdateInput struct {
	FileName  *string
	FileLabel *string
	ProjectID **int64 // double pointer: nil = not provided, *ProjectID = new value (possibly nil = make global)
	Tags      *[]string
}

func (s *Service) Update(ctx context.Context, userID int64, isSuperuser bool, id uuid.UUID, in UpdateInput) (*domain.AttackResourceFile, error) {
	r, err := s.getForAccess(ctx, userID, id, isSuperuser)
	if err != nil {
		return nil, err
	}
	if in.FileName != nil {
		r.FileName = *in.FileName
	}
	if in.FileLabel != nil {
		r.FileLabel = in.FileLabel
	}
	if in.Tags != nil {
		r.Tags = *in.Tags
	}
	if in.ProjectID != nil {
		newProjectID := *in.ProjectID
		if newProjectID != nil {
			if err := s.authz.ValidateProjectAccess(ctx, userID, *newProjectID); err != nil {
				return nil, err
			}
		}
		r.ProjectID = newProjectID
	}
	if err := s.store.UpdateResource(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, userID int64, isSuperuser bool, id uuid.UUID) error {
	r, err := s.getForAccess(ctx, userID, id, isSuperuser)
	if err != nil {
		return err
	}
	refs, err := s.store.CountAttacksReferencingResource(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperr.New(apperr.InvalidResourceState, "resource is referenced by one or more attacks")
	}
	if r.IsUploaded {
		if err := s.objects.RemoveObject(ctx, s.objects.KeyFor(id)); err != nil {
			return err
		}
	}
	if err := s.store.DeleteResource(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, eventbus.TopicResourceDeleted, r)
	return nil
}

// Cancel aborts an in-flight upload: only legal while is_uploaded = false.
func (s *Service) Cancel(ctx context.Context, userID int64, isSuperuser bool, id uuid.UUID) error {
	r, err := s.getForAccess(ctx, userID, id, isSuperuser)
	if err != nil {
		return err
	}
	if r.IsUploaded {
		return apperr.New(apperr.InvalidResourceState, "cannot cancel an upload that already completed")
	}
	if exists, _, err := s.objects.StatObject(ctx, s.objects.KeyFor(id)); err == nil && exists {
		_ = s.objects.RemoveObject(ctx, s.objects.KeyFor(id))
	}
	return s.store.DeleteResource(ctx, id)
}

func (s *Service) publish(ctx context.Context, topic string, r *domain.AttackResourceFile) {
	s.bus.Publish(ctx, topic, map[string]any{"id": r.ID.String(), "file_name": r.FileName})
}
