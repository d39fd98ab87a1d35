// Package hashlists implements C9: hash list CRUD, item listing, and the
// three export formats (plaintext, potfile, CSV). Service holds the
// business logic; Handlers (handlers.go) is the HTTP adapter.
package hashlists

import (
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
)

// Service implements the Hash-Lists subsystem's business logic.
type Service struct {
	store domain.Store
	authz *authz.Checker
	bus   *eventbus.Bus
}

func NewService(store domain.Store, checker *authz.Checker, bus *eventbus.Bus) *Service {
	return &Service{store: store, authz: checker, bus: bus}
}

func (s *Service) List(ctx context.Context, userID int64, f domain.HashListFilter) ([]domain.HashList, int, error) {
	accessible, err := s.authz.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	f.AccessibleProject = accessible
	return s.store.ListHashLists(ctx, f)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.HashList, error) {
	hl, err := s.store.GetHashList(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateHashListAccess(ctx, userID, hl); err != nil {
		return nil, err
	}
	return hl, nil
}

// CreateInput is the validated POST /hash-lists body.
type CreateInput struct {
	ProjectID   *int64
	Name        string
	Description string
	HashTypeID  int
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*domain.HashList, error) {
	if in.ProjectID != nil {
		if err := s.authz.ValidateProjectAccess(ctx, userID, *in.ProjectID); err != nil {
			return nil, err
		}
	}
	hl := &domain.HashList{ProjectID: in.ProjectID, Name: in.Name, Description: in.Description, HashTypeID: in.HashTypeID}
	created, err := s.store.CreateHashList(ctx, hl)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicHashListCreated, created)
	return created, nil
}

// UpdateInput is the validated PATCH /hash-lists/{id} body.
type UpdateInput struct {
	Name          *string
	Description   *string
	IsUnavailable *bool
}

func (s *Service) Update(ctx context.Context, userID, id int64, in UpdateInput) (*domain.HashList, error) {
	hl, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		hl.Name = *in.Name
	}
	if in.Description != nil {
		hl.Description = *in.Description
	}
	if in.IsUnavailable != nil {
		hl.IsUnavailable = *in.IsUnavailable
	}
	if err := s.store.UpdateHashList(ctx, hl); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicHashListUpdated, hl)
	return hl, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	refs, err := s.store.CountCampaignsReferencingHashList(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return apperr.New(apperr.InvalidResourceState, "hash list is referenced by one or more campaigns")
	}
	return s.store.DeleteHashList(ctx, id)
}

func (s *Service) Items(ctx context.Context, userID, id int64, f domain.HashItemFilter) ([]domain.HashItem, int, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, 0, err
	}
	return s.store.ListHashItems(ctx, id, f)
}

// PlaintextExport is the GET /hash-lists/{id}/export/plaintext response shape.
type PlaintextExport struct {
	HashListID   int64  `json:"hash_list_id"`
	HashListName string `json:"hash_list_name"`
	Format       string `json:"format"`
	TotalItems   int    `json:"total_items"`
	CrackedCount int    `json:"cracked_count"`
	Content      string `json:"content"`
}

func (s *Service) ExportPlaintext(ctx context.Context, userID, id int64) (*PlaintextExport, error) {
	hl, items, err := s.allItems(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var lines []string
	cracked := 0
	for _, item := range items {
		if item.Cracked() {
			cracked++
			lines = append(lines, *item.PlainText)
		}
	}
	return &PlaintextExport{
		HashListID: hl.ID, HashListName: hl.Name, Format: "plaintext",
		TotalItems: len(items), CrackedCount: cracked, Content: strings.Join(lines, "\n"),
	}, nil
}

// PotfileExport is the GET /hash-lists/{id}/export/potfile response shape.
type PotfileExport struct {
	HashListID   int64  `json:"hash_list_id"`
	HashListName string `json:"hash_list_name"`
	Format       string `json:"format"`
	TotalItems   int    `json:"total_items"`
	CrackedCount int    `json:"cracked_count"`
	Content      string `json:"content"`
}

func (s *Service) ExportPotfile(ctx context.Context, userID, id int64) (*PotfileExport, error) {
	hl, items, err := s.allItems(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var lines []string
	cracked := 0
	for _, item := range items {
		if !item.Cracked() {
			continue
		}
		cracked++
		if item.Salt != nil {
			lines = append(lines, fmt.Sprintf("%s:%s:%s", item.Hash, *item.Salt, *item.PlainText))
		} else {
			lines = append(lines, fmt.Sprintf("%s:%s", item.Hash, *item.PlainText))
		}
	}
	return &PotfileExport{
		HashListID: hl.ID, HashListName: hl.Name, Format: "potfile",
		TotalItems: len(items), CrackedCount: cracked, Content: strings.Join(lines, "\n"),
	}, nil
}

// CSVExport is the GET /hash-lists/{id}/export/csv response shape.
type CSVExport struct {
	HashListID   int64  `json:"hash_list_id"`
	HashListName string `json:"hash_list_name"`
	Format       string `json:"format"`
	TotalItems   int    `json:"total_items"`
	CrackedCount int    `json:"cracked_count"`
	Content      string `json:"content"`
}

// ExportCSV writes rows through encoding/csv so a cracked plaintext or hash
// containing a comma, quote, or newline (passwords can contain any byte)
// gets quoted rather than corrupting the column structure.
func (s *Service) ExportCSV(ctx context.Context, userID, id int64, includeUncracked bool) (*CSVExport, error) {
	hl, items, err := s.allItems(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"id", "hash", "salt", "plaintext", "status"}); err != nil {
		return nil, apperr.Wrap(err, "failed to write CSV header")
	}
	cracked := 0
	totalRows := 0
	for _, item := range items {
		status := "uncracked"
		if item.Cracked() {
			status = "cracked"
			cracked++
		} else if !includeUncracked {
			continue
		}
		totalRows++
		salt := ""
		if item.Salt != nil {
			salt = *item.Salt
		}
		plain := ""
		if item.PlainText != nil {
			plain = *item.PlainText
		}
		row := []string{strconv.FormatInt(item.ID, 10), item.Hash, salt, plain, status}
		if err := w.Write(row); err != nil {
			return nil, apperr.Wrap(err, "failed to write CSV row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperr.Wrap(err, "failed to flush CSV output")
	}
	return &CSVExport{
		HashListID: hl.ID, HashListName: hl.Name, Format: "csv",
		TotalItems: totalRows, CrackedCount: cracked, Content: b.String(),
	}, nil
}

// allItems pages through every hash item for hl, since the export formats
// are whole-list operations unlike the paginated Items listing.
func (s *Service) allItems(ctx context.Context, userID, id int64) (*domain.HashList, []domain.HashItem, error) {
	hl, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	const pageSize = 500
	var all []domain.HashItem
	offset := 0
	for {
		items, total, err := s.store.ListHashItems(ctx, id, domain.HashItemFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, nil, err
		}
		all = append(all, items...)
		offset += len(items)
		if len(items) == 0 || offset >= total {
			break
		}
	}
	return hl, all, nil
}

func (s *Service) publish(ctx context.Context, topic string, hl *domain.HashList) {
	s.bus.Publish(ctx, topic, map[string]any{"id": hl.ID, "name": hl.Name})
}
