package hashlists

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/api/pageparams"
	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

// Handlers is the HTTP adapter over Service, registered under
// /api/v1/control/hash-lists.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/control/hash-lists", api.Handle(h.list))
	mux.Handle("POST /api/v1/control/hash-lists", api.Handle(h.create))
	mux.Handle("GET /api/v1/control/hash-lists/{id}", api.Handle(h.get))
	mux.Handle("PATCH /api/v1/control/hash-lists/{id}", api.Handle(h.update))
	mux.Handle("DELETE /api/v1/control/hash-lists/{id}", api.Handle(h.delete))
	mux.Handle("GET /api/v1/control/hash-lists/{id}/items", api.Handle(h.items))
	mux.Handle("GET /api/v1/control/hash-lists/{id}/export/plaintext", api.Handle(h.exportPlaintext))
	mux.Handle("GET /api/v1/control/hash-lists/{id}/export/potfile", api.Handle(h.exportPotfile))
	mux.Handle("GET /api/v1/control/hash-lists/{id}/export/csv", api.Handle(h.exportCSV))
}

func userIDFrom(r *http.Request) (int64, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.User == nil {
		return 0, apperr.New(apperr.InsufficientPermissions, "authentication required")
	}
	return p.User.ID, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, apperr.New(apperr.HashListNotFound, "invalid hash list id")
	}
	return id, nil
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	limit, offset, err := pageparams.ParseLimitOffset(r.URL.Query(), 20)
	if err != nil {
		return err
	}
	f := domain.HashListFilter{Limit: limit, Offset: offset}
	if name := r.URL.Query().Get("name"); name != "" {
		f.Name = &name
	}
	items, total, err := h.svc.List(r.Context(), userID, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, pageparams.NewOffsetPaginated(items, total, limit, offset))
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	var body struct {
		ProjectID   *int64 `json:"project_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		HashTypeID  int    `json:"hash_type_id"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	created, err := h.svc.Create(r.Context(), userID, CreateInput{
		ProjectID: body.ProjectID, Name: body.Name, Description: body.Description, HashTypeID: body.HashTypeID,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	hl, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, hl)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var body struct {
		Name          *string `json:"name"`
		Description   *string `json:"description"`
		IsUnavailable *bool   `json:"is_unavailable"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	updated, err := h.svc.Update(r.Context(), userID, id, UpdateInput{
		Name: body.Name, Description: body.Description, IsUnavailable: body.IsUnavailable,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handlers) items(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	limit, offset, err := pageparams.ParseLimitOffset(r.URL.Query(), 50)
	if err != nil {
		return err
	}
	f := domain.HashItemFilter{Limit: limit, Offset: offset}
	if search := r.URL.Query().Get("search"); search != "" {
		f.Search = &search
	}
	if status := r.URL.Query().Get("status"); status != "" {
		f.Status = &status
	}
	items, total, err := h.svc.Items(r.Context(), userID, id, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, pageparams.NewOffsetPaginated(items, total, limit, offset))
}

func (h *Handlers) exportPlaintext(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	export, err := h.svc.ExportPlaintext(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, export)
}

func (h *Handlers) exportPotfile(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	export, err := h.svc.ExportPotfile(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, export)
}

func (h *Handlers) exportCSV(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	includeUncracked := r.URL.Query().Get("include_uncracked") == "true"
	export, err := h.svc.ExportCSV(r.Context(), userID, id, includeUncracked)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, export)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
