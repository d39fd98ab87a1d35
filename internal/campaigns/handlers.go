package campaigns

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
// /api/v1/control/campaigns.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// Register attaches every campaign route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/control/campaigns", api.Handle(h.list))
	mux.Handle("POST /api/v1/control/campaigns", api.Handle(h.create))
	mux.Handle("GET /api/v1/control/campaigns/{id}", api.Handle(h.get))
	mux.Handle("PATCH /api/v1/control/campaigns/{id}", api.Handle(h.update))
	mux.Handle("DELETE /api/v1/control/campaigns/{id}", api.Handle(h.delete))
	mux.Handle("POST /api/v1/control/campaigns/{id}/validate", api.Handle(h.validate))
	mux.Handle("POST /api/v1/control/campaigns/{id}/attacks/reorder", api.Handle(h.reorder))
	mux.Handle("GET /api/v1/control/campaigns/{id}/progress", api.Handle(h.progress))
	mux.Handle("GET /api/v1/control/campaigns/{id}/metrics", api.Handle(h.metrics))
	for _, action := range []string{"start", "stop", "pause", "resume", "archive", "unarchive"} {
		action := action
		mux.Handle("POST /api/v1/control/campaigns/{id}/"+action, api.Handle(h.action(action)))
	}
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
		return 0, apperr.New(apperr.CampaignNotFound, "invalid campaign id")
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
	f := domain.CampaignFilter{Limit: limit, Offset: offset}
	if name := r.URL.Query().Get("name"); name != "" {
		f.Name = &name
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		projectID, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return apperr.New(apperr.ValidationError, "project_id must be an integer")
		}
		f.ProjectID = &projectID
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
		ProjectID   int64  `json:"project_id"`
		HashListID  int64  `json:"hash_list_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Priority    int    `json:"priority"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	created, err := h.svc.Create(r.Context(), userID, CreateInput{
		ProjectID: body.ProjectID, HashListID: body.HashListID, Name: body.Name,
		Description: body.Description, Priority: body.Priority,
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
	c, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, c)
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
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Priority    *int    `json:"priority"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	updated, err := h.svc.Update(r.Context(), userID, id, UpdateInput{
		Name: body.Name, Description: body.Description, Priority: body.Priority,
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

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	report, err := h.svc.Validate(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) action(action string) api.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		userID, err := userIDFrom(r)
		if err != nil {
			return err
		}
		id, err := pathID(r)
		if err != nil {
			return err
		}
		c, err := h.svc.Action(r.Context(), userID, id, action)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, c)
	}
}

func (h *Handlers) reorder(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	var body struct {
		AttackOrder []struct {
			AttackID int64 `json:"attack_id"`
			Priority int   `json:"priority"`
		} `json:"attack_order"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	order := make([]domain.AttackPriority, len(body.AttackOrder))
	for i, entry := range body.AttackOrder {
		order[i] = domain.AttackPriority{AttackID: entry.AttackID, Priority: entry.Priority}
	}
	if err := h.svc.ReorderAttacks(r.Context(), userID, id, order); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handlers) progress(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	p, err := h.svc.Progress(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) metrics(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	id, err := pathID(r)
	if err != nil {
		return err
	}
	m, err := h.svc.Metrics(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, m)
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
