package resources

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/api"
	"github.com/ouroboros-project/ouroboros/internal/api/pageparams"
	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/auth"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

// Handlers is the HTTP adapter over Service, registered under
// /api/v1/control/resources.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/control/resources", api.Handle(h.list))
	mux.Handle("POST /api/v1/control/resources/initiate-upload", api.Handle(h.initiateUpload))
	mux.Handle("POST /api/v1/control/resources/{id}/confirm-upload", api.Handle(h.confirmUpload))
	mux.Handle("GET /api/v1/control/resources/{id}", api.Handle(h.get))
	mux.Handle("GET /api/v1/control/resources/{id}/preview", api.Handle(h.preview))
	mux.Handle("PATCH /api/v1/control/resources/{id}", api.Handle(h.update))
	mux.Handle("DELETE /api/v1/control/resources/{id}", api.Handle(h.delete))
	mux.Handle("POST /api/v1/control/resources/{id}/cancel", api.Handle(h.cancel))
}

func principalFrom(r *http.Request) (int64, bool, error) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || p.User == nil {
		return 0, false, apperr.New(apperr.InsufficientPermissions, "authentication required")
	}
	return p.User.ID, p.User.IsSuperuser, nil
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.UUID{}, apperr.New(apperr.ResourceNotFound, "invalid resource id")
	}
	return id, nil
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	limit, offset, err := pageparams.ParseLimitOffset(r.URL.Query(), 20)
	if err != nil {
		return err
	}
	f := domain.ResourceFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("resource_type"); raw != "" {
		rt := domain.ResourceType(raw)
		f.ResourceType = &rt
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		projectID, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return apperr.New(apperr.ValidationError, "project_id must be an integer")
		}
		f.ProjectID = &projectID
	}
	if raw := r.URL.Query().Get("search"); raw != "" {
		f.Search = &raw
	}
	items, total, err := h.svc.List(r.Context(), userID, isSuperuser, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, pageparams.NewOffsetPaginated(items, total, limit, offset))
}

type initiateUploadBody struct {
	FileName     string              `json:"file_name"`
	ResourceType domain.ResourceType `json:"resource_type"`
	ProjectID    *int64              `json:"project_id"`
	FileLabel    *string             `json:"file_label"`
	Tags         []string            `json:"tags"`
	LineFormat   string              `json:"line_format"`
	LineEncoding string              `json:"line_encoding"`
}

func (h *Handlers) initiateUpload(w http.ResponseWriter, r *http.Request) error {
	userID, _, err := principalFrom(r)
	if err != nil {
		return err
	}
	var body initiateUploadBody
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	result, created, err := h.svc.InitiateUpload(r.Context(), userID, InitiateUploadInput{
		FileName: body.FileName, ResourceType: body.ResourceType, ProjectID: body.ProjectID,
		FileLabel: body.FileLabel, Tags: body.Tags, LineFormat: body.LineFormat, LineEncoding: body.LineEncoding,
	})
	if err != nil {
		return err
	}
	h.svc.ScheduleVerification(created.ID, slog.Default())
	return writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) confirmUpload(w http.ResponseWriter, r *http.Request) error {
	userID, _, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	res, err := h.svc.ConfirmUpload(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	res, err := h.svc.Get(r.Context(), userID, isSuperuser, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) preview(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	lines := 25
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n <= 0 {
			return apperr.New(apperr.ValidationError, "lines must be a positive integer")
		}
		lines = n
	}
	res, err := h.svc.Preview(r.Context(), userID, isSuperuser, id, lines)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	var body struct {
		FileName  *string   `json:"file_name"`
		FileLabel *string   `json:"file_label"`
		ProjectID **int64   `json:"project_id"`
		Tags      *[]string `json:"tags"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	updated, err := h.svc.Update(r.Context(), userID, isSuperuser, id, UpdateInput{
		FileName: body.FileName, FileLabel: body.FileLabel, ProjectID: body.ProjectID, Tags: body.Tags,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(r.Context(), userID, isSuperuser, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handlers) cancel(w http.ResponseWriter, r *http.Request) error {
	userID, isSuperuser, err := principalFrom(r)
	if err != nil {
		return err
	}
	id, err := pathUUID(r)
	if err != nil {
		return err
	}
	if err := h.svc.Cancel(r.Context(), userID, isSuperuser, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
