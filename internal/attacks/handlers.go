package attacks

import (
	"encoding/json"
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
// /api/v1/control/attacks.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/v1/control/attacks", api.Handle(h.list))
	mux.Handle("POST /api/v1/control/attacks", api.Handle(h.create))
	mux.Handle("POST /api/v1/control/attacks/validate", api.Handle(h.validate))
	mux.Handle("POST /api/v1/control/attacks/estimate", api.Handle(h.estimate))
	mux.Handle("GET /api/v1/control/attacks/{id}", api.Handle(h.get))
	mux.Handle("PATCH /api/v1/control/attacks/{id}", api.Handle(h.update))
	mux.Handle("DELETE /api/v1/control/attacks/{id}", api.Handle(h.delete))
	mux.Handle("GET /api/v1/control/attacks/{id}/metrics", api.Handle(h.metrics))
	for _, action := range []string{"start", "stop", "pause", "resume"} {
		action := action
		mux.Handle("POST /api/v1/control/attacks/{id}/"+action, api.Handle(h.action(action)))
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
		return 0, apperr.New(apperr.AttackNotFound, "invalid attack id")
	}
	return id, nil
}

func parseUUIDField(raw string, label string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.New(apperr.ValidationError, label+" must be a valid UUID")
	}
	return &id, nil
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
	f := domain.AttackFilter{Limit: limit, Offset: offset}
	if raw := r.URL.Query().Get("campaign_id"); raw != "" {
		campaignID, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			return apperr.New(apperr.ValidationError, "campaign_id must be an integer")
		}
		f.CampaignID = &campaignID
	}
	if raw := r.URL.Query().Get("state"); raw != "" {
		state := domain.AttackState(raw)
		f.State = &state
	}
	items, total, err := h.svc.List(r.Context(), userID, f)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, pageparams.NewOffsetPaginated(items, total, limit, offset))
}

type attackBody struct {
	CampaignID       int64             `json:"campaign_id"`
	Name             string            `json:"name"`
	AttackMode       domain.AttackMode `json:"attack_mode"`
	Position         int               `json:"position"`
	WordListID       string            `json:"word_list_id"`
	RuleListID       string            `json:"rule_list_id"`
	MaskListID       string            `json:"mask_list_id"`
	LeftRule         *string           `json:"left_rule"`
	Mask             string            `json:"mask"`
	HashListURL      *string           `json:"hash_list_url"`
	HashListChecksum *string           `json:"hash_list_checksum"`
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	var body attackBody
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	wordListID, err := parseUUIDField(body.WordListID, "word_list_id")
	if err != nil {
		return err
	}
	ruleListID, err := parseUUIDField(body.RuleListID, "rule_list_id")
	if err != nil {
		return err
	}
	maskListID, err := parseUUIDField(body.MaskListID, "mask_list_id")
	if err != nil {
		return err
	}
	created, err := h.svc.Create(r.Context(), userID, CreateInput{
		CampaignID: body.CampaignID, Name: body.Name, AttackMode: body.AttackMode, Position: body.Position,
		WordListID: wordListID, RuleListID: ruleListID, MaskListID: maskListID,
		LeftRule: body.LeftRule, Mask: body.Mask, HashListURL: body.HashListURL, HashListChecksum: body.HashListChecksum,
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
	a, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, a)
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
		Name       *string `json:"name"`
		Position   *int    `json:"position"`
		WordListID *string `json:"word_list_id"`
		RuleListID *string `json:"rule_list_id"`
		MaskListID *string `json:"mask_list_id"`
		LeftRule   *string `json:"left_rule"`
		Mask       *string `json:"mask"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	in := UpdateInput{Name: body.Name, Position: body.Position, LeftRule: body.LeftRule, Mask: body.Mask}
	if body.WordListID != nil {
		v, err := parseUUIDField(*body.WordListID, "word_list_id")
		if err != nil {
			return err
		}
		in.WordListID = v
	}
	if body.RuleListID != nil {
		v, err := parseUUIDField(*body.RuleListID, "rule_list_id")
		if err != nil {
			return err
		}
		in.RuleListID = v
	}
	if body.MaskListID != nil {
		v, err := parseUUIDField(*body.MaskListID, "mask_list_id")
		if err != nil {
			return err
		}
		in.MaskListID = v
	}
	updated, err := h.svc.Update(r.Context(), userID, id, in)
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
		a, err := h.svc.Action(r.Context(), userID, id, action)
		if err != nil {
			return err
		}
		return writeJSON(w, http.StatusOK, a)
	}
}

func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) error {
	userID, err := userIDFrom(r)
	if err != nil {
		return err
	}
	var body struct {
		CampaignID int64             `json:"campaign_id"`
		AttackMode domain.AttackMode `json:"attack_mode"`
		WordListID string            `json:"word_list_id"`
		RuleListID string            `json:"rule_list_id"`
		MaskListID string            `json:"mask_list_id"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	wordListID, err := parseUUIDField(body.WordListID, "word_list_id")
	if err != nil {
		return err
	}
	ruleListID, err := parseUUIDField(body.RuleListID, "rule_list_id")
	if err != nil {
		return err
	}
	maskListID, err := parseUUIDField(body.MaskListID, "mask_list_id")
	if err != nil {
		return err
	}
	report, err := h.svc.Validate(r.Context(), userID, ValidateInput{
		CampaignID: body.CampaignID, AttackMode: body.AttackMode,
		WordListID: wordListID, RuleListID: ruleListID, MaskListID: maskListID,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) estimate(w http.ResponseWriter, r *http.Request) error {
	if _, err := userIDFrom(r); err != nil {
		return err
	}
	var body struct {
		AttackMode domain.AttackMode `json:"attack_mode"`
		Mask       string            `json:"mask"`
	}
	if err := pageparams.DecodeStrict(r.Body, &body); err != nil {
		return err
	}
	result, err := Estimate(EstimateInput{AttackMode: body.AttackMode, Mask: body.Mask})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, result)
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
