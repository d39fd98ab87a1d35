// Package campaigns implements C7: campaign CRUD, lifecycle actions,
// attack reordering, validation, progress, and metrics. Service holds the
// business logic; Handlers (handlers.go) is the HTTP adapter.
package campaigns

import (
	"context"
	"time"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/statemachine"
)

// Service implements the Campaigns subsystem's business logic.
type Service struct {
	store domain.Store
	authz *authz.Checker
	bus   *eventbus.Bus
}

func NewService(store domain.Store, checker *authz.Checker, bus *eventbus.Bus) *Service {
	return &Service{store: store, authz: checker, bus: bus}
}

// List returns campaigns visible to userID under f. An empty accessible-
// project set is "no access" (spec §4.7: "Empty accessible set -> 403").
func (s *Service) List(ctx context.Context, userID int64, f domain.CampaignFilter) ([]domain.Campaign, int, error) {
	accessible, err := s.authz.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(accessible) == 0 {
		return nil, 0, apperr.New(apperr.ProjectAccessDenied, "you have no accessible projects")
	}
	if f.ProjectID != nil {
		if _, ok := accessible[*f.ProjectID]; !ok {
			return nil, 0, apperr.New(apperr.ProjectAccessDenied, "you do not have access to this project")
		}
	}
	f.AccessibleProject = accessible
	return s.store.ListCampaigns(ctx, f)
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateCampaignAccess(ctx, userID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateInput is the validated POST /campaigns body.
type CreateInput struct {
	ProjectID   int64
	HashListID  int64
	Name        string
	Description string
	Priority    int
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*domain.Campaign, error) {
	if err := s.authz.ValidateProjectAccess(ctx, userID, in.ProjectID); err != nil {
		return nil, err
	}
	hashList, err := s.store.GetHashList(ctx, in.HashListID)
	if err != nil {
		return nil, err
	}
	if hashList.ProjectID != nil && *hashList.ProjectID != in.ProjectID {
		return nil, apperr.New(apperr.InvalidAttackConfig, "hash list does not belong to this project or a global project")
	}

	c := &domain.Campaign{
		ProjectID:   in.ProjectID,
		HashListID:  in.HashListID,
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		State:       domain.CampaignState(statemachine.CampaignDraft),
	}
	created, err := s.store.CreateCampaign(ctx, c)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicCampaignCreated, created)
	return created, nil
}

// UpdateInput is the validated PATCH /campaigns/{id} body: name, description,
// and priority only (spec §4.7).
type UpdateInput struct {
	Name        *string
	Description *string
	Priority    *int
}

func (s *Service) Update(ctx context.Context, userID, id int64, in UpdateInput) (*domain.Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.Priority != nil {
		c.Priority = *in.Priority
	}
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicCampaignUpdated, c)
	return c, nil
}

var deletableStates = map[domain.CampaignState]struct{}{
	domain.CampaignState(statemachine.CampaignDraft):     {},
	domain.CampaignState(statemachine.CampaignCompleted): {},
	domain.CampaignState(statemachine.CampaignArchived):  {},
	domain.CampaignState(statemachine.CampaignError):     {},
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if _, ok := deletableStates[c.State]; !ok {
		return apperr.New(apperr.InvalidResourceState, "campaign must be draft, completed, archived, or error to delete")
	}
	if err := s.store.DeleteCampaign(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, eventbus.TopicCampaignDeleted, c)
	return nil
}

// ValidationReport is the POST /campaigns/{id}/validate response shape.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (s *Service) Validate(ctx context.Context, userID, id int64) (*ValidationReport, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	report := &ValidationReport{Errors: []string{}, Warnings: []string{}}

	hashList, err := s.store.GetHashList(ctx, c.HashListID)
	if err != nil {
		report.Errors = append(report.Errors, "hash list not found")
	} else if hashList.IsUnavailable {
		report.Errors = append(report.Errors, "hash list is unavailable")
	}

	_, total, err := s.store.ListAttacks(ctx, domain.AttackFilter{CampaignID: &id, Limit: 1, Offset: 0})
	if err != nil {
		return nil, err
	}
	if total == 0 {
		report.Errors = append(report.Errors, "campaign has no attacks")
	}

	switch c.State {
	case domain.CampaignState(statemachine.CampaignActive):
		report.Warnings = append(report.Warnings, "campaign is already active")
	case domain.CampaignState(statemachine.CampaignPaused):
		report.Warnings = append(report.Warnings, "campaign is paused and can be resumed")
	}

	activeAgents, err := s.store.CountActiveAgentsForCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if activeAgents == 0 {
		report.Warnings = append(report.Warnings, "no active agents are assigned to this campaign")
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// Action runs the named lifecycle action against the campaign state
// machine. Some actions are idempotent at this layer (spec §4.3): start or
// resume on an ACTIVE campaign, pause on a PAUSED one, archive on an
// ARCHIVED one and stop on a DRAFT one succeed without a transition rather
// than 409ing (see idempotentNoOp); every other undefined action fails.
func (s *Service) Action(ctx context.Context, userID, id int64, action string) (*domain.Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	from := statemachine.CampaignState(c.State)
	to, actErr := statemachine.Campaign.ValidateAction(from, action)
	if actErr != nil {
		if idempotentNoOp(from, action) {
			return c, nil
		}
		return nil, actErr
	}

	c.State = domain.CampaignState(to)
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, topicForCampaignAction(action), c)
	return c, nil
}

// idempotentNoOp reports whether action, though not defined for from,
// represents "already in the requested terminal state" rather than a real
// violation — e.g. calling start on an already-ACTIVE campaign.
func idempotentNoOp(from statemachine.CampaignState, action string) bool {
	switch action {
	case statemachine.CampaignActionStart:
		return from == statemachine.CampaignActive
	case statemachine.CampaignActionPause:
		return from == statemachine.CampaignPaused
	case statemachine.CampaignActionResume:
		return from == statemachine.CampaignActive
	case statemachine.CampaignActionArchive:
		return from == statemachine.CampaignArchived
	case statemachine.CampaignActionStop:
		return from == statemachine.CampaignDraft
	default:
		return false
	}
}

func topicForCampaignAction(action string) string {
	switch action {
	case statemachine.CampaignActionStart, statemachine.CampaignActionResume:
		return eventbus.TopicCampaignStarted
	case statemachine.CampaignActionPause:
		return eventbus.TopicCampaignPaused
	default:
		return eventbus.TopicCampaignUpdated
	}
}

func (s *Service) ReorderAttacks(ctx context.Context, userID, id int64, order []domain.AttackPriority) error {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	for _, entry := range order {
		if _, err := s.store.GetAttack(ctx, entry.AttackID); err != nil {
			return err
		}
	}
	return s.store.ReorderAttacks(ctx, c.ID, order)
}

// Progress is the GET /campaigns/{id}/progress response shape.
type Progress struct {
	ActiveAgents int `json:"active_agents"`
	TotalTasks   int `json:"total_tasks"`
}

func (s *Service) Progress(ctx context.Context, userID, id int64) (*Progress, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	activeAgents, err := s.store.CountActiveAgentsForCampaign(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	attacks, _, err := s.store.ListAttacks(ctx, domain.AttackFilter{CampaignID: &c.ID, Limit: 100, Offset: 0})
	if err != nil {
		return nil, err
	}
	totalTasks := 0
	for _, a := range attacks {
		tasks, err := s.store.ListTasksForAttack(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		totalTasks += len(tasks)
	}
	return &Progress{ActiveAgents: activeAgents, TotalTasks: totalTasks}, nil
}

// Metrics is the GET /campaigns/{id}/metrics response shape.
type Metrics struct {
	TotalHashes     int     `json:"total_hashes"`
	CrackedHashes   int     `json:"cracked_hashes"`
	UncrackedHashes int     `json:"uncracked_hashes"`
	PercentCracked  float64 `json:"percent_cracked"`
	ProgressPercent float64 `json:"progress_percent"`
}

func (s *Service) Metrics(ctx context.Context, userID, id int64) (*Metrics, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	_, crackedTotal, err := s.store.ListHashItems(ctx, c.HashListID, domain.HashItemFilter{Status: strPtr("cracked"), Limit: 1})
	if err != nil {
		return nil, err
	}
	_, uncrackedTotal, err := s.store.ListHashItems(ctx, c.HashListID, domain.HashItemFilter{Status: strPtr("uncracked"), Limit: 1})
	if err != nil {
		return nil, err
	}
	total := crackedTotal + uncrackedTotal
	percentCracked := 0.0
	if total > 0 {
		percentCracked = 100.0 * float64(crackedTotal) / float64(total)
	}

	attacks, _, err := s.store.ListAttacks(ctx, domain.AttackFilter{CampaignID: &c.ID, Limit: 100, Offset: 0})
	if err != nil {
		return nil, err
	}
	var processed, keyspace int64
	for _, a := range attacks {
		tasks, err := s.store.ListTasksForAttack(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			processed += t.KeyspaceProcessed()
			keyspace += t.KeyspaceTotal
		}
	}
	progressPercent := 0.0
	if keyspace > 0 {
		progressPercent = 100.0 * float64(processed) / float64(keyspace)
	}

	return &Metrics{
		TotalHashes:     total,
		CrackedHashes:   crackedTotal,
		UncrackedHashes: uncrackedTotal,
		PercentCracked:  percentCracked,
		ProgressPercent: progressPercent,
	}, nil
}

func (s *Service) publish(ctx context.Context, topic string, c *domain.Campaign) {
	s.bus.Publish(ctx, topic, map[string]any{
		"id": c.ID, "project_id": c.ProjectID, "state": string(c.State), "at": time.Now().UTC(),
	})
}

func strPtr(s string) *string { return &s }
