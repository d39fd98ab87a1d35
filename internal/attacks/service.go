// Package attacks implements C8: attack CRUD, lifecycle actions, keyspace
// estimation, and resource-availability validation. Service holds the
// business logic; Handlers (handlers.go) is the HTTP adapter.
package attacks

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/statemachine"
)

// Service implements the Attacks subsystem's business logic.
type Service struct {
	store domain.Store
	authz *authz.Checker
	bus   *eventbus.Bus
}

func NewService(store domain.Store, checker *authz.Checker, bus *eventbus.Bus) *Service {
	return &Service{store: store, authz: checker, bus: bus}
}

// List returns attacks visible to userID under f, joined to the campaign's
// project for access scoping.
func (s *Service) List(ctx context.Context, userID int64, f domain.AttackFilter) ([]domain.Attack, int, error) {
	accessible, err := s.authz.AccessibleProjects(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if len(accessible) == 0 {
		return nil, 0, apperr.New(apperr.ProjectAccessDenied, "you have no accessible projects")
	}
	f.AccessibleProject = accessible
	return s.store.ListAttacks(ctx, f)
}

func (s *Service) campaignFor(ctx context.Context, userID, attackID int64) (*domain.Attack, *domain.Campaign, error) {
	a, err := s.store.GetAttack(ctx, attackID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.store.GetCampaign(ctx, a.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authz.ValidateAttackAccess(ctx, userID, c); err != nil {
		return nil, nil, err
	}
	return a, c, nil
}

func (s *Service) Get(ctx context.Context, userID, id int64) (*domain.Attack, error) {
	a, _, err := s.campaignFor(ctx, userID, id)
	return a, err
}

// CreateInput is the validated POST /attacks body.
type CreateInput struct {
	CampaignID       int64
	Name             string
	AttackMode       domain.AttackMode
	Position         int
	WordListID       *uuid.UUID
	RuleListID       *uuid.UUID
	MaskListID       *uuid.UUID
	LeftRule         *string
	Mask             string
	HashListURL      *string
	HashListChecksum *string
}

func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*domain.Attack, error) {
	c, err := s.store.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateCampaignAccess(ctx, userID, c); err != nil {
		return nil, err
	}
	a := &domain.Attack{
		CampaignID:       in.CampaignID,
		Name:             in.Name,
		AttackMode:       in.AttackMode,
		Position:         in.Position,
		State:            domain.AttackState(statemachine.AttackPending),
		WordListID:       in.WordListID,
		RuleListID:       in.RuleListID,
		MaskListID:       in.MaskListID,
		LeftRule:         in.LeftRule,
		Mask:             in.Mask,
		HashListURL:      in.HashListURL,
		HashListChecksum: in.HashListChecksum,
	}
	created, err := s.store.CreateAttack(ctx, a)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicAttackCreated, created)
	return created, nil
}

// UpdateInput is the validated PATCH /attacks/{id} body.
type UpdateInput struct {
	Name       *string
	Position   *int
	WordListID *uuid.UUID
	RuleListID *uuid.UUID
	MaskListID *uuid.UUID
	LeftRule   *string
	Mask       *string
}

func (s *Service) Update(ctx context.Context, userID, id int64, in UpdateInput) (*domain.Attack, error) {
	a, _, err := s.campaignFor(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if a.State == domain.AttackState(statemachine.AttackRunning) {
		return nil, apperr.New(apperr.InvalidResourceState, "cannot modify an attack while it is running")
	}
	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Position != nil {
		a.Position = *in.Position
	}
	if in.WordListID != nil {
		a.WordListID = in.WordListID
	}
	if in.RuleListID != nil {
		a.RuleListID = in.RuleListID
	}
	if in.MaskListID != nil {
		a.MaskListID = in.MaskListID
	}
	if in.LeftRule != nil {
		a.LeftRule = in.LeftRule
	}
	if in.Mask != nil {
		a.Mask = *in.Mask
	}
	if err := s.store.UpdateAttack(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, eventbus.TopicAttackUpdated, a)
	return a, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	a, _, err := s.campaignFor(ctx, userID, id)
	if err != nil {
		return err
	}
	if a.State == domain.AttackState(statemachine.AttackRunning) {
		return apperr.New(apperr.InvalidResourceState, "cannot delete an attack while it is running")
	}
	if err := s.store.DeleteAttack(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, eventbus.TopicAttackDeleted, a)
	return nil
}

// apiActionToMachineAction maps the Control API's four verbs onto the
// statemachine's action set. "stop" has no 1:1 statemachine action name —
// it is the {RUNNING,PAUSED}->ABANDONED edge, which the machine calls "abort".
func apiActionToMachineAction(action string) (string, bool) {
	switch action {
	case "start":
		return statemachine.AttackActionStart, true
	case "pause":
		return statemachine.AttackActionPause, true
	case "resume":
		return statemachine.AttackActionResume, true
	case "stop":
		return statemachine.AttackActionAbort, true
	default:
		return "", false
	}
}

// Action runs the named lifecycle action. Attack lifecycle is strict (spec
// §4.3): unlike campaigns, a same-state call is a real 409, never a no-op.
func (s *Service) Action(ctx context.Context, userID, id int64, action string) (*domain.Attack, error) {
	a, _, err := s.campaignFor(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	machineAction, ok := apiActionToMachineAction(action)
	if !ok {
		return nil, apperr.NewStateTransition(apperr.StateTransitionParams{
			CurrentState: string(a.State),
			Action:       action,
			EntityType:   "attack",
			Detail:       fmt.Sprintf("unknown action '%s' for attack", action),
		})
	}
	from := statemachine.AttackState(a.State)
	to, err := statemachine.Attack.ValidateAction(from, machineAction)
	if err != nil {
		return nil, err
	}
	a.State = domain.AttackState(to)
	if err := s.store.UpdateAttack(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, topicForAttackAction(action), a)
	return a, nil
}

func topicForAttackAction(action string) string {
	if action == "start" || action == "resume" {
		return eventbus.TopicAttackStarted
	}
	return eventbus.TopicAttackUpdated
}

// ValidationReport is the POST /attacks/validate response shape.
type ValidationReport struct {
	Valid               bool                 `json:"valid"`
	Errors              []string             `json:"errors"`
	Warnings            []string             `json:"warnings"`
	ResourceAvailability []ResourceAvailability `json:"resource_availability"`
}

// ResourceAvailability is one entry of ValidationReport.ResourceAvailability.
type ResourceAvailability struct {
	ResourceID string  `json:"resource_id"`
	Status     string  `json:"status"` // available | not_found | unavailable
	Name       *string `json:"name,omitempty"`
}

// ValidateInput is the POST /attacks/validate body: a would-be attack
// configuration, not necessarily yet persisted.
type ValidateInput struct {
	CampaignID int64
	AttackMode domain.AttackMode
	WordListID *uuid.UUID
	RuleListID *uuid.UUID
	MaskListID *uuid.UUID
}

// Validate is a pure pre-flight check: it never mutates state, and never
// fails the HTTP request for an invalid config — readiness goes in the body.
func (s *Service) Validate(ctx context.Context, userID int64, in ValidateInput) (*ValidationReport, error) {
	c, err := s.store.GetCampaign(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ValidateCampaignAccess(ctx, userID, c); err != nil {
		return nil, err
	}

	report := &ValidationReport{Errors: []string{}, Warnings: []string{}, ResourceAvailability: []ResourceAvailability{}}
	for _, kind := range []struct {
		label string
		id    *uuid.UUID
	}{{"Wordlist", in.WordListID}, {"Rule list", in.RuleListID}, {"Mask list", in.MaskListID}} {
		if kind.id == nil {
			continue
		}
		r, err := s.store.GetResource(ctx, *kind.id)
		entry := ResourceAvailability{ResourceID: kind.id.String()}
		switch {
		case err != nil:
			entry.Status = "not_found"
			report.Errors = append(report.Errors, fmt.Sprintf("%s %s not found", kind.label, kind.id.String()))
		case !r.IsUploaded:
			entry.Status = "unavailable"
			entry.Name = &r.FileName
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s %s is not yet uploaded", kind.label, r.FileName))
		default:
			entry.Status = "available"
			entry.Name = &r.FileName
		}
		report.ResourceAvailability = append(report.ResourceAvailability, entry)
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// EstimateInput is the POST /attacks/estimate body: attack_mode plus the
// fields relevant to that mode's keyspace math.
type EstimateInput struct {
	AttackMode domain.AttackMode
	Mask       string
}

// EstimateResult is the POST /attacks/estimate response shape.
type EstimateResult struct {
	Keyspace        int64   `json:"keyspace"`
	ComplexityScore float64 `json:"complexity_score"`
}

// Estimate is a pure function: no store access, no side effects (spec §2,
// "hashcat-specific keyspace/complexity math ... a pure function with a
// typed contract").
func Estimate(in EstimateInput) (*EstimateResult, error) {
	var keyspace int64
	switch in.AttackMode {
	case domain.AttackModeMask, domain.AttackModeHybridDictMask, domain.AttackModeHybridMaskDict:
		ks, err := maskKeyspace(in.Mask)
		if err != nil {
			return nil, apperr.New(apperr.InvalidAttackConfig, err.Error())
		}
		keyspace = ks
	default:
		keyspace = 0
	}
	return &EstimateResult{
		Keyspace:        keyspace,
		ComplexityScore: complexityScore(keyspace),
	}, nil
}

// maskCharsetSizes are the hashcat built-in charset sizes this system
// estimates against: ?l lower, ?u upper, ?d digit, ?s special, ?h lower
// hex, ?a all-printable.
var maskCharsetSizes = map[byte]int64{
	'l': 26,
	'u': 26,
	'd': 10,
	's': 33,
	'h': 16,
	'a': 95,
	'b': 256,
}

// maskKeyspace computes the product of per-position charset sizes for a
// hashcat mask string, e.g. "?d?d?d?d" -> 10^4. Literal (non-?X) characters
// each contribute a charset of size 1.
func maskKeyspace(mask string) (int64, error) {
	var keyspace int64 = 1
	for i := 0; i < len(mask); i++ {
		if mask[i] != '?' {
			continue
		}
		if i+1 >= len(mask) {
			return 0, fmt.Errorf("mask ends with a dangling '?'")
		}
		size, ok := maskCharsetSizes[mask[i+1]]
		if !ok {
			return 0, fmt.Errorf("unknown mask charset '?%c'", mask[i+1])
		}
		keyspace *= size
		i++
	}
	return keyspace, nil
}

// complexityScore is a monotone, bounded-away-from-zero transform of
// keyspace so "harder" configs always score higher without overflowing for
// enormous keyspaces.
func complexityScore(keyspace int64) float64 {
	if keyspace <= 0 {
		return 0
	}
	return math.Log10(float64(keyspace) + 1)
}

// Metrics is the GET /attacks/{id}/metrics response shape.
type Metrics struct {
	HashesPerSec float64 `json:"hashes_per_sec"`
	TotalHashes  int64   `json:"total_hashes"`
	AgentCount   int     `json:"agent_count"`
}

func (s *Service) Metrics(ctx context.Context, userID, id int64) (*Metrics, error) {
	a, c, err := s.campaignFor(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksForAttack(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	agents := map[int64]struct{}{}
	var totalHashes int64
	for _, t := range tasks {
		totalHashes += t.KeyspaceProcessed()
		if t.AgentID != nil {
			agents[*t.AgentID] = struct{}{}
		}
	}
	activeAgents, err := s.store.CountActiveAgentsForCampaign(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	hashesPerSec := 0.0
	if activeAgents > 0 {
		hashesPerSec = float64(totalHashes) / 60.0
	}
	return &Metrics{HashesPerSec: hashesPerSec, TotalHashes: totalHashes, AgentCount: len(agents)}, nil
}

func (s *Service) publish(ctx context.Context, topic string, a *domain.Attack) {
	s.bus.Publish(ctx, topic, map[string]any{
		"id": a.ID, "campaign_id": a.CampaignID, "state": string(a.State), "at": time.Now().UTC(),
	})
}
