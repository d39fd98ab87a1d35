package attacks_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/attacks"
	"github.com/ouroboros-project/ouroboros/internal/authz"
	"github.com/ouroboros-project/ouroboros/internal/domain"
	"github.com/ouroboros-project/ouroboros/internal/eventbus"
	"github.com/ouroboros-project/ouroboros/internal/statemachine"
)

type fakeStore struct {
	domain.Store
	memberships map[int64][]domain.ProjectMembership
	campaigns   map[int64]*domain.Campaign
	attacks     map[int64]*domain.Attack
	resources   map[uuid.UUID]*domain.AttackResourceFile
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		memberships: map[int64][]domain.ProjectMembership{},
		campaigns:   map[int64]*domain.Campaign{},
		attacks:     map[int64]*domain.Attack{},
		resources:   map[uuid.UUID]*domain.AttackResourceFile{},
	}
}

func (f *fakeStore) MembershipsForUser(ctx context.Context, userID int64) ([]domain.ProjectMembership, error) {
	return f.memberships[userID], nil
}

func (f *fakeStore) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, apperr.New(apperr.CampaignNotFound, "not found")
	}
	return c, nil
}

func (f *fakeStore) GetAttack(ctx context.Context, id int64) (*domain.Attack, error) {
	a, ok := f.attacks[id]
	if !ok {
		return nil, apperr.New(apperr.AttackNotFound, "not found")
	}
	return a, nil
}

func (f *fakeStore) CreateAttack(ctx context.Context, a *domain.Attack) (*domain.Attack, error) {
	f.nextID++
	a.ID = f.nextID
	f.attacks[a.ID] = a
	return a, nil
}

func (f *fakeStore) UpdateAttack(ctx context.Context, a *domain.Attack) error {
	f.attacks[a.ID] = a
	return nil
}

func (f *fakeStore) DeleteAttack(ctx context.Context, id int64) error {
	delete(f.attacks, id)
	return nil
}

func (f *fakeStore) ListAttacks(ctx context.Context, filter domain.AttackFilter) ([]domain.Attack, int, error) {
	var out []domain.Attack
	for _, a := range f.attacks {
		out = append(out, *a)
	}
	return out, len(out), nil
}

func (f *fakeStore) GetResource(ctx context.Context, id uuid.UUID) (*domain.AttackResourceFile, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, apperr.New(apperr.ResourceNotFound, "not found")
	}
	return r, nil
}

func (f *fakeStore) ListTasksForAttack(ctx context.Context, attackID int64) ([]domain.Task, error) {
	return nil, nil
}

func (f *fakeStore) CountActiveAgentsForCampaign(ctx context.Context, campaignID int64) (int, error) {
	return 0, nil
}

func newService(t *testing.T) (*attacks.Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.memberships[1] = []domain.ProjectMembership{{ProjectID: 10, UserID: 1, Role: "member"}}
	store.campaigns[1] = &domain.Campaign{ID: 1, ProjectID: 10}
	checker := authz.New(store)
	bus := eventbus.New()
	return attacks.NewService(store, checker, bus), store
}

func TestCreate_CreatesPendingAttack(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), 1, attacks.CreateInput{
		CampaignID: 1, Name: "dict pass", AttackMode: domain.AttackModeDictionary,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AttackState(statemachine.AttackPending), a.State)
}

func TestUpdate_RejectsWhileRunning(t *testing.T) {
	svc, store := newService(t)
	store.attacks[1] = &domain.Attack{ID: 1, CampaignID: 1, State: domain.AttackState(statemachine.AttackRunning)}
	_, err := svc.Update(context.Background(), 1, 1, attacks.UpdateInput{})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidResourceState, appErr.Kind)
}

func TestAction_StartPendingToRunning(t *testing.T) {
	svc, store := newService(t)
	store.attacks[1] = &domain.Attack{ID: 1, CampaignID: 1, State: domain.AttackState(statemachine.AttackPending)}
	a, err := svc.Action(context.Background(), 1, 1, "start")
	require.NoError(t, err)
	assert.Equal(t, domain.AttackState(statemachine.AttackRunning), a.State)
}

func TestAction_StartOnAlreadyRunningIsStrict409(t *testing.T) {
	svc, store := newService(t)
	store.attacks[1] = &domain.Attack{ID: 1, CampaignID: 1, State: domain.AttackState(statemachine.AttackRunning)}
	_, err := svc.Action(context.Background(), 1, 1, "start")
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidStateTransition, appErr.Kind)
	assert.Equal(t, 409, appErr.Status())
}

func TestAction_StopFromRunningOrPausedGoesToAbandoned(t *testing.T) {
	svc, store := newService(t)
	store.attacks[1] = &domain.Attack{ID: 1, CampaignID: 1, State: domain.AttackState(statemachine.AttackPaused)}
	a, err := svc.Action(context.Background(), 1, 1, "stop")
	require.NoError(t, err)
	assert.Equal(t, domain.AttackState(statemachine.AttackAbandoned), a.State)
}

func TestAction_StartPauseResumeReturnsToRunning(t *testing.T) {
	svc, store := newService(t)
	store.attacks[1] = &domain.Attack{ID: 1, CampaignID: 1, State: domain.AttackState(statemachine.AttackPending)}
	_, err := svc.Action(context.Background(), 1, 1, "start")
	require.NoError(t, err)
	_, err = svc.Action(context.Background(), 1, 1, "pause")
	require.NoError(t, err)
	a, err := svc.Action(context.Background(), 1, 1, "resume")
	require.NoError(t, err)
	assert.Equal(t, domain.AttackState(statemachine.AttackRunning), a.State)
}

func TestValidate_ClassifiesMissingAndUnavailableResources(t *testing.T) {
	svc, store := newService(t)
	wordListID := uuid.New()
	ruleListID := uuid.New()
	store.resources[wordListID] = &domain.AttackResourceFile{ID: wordListID, FileName: "rockyou.txt", IsUploaded: false}

	report, err := svc.Validate(context.Background(), 1, attacks.ValidateInput{
		CampaignID: 1, AttackMode: domain.AttackModeDictionary,
		WordListID: &wordListID, RuleListID: &ruleListID,
	})
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Len(t, report.ResourceAvailability, 2)

	var sawUnavailable, sawNotFound bool
	for _, ra := range report.ResourceAvailability {
		if ra.Status == "unavailable" {
			sawUnavailable = true
		}
		if ra.Status == "not_found" {
			sawNotFound = true
		}
	}
	assert.True(t, sawUnavailable)
	assert.True(t, sawNotFound)
}

func TestEstimate_MaskKeyspaceIsProductOfCharsetSizes(t *testing.T) {
	result, err := attacks.Estimate(attacks.EstimateInput{AttackMode: domain.AttackModeMask, Mask: "?d?d?d?d"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), result.Keyspace)
	assert.Greater(t, result.ComplexityScore, 0.0)
}

func TestEstimate_RejectsUnknownCharset(t *testing.T) {
	_, err := attacks.Estimate(attacks.EstimateInput{AttackMode: domain.AttackModeMask, Mask: "?x"})
	require.Error(t, err)
	var appErr *apperr.Error
	require.True(t, apperr.As(err, &appErr))
	assert.Equal(t, apperr.InvalidAttackConfig, appErr.Kind)
}
