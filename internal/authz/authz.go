// Package authz checks project-scoped access. It is a deliberately
// simplified descendant of the teacher's relationship-graph Engine
// (pkg/authz/engine.go): that engine walks arbitrary object#relation@subject
// tuples to support groups and relation rewrites, generality this domain's
// flat project-membership model has no use for. Checker keeps the same
// "lookup, then decide" shape without the tuple graph.
package authz

import (
	"context"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

// Checker answers project-membership questions against a domain.Store.
type Checker struct {
	store domain.Store
}

func New(store domain.Store) *Checker {
	return &Checker{store: store}
}

// AccessibleProjects returns {m.project_id | m ∈ user.memberships}.
func (c *Checker) AccessibleProjects(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	memberships, err := c.store.MembershipsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load project memberships")
	}
	accessible := make(map[int64]struct{}, len(memberships))
	for _, m := range memberships {
		accessible[m.ProjectID] = struct{}{}
	}
	return accessible, nil
}

// ValidateProjectAccess fails with ProjectAccessDenied unless projectID is
// in user's accessible set. An empty accessible set is "no access" here,
// same as everywhere else this package is consulted.
func (c *Checker) ValidateProjectAccess(ctx context.Context, userID, projectID int64) error {
	accessible, err := c.AccessibleProjects(ctx, userID)
	if err != nil {
		return err
	}
	if _, ok := accessible[projectID]; !ok {
		return apperr.New(apperr.ProjectAccessDenied, "you do not have access to this project")
	}
	return nil
}

func (c *Checker) ValidateCampaignAccess(ctx context.Context, userID int64, campaign *domain.Campaign) error {
	return c.ValidateProjectAccess(ctx, userID, campaign.ProjectID)
}

func (c *Checker) ValidateAttackAccess(ctx context.Context, userID int64, campaign *domain.Campaign) error {
	return c.ValidateCampaignAccess(ctx, userID, campaign)
}

func (c *Checker) ValidateTaskAccess(ctx context.Context, userID int64, campaign *domain.Campaign) error {
	return c.ValidateCampaignAccess(ctx, userID, campaign)
}

// ValidateHashListAccess allows a null project_id through: a hash list with
// no owning project is globally accessible, same rule as resources.
func (c *Checker) ValidateHashListAccess(ctx context.Context, userID int64, hl *domain.HashList) error {
	if hl.ProjectID == nil {
		return nil
	}
	return c.ValidateProjectAccess(ctx, userID, *hl.ProjectID)
}

// ValidateResourceAccess is the one entity-scoped check with a superuser
// bypass (spec §3: "superuser shortcut is subsystem-specific; only present
// in resource listing and resource metadata updates"). Callers outside
// those two operations should use ValidateProjectAccess / the null check
// directly rather than routing through here with isSuperuser=true.
func (c *Checker) ValidateResourceAccess(ctx context.Context, userID int64, isSuperuser bool, r *domain.AttackResourceFile) error {
	if isSuperuser {
		return nil
	}
	if r.ProjectID == nil {
		return nil
	}
	return c.ValidateProjectAccess(ctx, userID, *r.ProjectID)
}
