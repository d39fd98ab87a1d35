// Package domain holds the entity types shared by every subsystem (spec
// §3) and the Store interface each subsystem's service is built against.
// Store is intentionally one wide interface rather than one per subsystem:
// the teacher's persistence layer (pkg/store/ledger) takes the same
// approach — one store, many typed accessor methods — and subsystems here
// are small enough that splitting the interface would only add indirection.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Project is the top-level tenancy boundary.
type Project struct {
	ID   int64
	Name string
}

// ProjectMembership links a user to a project with a role.
type ProjectMembership struct {
	ProjectID int64
	UserID    int64
	Role      string
}

// User is a Control API principal.
type User struct {
	ID          int64
	Email       string
	Name        string
	IsActive    bool
	IsSuperuser bool
}

// APIKey is a bearer-auth credential (SPEC_FULL §3). The secret is never
// stored in the clear — only HashedSecret, a bcrypt digest.
type APIKey struct {
	ID           int64
	UserID       int64
	HashedSecret string
	CreatedAt    time.Time
	RevokedAt    *time.Time
}

func (k APIKey) Revoked() bool { return k.RevokedAt != nil }

// HashList is a named collection of hashes, scoped to one project or global.
type HashList struct {
	ID            int64
	ProjectID     *int64 // nil = global
	Name          string
	Description   string
	HashTypeID    int
	IsUnavailable bool
}

type HashItem struct {
	ID         int64
	HashListID int64
	Hash       string
	Salt       *string
	PlainText  *string
}

func (h HashItem) Cracked() bool { return h.PlainText != nil }

type CampaignState string

type Campaign struct {
	ID          int64
	ProjectID   int64
	HashListID  int64
	Name        string
	Description string
	Priority    int
	State       CampaignState
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AttackMode string

const (
	AttackModeDictionary      AttackMode = "dictionary"
	AttackModeMask            AttackMode = "mask"
	AttackModeHybridDictMask  AttackMode = "hybrid_dict_mask"
	AttackModeHybridMaskDict  AttackMode = "hybrid_mask_dict"
)

type AttackState string

type Attack struct {
	ID                int64
	CampaignID        int64
	Name              string
	AttackMode        AttackMode
	Position          int
	State             AttackState
	WordListID        *uuid.UUID
	RuleListID        *uuid.UUID
	MaskListID        *uuid.UUID
	LeftRule          *string
	HashListURL       *string
	HashListChecksum  *string
	Mask              string // mask pattern for attack_mode=mask, e.g. "?d?d?d?d"
}

type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskRunning   TaskStatus = "RUNNING"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskFailed    TaskStatus = "FAILED"
	TaskAbandoned TaskStatus = "ABANDONED"
)

type Task struct {
	ID             int64
	AttackID       int64
	AgentID        *int64
	Status         TaskStatus
	Progress       float64 // 0.0-100.0
	KeyspaceTotal  int64
}

func (t Task) KeyspaceProcessed() int64 {
	return int64(float64(t.KeyspaceTotal) * t.Progress / 100.0)
}

type AgentState string

const (
	AgentActive  AgentState = "active"
	AgentIdle    AgentState = "idle"
	AgentOffline AgentState = "offline"
	AgentError   AgentState = "error"
)

type Agent struct {
	ID       int64
	HostName string
	Enabled  bool
	State    AgentState
}

type ResourceType string

const (
	ResourceWordList ResourceType = "word_list"
	ResourceRuleList ResourceType = "rule_list"
	ResourceMaskList ResourceType = "mask_list"
	// Ephemeral types hold their content inline (domain.AttackResourceFile.Content)
	// rather than in object storage.
	ResourceEphemeralWordList ResourceType = "ephemeral_word_list"
	ResourceEphemeralRuleList ResourceType = "ephemeral_rule_list"
)

// IsEphemeral reports whether rt stores its content inline.
func (rt ResourceType) IsEphemeral() bool {
	switch rt {
	case ResourceEphemeralWordList, ResourceEphemeralRuleList:
		return true
	default:
		return false
	}
}

type ResourceContent struct {
	Lines []string
}

type AttackResourceFile struct {
	ID           uuid.UUID
	ProjectID    *int64 // nil = global/unrestricted
	FileName     string
	FileLabel    *string
	ResourceType ResourceType
	LineFormat   string
	LineEncoding string
	UsedForModes []AttackMode
	Source       string
	LineCount    int64
	ByteSize     int64
	Checksum     string
	Guid         uuid.UUID
	IsUploaded   bool
	Tags         []string
	Content      *ResourceContent
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Store is the persistence contract every subsystem service is built
// against. Concrete implementations live in internal/db (Postgres, with a
// SQLite lite-mode fallback).
type Store interface {
	// Projects / users / memberships
	GetProject(ctx context.Context, id int64) (*Project, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	MembershipsForUser(ctx context.Context, userID int64) ([]ProjectMembership, error)

	// API keys
	GetAPIKey(ctx context.Context, id int64) (*APIKey, error)
	CreateAPIKey(ctx context.Context, k *APIKey) (*APIKey, error)
	RevokeAPIKey(ctx context.Context, id int64) error

	// Hash lists
	GetHashList(ctx context.Context, id int64) (*HashList, error)
	CreateHashList(ctx context.Context, h *HashList) (*HashList, error)
	UpdateHashList(ctx context.Context, h *HashList) error
	DeleteHashList(ctx context.Context, id int64) error
	ListHashLists(ctx context.Context, f HashListFilter) ([]HashList, int, error)
	ListHashItems(ctx context.Context, hashListID int64, f HashItemFilter) ([]HashItem, int, error)
	CountCampaignsReferencingHashList(ctx context.Context, hashListID int64) (int, error)

	// Campaigns
	GetCampaign(ctx context.Context, id int64) (*Campaign, error)
	CreateCampaign(ctx context.Context, c *Campaign) (*Campaign, error)
	UpdateCampaign(ctx context.Context, c *Campaign) error
	DeleteCampaign(ctx context.Context, id int64) error
	ListCampaigns(ctx context.Context, f CampaignFilter) ([]Campaign, int, error)

	// Attacks
	GetAttack(ctx context.Context, id int64) (*Attack, error)
	CreateAttack(ctx context.Context, a *Attack) (*Attack, error)
	UpdateAttack(ctx context.Context, a *Attack) error
	DeleteAttack(ctx context.Context, id int64) error
	ListAttacks(ctx context.Context, f AttackFilter) ([]Attack, int, error)
	ReorderAttacks(ctx context.Context, campaignID int64, order []AttackPriority) error
	CountAttacksReferencingResource(ctx context.Context, resourceID uuid.UUID) (int, error)
	ListAttacksReferencingResource(ctx context.Context, resourceID uuid.UUID) ([]Attack, error)

	// Tasks
	GetTask(ctx context.Context, id int64) (*Task, error)
	ListTasksForAttack(ctx context.Context, attackID int64) ([]Task, error)
	CountActiveAgentsForCampaign(ctx context.Context, campaignID int64) (int, error)

	// Resources
	GetResource(ctx context.Context, id uuid.UUID) (*AttackResourceFile, error)
	CreateResource(ctx context.Context, r *AttackResourceFile) (*AttackResourceFile, error)
	UpdateResource(ctx context.Context, r *AttackResourceFile) error
	DeleteResource(ctx context.Context, id uuid.UUID) error
	ListResources(ctx context.Context, f ResourceFilter) ([]AttackResourceFile, int, error)
	ListStaleUnuploadedResourceIDs(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
	LockResourceForReap(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, r *AttackResourceFile) error) error
}

// AttackPriority is one entry of a reorder request.
type AttackPriority struct {
	AttackID int64
	Priority int
}

type CampaignFilter struct {
	Name              *string
	ProjectID         *int64
	AccessibleProject map[int64]struct{}
	Limit, Offset     int
}

type AttackFilter struct {
	CampaignID        *int64
	State             *AttackState
	AccessibleProject map[int64]struct{}
	Limit, Offset     int
}

type HashListFilter struct {
	Name              *string
	ProjectID         *int64
	AccessibleProject map[int64]struct{}
	Limit, Offset     int
}

type HashItemFilter struct {
	Search        *string
	Status        *string // "cracked" | "uncracked"
	Limit, Offset int
}

type ResourceFilter struct {
	ResourceType      *ResourceType
	ProjectID         *int64
	Search            *string
	AccessibleProject map[int64]struct{}
	Superuser         bool
	Limit, Offset     int
}
