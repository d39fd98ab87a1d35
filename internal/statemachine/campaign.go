package statemachine

// CampaignState is one of the six states a Campaign can occupy (spec §3).
type CampaignState string

const (
	CampaignDraft     CampaignState = "draft"
	CampaignActive    CampaignState = "active"
	CampaignPaused    CampaignState = "paused"
	CampaignCompleted CampaignState = "completed"
	CampaignArchived  CampaignState = "archived"
	CampaignError     CampaignState = "error"
)

func (s CampaignState) String() string { return string(s) }

// Campaign actions (spec §4.3). ACTIVE->COMPLETED is system-driven only and
// has deliberately no corresponding action entry.
const (
	CampaignActionStart     = "start"
	CampaignActionStop      = "stop"
	CampaignActionPause     = "pause"
	CampaignActionResume    = "resume"
	CampaignActionArchive   = "archive"
	CampaignActionUnarchive = "unarchive"
	CampaignActionReset     = "reset"
)

// Campaign is the package singleton CampaignState machine.
var Campaign = New[CampaignState](
	"campaign",
	map[CampaignState]map[CampaignState]struct{}{
		CampaignDraft:     {CampaignActive: {}, CampaignArchived: {}},
		CampaignActive:    {CampaignPaused: {}, CampaignDraft: {}, CampaignArchived: {}, CampaignCompleted: {}},
		CampaignPaused:    {CampaignActive: {}, CampaignArchived: {}},
		CampaignCompleted: {CampaignArchived: {}},
		CampaignArchived:  {CampaignDraft: {}},
		CampaignError:     {CampaignDraft: {}},
	},
	map[string]map[CampaignState]CampaignState{
		CampaignActionStart:  {CampaignDraft: CampaignActive},
		CampaignActionStop:   {CampaignActive: CampaignDraft},
		CampaignActionPause:  {CampaignActive: CampaignPaused},
		CampaignActionResume: {CampaignPaused: CampaignActive},
		CampaignActionArchive: {
			CampaignDraft:     CampaignArchived,
			CampaignActive:    CampaignArchived,
			CampaignPaused:    CampaignArchived,
			CampaignCompleted: CampaignArchived,
		},
		// Open Question 3 (SPEC_FULL.md §9): unarchive is defined from
		// ARCHIVED only. Calling it from any other state is an
		// action-not-defined-for-state 409, which is exactly what
		// ValidateAction already returns for a key miss — no special case
		// needed here.
		CampaignActionUnarchive: {CampaignArchived: CampaignDraft},
		CampaignActionReset:     {CampaignError: CampaignDraft},
	},
	func(s CampaignState) string { return string(s) },
)
