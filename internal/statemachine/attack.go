package statemachine

// AttackState is one of the six states an Attack can occupy (spec §3).
type AttackState string

const (
	AttackPending   AttackState = "pending"
	AttackRunning   AttackState = "running"
	AttackPaused    AttackState = "paused"
	AttackCompleted AttackState = "completed"
	AttackFailed    AttackState = "failed"
	AttackAbandoned AttackState = "abandoned"
)

func (s AttackState) String() string { return string(s) }

// Attack actions (spec §4.3). RUNNING->COMPLETED and RUNNING->FAILED are
// system-driven only and have no corresponding action entry.
const (
	AttackActionStart      = "start"
	AttackActionPause      = "pause"
	AttackActionResume     = "resume"
	AttackActionRetry      = "retry"
	AttackActionAbandon    = "abandon"
	AttackActionAbort      = "abort"
	AttackActionReactivate = "reactivate"
)

// Attack is the package singleton AttackState machine. COMPLETED is the
// only terminal state — its successor set is empty.
var Attack = New[AttackState](
	"attack",
	map[AttackState]map[AttackState]struct{}{
		AttackPending:   {AttackRunning: {}, AttackAbandoned: {}},
		AttackRunning:   {AttackPaused: {}, AttackCompleted: {}, AttackFailed: {}, AttackAbandoned: {}},
		AttackPaused:    {AttackRunning: {}, AttackAbandoned: {}},
		AttackCompleted: {},
		AttackFailed:    {AttackPending: {}},
		AttackAbandoned: {AttackPending: {}},
	},
	map[string]map[AttackState]AttackState{
		AttackActionStart:   {AttackPending: AttackRunning},
		AttackActionPause:   {AttackRunning: AttackPaused},
		AttackActionResume:  {AttackPaused: AttackRunning},
		AttackActionRetry:   {AttackFailed: AttackPending},
		AttackActionAbandon: {AttackPending: AttackAbandoned},
		AttackActionAbort: {
			AttackRunning: AttackAbandoned,
			AttackPaused:  AttackAbandoned,
		},
		AttackActionReactivate: {AttackAbandoned: AttackPending},
	},
	func(s AttackState) string { return string(s) },
)
