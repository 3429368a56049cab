package batch

// State is the orchestrator's position in the batch lifecycle.
type State int

const (
	Idle State = iota
	Scanning
	PerUnit
	AwaitingDecision
	Transcoding
	Completed
	NothingToDo
	CancelledByUser
	FatalAborted
)

var stateNames = map[State]string{
	Idle:             "idle",
	Scanning:         "scanning",
	PerUnit:          "per_unit",
	AwaitingDecision: "awaiting_decision",
	Transcoding:      "transcoding",
	Completed:        "completed",
	NothingToDo:      "nothing_to_do",
	CancelledByUser:  "cancelled_by_user",
	FatalAborted:     "fatal_aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s ends a batch. A new batch may start from any
// terminal state or from Idle.
func (s State) Terminal() bool {
	switch s {
	case Completed, NothingToDo, CancelledByUser, FatalAborted:
		return true
	default:
		return false
	}
}
