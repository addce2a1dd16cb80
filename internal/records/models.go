package records

import (
	"errors"
	"time"
)

// State is the position of a session in the pipeline.
type State string

const (
	StateReceived  State = "received"
	StateExtracted State = "extracted"
	StateValidated State = "validated"
	StateFilled    State = "filled"
	StatePackaged  State = "packaged"
	StateReady     State = "ready"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

var knownStates = map[State]struct{}{
	StateReceived:  {},
	StateExtracted: {},
	StateValidated: {},
	StateFilled:    {},
	StatePackaged:  {},
	StateReady:     {},
	StateFailed:    {},
	StateRejected:  {},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := knownStates[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	switch s {
	case StateReady, StateFailed, StateRejected:
		return true
	}
	return false
}

// AllStates returns the states in pipeline order.
func AllStates() []State {
	return []State{
		StateReceived,
		StateExtracted,
		StateValidated,
		StateFilled,
		StatePackaged,
		StateReady,
		StateFailed,
		StateRejected,
	}
}

var (
	// ErrTerminal reports a transition attempted on a finished session.
	ErrTerminal = errors.New("session already in a terminal state")
	// ErrUnknownSession reports a transition on an id that was never created.
	ErrUnknownSession = errors.New("unknown session")
	// ErrDuplicateOutput reports a download record whose output id is taken.
	ErrDuplicateOutput = errors.New("output id already recorded")
)

// Session is the persisted view of one upload's trip through the pipeline.
type Session struct {
	ID            string
	Mode          string
	State         State
	UploadName    string
	Diagnostics   int
	ErrorKind     string
	FailureReason string
	OutputID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Detail carries the optional facts recorded alongside a transition.
// Zero values leave the stored column untouched.
type Detail struct {
	Diagnostics   int
	ErrorKind     string
	FailureReason string
	OutputID      string
}

// Transition is one entry in a session's history.
type Transition struct {
	State State
	At    time.Time
}

// Download maps an output id to the stored archive.
type Download struct {
	OutputID   string
	SessionID  string
	Backend    string
	StorageKey string
	Size       int64
	SHA256     string
	CreatedAt  time.Time
}
