package pipeline

import (
	"fmt"
	"io"
	"strings"

	"templatefiller/internal/fault"
	"templatefiller/internal/packaging"
	"templatefiller/internal/records"
	"templatefiller/internal/schema"
	"templatefiller/internal/validate"
)

// Mode selects whether a session validates before filling.
type Mode string

const (
	ModeCheck   Mode = "check"
	ModeNocheck Mode = "nocheck"
)

// ParseMode maps a textual mode to a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeCheck:
		return ModeCheck, nil
	case ModeNocheck, "no-check", "no_check":
		return ModeNocheck, nil
	default:
		return "", fmt.Errorf("unknown mode %q", value)
	}
}

// State is a session's position in the pipeline.
type State = records.State

const (
	StateReceived  = records.StateReceived
	StateExtracted = records.StateExtracted
	StateValidated = records.StateValidated
	StateFilled    = records.StateFilled
	StatePackaged  = records.StatePackaged
	StateReady     = records.StateReady
	StateFailed    = records.StateFailed
	StateRejected  = records.StateRejected
)

// Request is one upload to process.
type Request struct {
	Mode     Mode
	FileName string
	Body     io.Reader
	// PostProcessors run after every text fill rule in this session.
	PostProcessors []schema.FillSpec
}

// PostProcessors builds the optional apostrophe and dialect rules a caller
// selected. Blank values select nothing.
func PostProcessors(apostrophe, dialect string) []schema.FillSpec {
	var specs []schema.FillSpec
	if v := strings.TrimSpace(apostrophe); v != "" {
		specs = append(specs, schema.FillSpec{Name: "apostrophe", Params: map[string]string{"preference": v}})
	}
	if v := strings.TrimSpace(dialect); v != "" {
		specs = append(specs, schema.FillSpec{Name: "dialect", Params: map[string]string{"dialect": v}})
	}
	return specs
}

// Session is the in-memory view of a finished run.
type Session struct {
	ID    string
	Mode  Mode
	State State
}

// Outcome is the result of a session. Exactly one of three shapes holds:
// Fault set (failed), Output set (ready), or neither (rejected with
// Diagnostics). Ready check-mode sessions may still carry warnings.
type Outcome struct {
	Session     Session
	Diagnostics []validate.Diagnostic
	Output      *packaging.Output
	Fault       *fault.Fault
}

// Ready reports whether an output archive was produced.
func (o Outcome) Ready() bool {
	return o.Fault == nil && o.Output != nil
}

// Rejected reports whether check-mode diagnostics blocked packaging.
func (o Outcome) Rejected() bool {
	return o.Fault == nil && o.Output == nil
}

// Label names the outcome for logs and metrics.
func (o Outcome) Label() string {
	switch {
	case o.Fault != nil:
		return string(StateFailed)
	case o.Output != nil:
		return string(StateReady)
	default:
		return string(StateRejected)
	}
}
