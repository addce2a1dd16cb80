package fault

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Kind identifies the class of a system fault.
type Kind string

const (
	PayloadTooLarge   Kind = "PayloadTooLarge"
	PathTraversal     Kind = "PathTraversal"
	ArchiveTooLarge   Kind = "ArchiveTooLarge"
	ExtractionFailure Kind = "ExtractionFailure"
	FillError         Kind = "FillError"
	IOFailure         Kind = "IOFailure"
	ConfigError       Kind = "ConfigError"
)

const maxFrames = 16

// Fault is a classified system failure.
type Fault struct {
	Kind    Kind
	Stage   string
	Op      string
	Message string
	Err     error
	Frames  []string
}

// New builds a fault without an underlying cause.
func New(kind Kind, stage, op, message string) *Fault {
	return build(kind, stage, op, message, nil)
}

// Wrap tags err with kind and stage context. Wrapping an existing fault keeps
// its original kind and frames so the first classification wins.
func Wrap(kind Kind, stage, op, message string, err error) *Fault {
	var existing *Fault
	if errors.As(err, &existing) {
		return existing
	}
	return build(kind, stage, op, message, err)
}

func build(kind Kind, stage, op, message string, err error) *Fault {
	return &Fault{
		Kind:    kind,
		Stage:   strings.TrimSpace(stage),
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Err:     err,
		Frames:  callers(3),
	}
}

func (f *Fault) Error() string {
	if f == nil {
		return "<nil fault>"
	}
	detail := buildDetail(f.Stage, f.Op, f.Message)
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, detail, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, detail)
}

func (f *Fault) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Err
}

// Is matches another fault of the same kind, so errors.Is(err, fault.New(k, ...))
// and errors.Is(err, Marker(k)) work for classification.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if !errors.As(target, &other) || other == nil || f == nil {
		return false
	}
	return other.Kind == f.Kind && other.Stage == "" && other.Op == "" && other.Message == ""
}

// Marker returns a bare fault usable as an errors.Is target.
func Marker(kind Kind) error {
	return &Fault{Kind: kind}
}

// KindOf classifies err. Unclassified errors are reported as IOFailure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) && f != nil && f.Kind != "" {
		return f.Kind
	}
	return IOFailure
}

// As extracts the outermost fault from err, classifying plain errors as
// IOFailure attributed to stage.
func As(err error, stage string) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) && f != nil {
		return f
	}
	return build(IOFailure, stage, "", "unclassified failure", err)
}

// Chain lists the messages of every error in the wrap chain, outermost first.
func Chain(err error) []string {
	var out []string
	for err != nil {
		if f, ok := err.(*Fault); ok {
			out = append(out, fmt.Sprintf("%s: %s", f.Kind, buildDetail(f.Stage, f.Op, f.Message)))
		} else {
			out = append(out, err.Error())
		}
		err = errors.Unwrap(err)
	}
	return out
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

func callers(skip int) []string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, trimPath(frame.File), frame.Line))
		}
		if !more {
			break
		}
	}
	return out
}

func trimPath(file string) string {
	if idx := strings.LastIndex(file, "/internal/"); idx >= 0 {
		return file[idx+1:]
	}
	if idx := strings.LastIndex(file, "/"); idx >= 0 {
		return file[idx+1:]
	}
	return file
}
