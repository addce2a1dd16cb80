package fill

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/schema"
)

const stageFill = "fill"

// Policy controls how the engine proceeds after a failure.
type Policy string

const (
	FailFast   Policy = "fail_fast"
	Accumulate Policy = "accumulate"
)

// ParsePolicy maps a configured policy name to a Policy.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case FailFast:
		return FailFast, nil
	case Accumulate:
		return Accumulate, nil
	default:
		return "", fmt.Errorf("unknown fill policy %q", value)
	}
}

// Result is one output entry. Rule names the transformation applied, empty for
// pass-through copies.
type Result struct {
	SourcePath string
	Path       string
	Kind       archive.Kind
	Content    []byte
	Rule       string
}

// Failure describes a transformation that could not be applied.
type Failure struct {
	Path    string
	Rule    string
	Message string
}

func (f Failure) Error() string {
	if f.Rule == "" {
		return fmt.Sprintf("%s: %s", f.Path, f.Message)
	}
	return fmt.Sprintf("%s: %s: %s", f.Path, f.Rule, f.Message)
}

// Options tunes a single Apply run.
type Options struct {
	Policy Policy
	// PostProcessors run, in order, after every text transformation.
	PostProcessors []schema.FillSpec
}

// Engine applies fill rules. It holds no per-session state.
type Engine struct {
	registry *Registry
}

// NewEngine returns an engine backed by registry.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the engine's transformation registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Apply transforms entries according to s. The returned error is reserved for
// faults reading the workspace; transformation problems are Failures.
func (e *Engine) Apply(ctx context.Context, entries []archive.Entry, s *schema.Schema, opts Options) ([]Result, []Failure, error) {
	for _, spec := range opts.PostProcessors {
		if err := e.registry.Check(spec.Name, spec.Params); err != nil {
			return nil, nil, fault.Wrap(fault.FillError, stageFill, "post-processor", "invalid post-processor", err)
		}
	}

	lookup := newSiblingLookup(entries)
	results := make([]Result, 0, len(entries))
	var failures []Failure
	owners := make(map[string]string, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, nil, fault.Wrap(fault.IOFailure, stageFill, "apply", "fill cancelled", err)
		}
		result, failure, err := e.applyOne(ctx, entry, s, opts, lookup)
		if err != nil {
			return nil, nil, err
		}
		if failure == nil {
			if owner, taken := owners[result.Path]; taken {
				failure = &Failure{Path: entry.Path, Rule: result.Rule, Message: fmt.Sprintf("output path %q collides with %q", result.Path, owner)}
			}
		}
		if failure != nil {
			failures = append(failures, *failure)
			if opts.Policy != Accumulate {
				return results, failures, nil
			}
			continue
		}
		owners[result.Path] = entry.Path
		results = append(results, result)
	}
	return results, failures, nil
}

func (e *Engine) applyOne(ctx context.Context, entry archive.Entry, s *schema.Schema, opts Options, lookup *siblingLookup) (Result, *Failure, error) {
	if entry.IsDir() {
		return Result{SourcePath: entry.Path, Path: entry.Path, Kind: archive.KindDir}, nil, nil
	}
	content, err := lookup.read(entry.Path)
	if err != nil {
		return Result{}, nil, fault.Wrap(fault.IOFailure, stageFill, "read entry", entry.Path, err)
	}
	result := Result{SourcePath: entry.Path, Path: entry.Path, Kind: archive.KindFile, Content: content}

	rule, ok := s.Match(entry.Path)
	if !ok || rule.Fill == nil {
		return result, nil, nil
	}

	chain := []schema.FillSpec{*rule.Fill}
	if t, ok := e.registry.Lookup(rule.Fill.Name); ok && t.Text {
		chain = append(chain, opts.PostProcessors...)
	}
	for _, spec := range chain {
		out, failure := e.run(ctx, spec, result, lookup)
		if failure != nil {
			failure.Path = entry.Path
			return Result{}, failure, nil
		}
		if out.Path != "" && out.Path != result.Path {
			cleaned, err := cleanOutputPath(out.Path)
			if err != nil {
				return Result{}, &Failure{Path: entry.Path, Rule: spec.Name, Message: err.Error()}, nil
			}
			result.Path = cleaned
		}
		result.Content = out.Content
	}
	result.Rule = rule.Fill.Name
	return result, nil, nil
}

func (e *Engine) run(ctx context.Context, spec schema.FillSpec, current Result, lookup *siblingLookup) (Output, *Failure) {
	t, ok := e.registry.Lookup(spec.Name)
	if !ok {
		return Output{}, &Failure{Rule: spec.Name, Message: "no registered transformation"}
	}
	if t.Text && !utf8.Valid(current.Content) {
		return Output{}, &Failure{Rule: spec.Name, Message: "malformed encoding: content is not valid UTF-8"}
	}
	out, err := t.Apply(ctx, Input{
		Path:    current.Path,
		Content: current.Content,
		Params:  spec.Params,
		Lookup:  lookup.lookup,
	})
	if err != nil {
		return Output{}, &Failure{Rule: spec.Name, Message: err.Error()}
	}
	return out, nil
}

// cleanOutputPath keeps renamed entries inside the archive root.
func cleanOutputPath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") || (len(p) >= 2 && p[1] == ':') {
		return "", fmt.Errorf("renamed path %q is absolute", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("renamed path %q leaves the archive root", p)
		}
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "" {
		return "", fmt.Errorf("renamed path %q is empty", p)
	}
	return cleaned, nil
}

// siblingLookup gives transformations read access to other archive files.
type siblingLookup struct {
	entries map[string]archive.Entry
	cache   map[string][]byte
}

func newSiblingLookup(entries []archive.Entry) *siblingLookup {
	l := &siblingLookup{entries: make(map[string]archive.Entry, len(entries)), cache: map[string][]byte{}}
	for _, entry := range entries {
		if !entry.IsDir() {
			l.entries[entry.Path] = entry
		}
	}
	return l
}

func (l *siblingLookup) read(p string) ([]byte, error) {
	if data, ok := l.cache[p]; ok {
		return data, nil
	}
	entry, ok := l.entries[p]
	if !ok {
		return nil, fmt.Errorf("no entry %q", p)
	}
	data, err := entry.ReadAll()
	if err != nil {
		return nil, err
	}
	l.cache[p] = data
	return data, nil
}

func (l *siblingLookup) lookup(p string) ([]byte, bool) {
	data, err := l.read(path.Clean(p))
	if err != nil {
		return nil, false
	}
	return data, true
}
