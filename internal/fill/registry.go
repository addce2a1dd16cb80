package fill

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownRule reports a fill name with no registered transformation.
var ErrUnknownRule = errors.New("unknown fill rule")

// Input carries one entry into a transformation.
type Input struct {
	Path    string
	Content []byte
	Params  map[string]string
	// Lookup returns the content of another file in the same archive.
	Lookup func(path string) ([]byte, bool)
}

// Output is a transformation result. An empty Path keeps the input path.
type Output struct {
	Path    string
	Content []byte
}

// Func performs a transformation.
type Func func(ctx context.Context, in Input) (Output, error)

// Transform is a named, registered transformation.
type Transform struct {
	Name string
	// Text transformations require UTF-8 content.
	Text  bool
	Apply Func
	// CheckParams validates rule parameters when the schema loads.
	CheckParams func(params map[string]string) error
}

// Registry holds transformations by name. It is read-only once built and safe
// for concurrent use.
type Registry struct {
	transforms map[string]Transform
}

// NewRegistry builds a registry from transforms. Duplicate names are rejected.
func NewRegistry(transforms ...Transform) (*Registry, error) {
	r := &Registry{transforms: make(map[string]Transform, len(transforms))}
	for _, t := range transforms {
		if err := r.register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(t Transform) error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return errors.New("fill transform name is empty")
	}
	if t.Apply == nil {
		return fmt.Errorf("fill transform %q has no implementation", name)
	}
	if _, exists := r.transforms[name]; exists {
		return fmt.Errorf("fill transform %q registered twice", name)
	}
	t.Name = name
	r.transforms[name] = t
	return nil
}

// With returns a copy of the registry extended with extra transforms.
func (r *Registry) With(extra ...Transform) (*Registry, error) {
	clone := &Registry{transforms: make(map[string]Transform, len(r.transforms)+len(extra))}
	for name, t := range r.transforms {
		clone.transforms[name] = t
	}
	for _, t := range extra {
		if err := clone.register(t); err != nil {
			return nil, err
		}
	}
	return clone, nil
}

// Lookup returns the named transformation.
func (r *Registry) Lookup(name string) (Transform, bool) {
	if r == nil {
		return Transform{}, false
	}
	t, ok := r.transforms[name]
	return t, ok
}

// Check reports whether name is registered and accepts params.
func (r *Registry) Check(name string, params map[string]string) error {
	t, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRule, name)
	}
	if t.CheckParams != nil {
		if err := t.CheckParams(params); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Names lists registered transformations in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
