package fault_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"templatefiller/internal/fault"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("disk full")
	err := fault.Wrap(fault.IOFailure, "packaging", "store", "write output", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	if !errors.Is(err, fault.Marker(fault.IOFailure)) {
		t.Fatalf("expected marker match, got %v", err)
	}
	if errors.Is(err, fault.Marker(fault.FillError)) {
		t.Fatal("unexpected match against another kind")
	}
	msg := err.Error()
	for _, fragment := range []string{"IOFailure", "packaging", "store", "write output", "disk full"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
	if len(err.Frames) == 0 {
		t.Fatal("expected captured call frames")
	}
}

func TestWrapKeepsFirstClassification(t *testing.T) {
	inner := fault.New(fault.PathTraversal, "intake", "normalize", "entry escapes workspace")
	outer := fault.Wrap(fault.IOFailure, "pipeline", "run", "extract", fmt.Errorf("extract: %w", inner))
	if outer.Kind != fault.PathTraversal {
		t.Fatalf("expected PathTraversal to survive rewrapping, got %s", outer.Kind)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want fault.Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), fault.IOFailure},
		{"fault", fault.New(fault.ArchiveTooLarge, "intake", "", ""), fault.ArchiveTooLarge},
		{"wrapped", fmt.Errorf("ctx: %w", fault.New(fault.ConfigError, "schema", "", "")), fault.ConfigError},
	}
	for _, tc := range cases {
		if got := fault.KindOf(tc.err); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestChainListsCauses(t *testing.T) {
	err := fault.Wrap(fault.FillError, "fill", "uppercase", "a.txt", errors.New("malformed encoding"))
	chain := fault.Chain(err)
	if len(chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %v", chain)
	}
	if chain[1] != "malformed encoding" {
		t.Fatalf("unexpected cause entry %q", chain[1])
	}
}
