package fill_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"templatefiller/internal/archive"
	"templatefiller/internal/fill"
	"templatefiller/internal/schema"
)

func stage(t *testing.T, files map[string]string, dirs ...string) []archive.Entry {
	t.Helper()
	root := t.TempDir()
	var entries []archive.Entry
	for _, d := range dirs {
		entries = append(entries, archive.NewEntry(d, archive.KindDir, 0, filepath.Join(root, d)))
	}
	for name, body := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		entries = append(entries, archive.NewEntry(name, archive.KindFile, int64(len(body)), full))
	}
	return entries
}

func mustSchema(t *testing.T, doc string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(doc), fill.Builtins())
	if err != nil {
		t.Fatalf("schema.Parse: %v", err)
	}
	return s
}

func byPath(results []fill.Result) map[string]string {
	out := map[string]string{}
	for _, r := range results {
		out[r.Path] = string(r.Content)
	}
	return out
}

func TestApplyWithoutFillRulesIsIdentity(t *testing.T) {
	entries := stage(t, map[string]string{
		"a.txt":   "alpha",
		"b/c.bin": "\xff\xfe binary",
	}, "b")
	s := mustSchema(t, "version: 1\nrules:\n  - pattern: \"**\"\n")

	results, failures, err := fill.NewEngine(fill.Builtins()).Apply(context.Background(), entries, s, fill.Options{Policy: fill.FailFast})
	if err != nil || len(failures) != 0 {
		t.Fatalf("unexpected failure: %v %v", err, failures)
	}
	if len(results) != len(entries) {
		t.Fatalf("expected one result per entry, got %d", len(results))
	}
	for _, r := range results {
		if r.Rule != "" || r.Path != r.SourcePath {
			t.Fatalf("expected pass-through result, got %+v", r)
		}
	}
	got := byPath(results)
	if got["a.txt"] != "alpha" || got["b/c.bin"] != "\xff\xfe binary" {
		t.Fatalf("content changed: %v", got)
	}
}

func TestApplyUsesFirstMatchingRule(t *testing.T) {
	entries := stage(t, map[string]string{"a.txt": "Hello", "b/c.txt": "World"})
	s := mustSchema(t, `
version: 1
rules:
  - pattern: a.txt
    fill: { name: uppercase }
  - pattern: "*.txt"
    fill: { name: lowercase }
  - pattern: "b/**"
`)
	results, failures, err := fill.NewEngine(fill.Builtins()).Apply(context.Background(), entries, s, fill.Options{Policy: fill.Accumulate})
	if err != nil || len(failures) != 0 {
		t.Fatalf("unexpected failure: %v %v", err, failures)
	}
	want := map[string]string{"a.txt": "HELLO", "b/c.txt": "World"}
	if diff := cmp.Diff(want, byPath(results)); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyPolicies(t *testing.T) {
	entries := stage(t, map[string]string{
		"1.txt": "{{missing_one}}",
		"2.txt": "\xff\xfe",
		"3.txt": "fine",
	})
	s := mustSchema(t, `
version: 1
rules:
  - pattern: "1.txt"
    fill: { name: placeholder }
  - pattern: "2.txt"
    fill: { name: uppercase }
  - pattern: "3.txt"
    fill: { name: uppercase }
`)
	engine := fill.NewEngine(fill.Builtins())

	_, failures, err := engine.Apply(context.Background(), sortEntries(entries), s, fill.Options{Policy: fill.FailFast})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(failures) != 1 || failures[0].Path != "1.txt" {
		t.Fatalf("fail_fast should stop at first failure, got %+v", failures)
	}

	results, failures, err := engine.Apply(context.Background(), sortEntries(entries), s, fill.Options{Policy: fill.Accumulate})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("accumulate should report both failures, got %+v", failures)
	}
	if !strings.Contains(failures[0].Message, "missing_one") {
		t.Fatalf("unexpected placeholder failure: %+v", failures[0])
	}
	if !strings.Contains(failures[1].Message, "malformed encoding") {
		t.Fatalf("unexpected encoding failure: %+v", failures[1])
	}
	if got := byPath(results); got["3.txt"] != "FINE" {
		t.Fatalf("accumulate should still evaluate later entries, got %v", got)
	}
}

func TestApplyRejectsUnsafeAndCollidingRenames(t *testing.T) {
	entries := stage(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	engine := fill.NewEngine(fill.Builtins())

	escape := mustSchema(t, `
version: 1
rules:
  - pattern: a.txt
    fill: { name: rename, params: { to: "../{name}" } }
`)
	_, failures, err := engine.Apply(context.Background(), sortEntries(entries), escape, fill.Options{Policy: fill.Accumulate})
	if err != nil || len(failures) != 1 || !strings.Contains(failures[0].Message, "leaves the archive root") {
		t.Fatalf("expected traversal failure, got %v %+v", err, failures)
	}

	collide := mustSchema(t, `
version: 1
rules:
  - pattern: a.txt
    fill: { name: rename, params: { to: "b.txt" } }
`)
	_, failures, err = engine.Apply(context.Background(), sortEntries(entries), collide, fill.Options{Policy: fill.Accumulate})
	if err != nil || len(failures) != 1 || !strings.Contains(failures[0].Message, "collides") {
		t.Fatalf("expected collision failure, got %v %+v", err, failures)
	}
}

func TestApplyRunsPostProcessorsAfterTextRules(t *testing.T) {
	entries := stage(t, map[string]string{"letter.txt": "my favorite color", "logo.bin": "\x00\x01"})
	s := mustSchema(t, `
version: 1
rules:
  - pattern: letter.txt
    fill: { name: lowercase }
  - pattern: logo.bin
    fill: { name: rename, params: { to: "assets/{name}" } }
`)
	post := []schema.FillSpec{{Name: "dialect", Params: map[string]string{"dialect": "bre"}}}
	results, failures, err := fill.NewEngine(fill.Builtins()).Apply(context.Background(), sortEntries(entries), s, fill.Options{Policy: fill.FailFast, PostProcessors: post})
	if err != nil || len(failures) != 0 {
		t.Fatalf("unexpected failure: %v %+v", err, failures)
	}
	got := byPath(results)
	if got["letter.txt"] != "my favourite colour" {
		t.Fatalf("post-processor not applied: %v", got)
	}
	if !bytes.Equal([]byte(got["assets/logo.bin"]), []byte("\x00\x01")) {
		t.Fatalf("binary rename should skip post-processors: %v", got)
	}
}

func sortEntries(entries []archive.Entry) []archive.Entry {
	out := append([]archive.Entry(nil), entries...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Path < out[j-1].Path; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
