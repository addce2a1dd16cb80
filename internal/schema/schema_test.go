package schema_test

import (
	"path/filepath"
	"strings"
	"testing"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/fill"
	"templatefiller/internal/schema"
	"templatefiller/internal/testsupport"
)

const sampleDoc = `
version: 1
rules:
  - pattern: a.txt
    kind: file
    required: true
    fill:
      name: uppercase
  - pattern: "b/c.txt"
    required: true
  - pattern: "b"
    kind: dir
  - pattern: "*.txt"
    fill:
      name: placeholder
      params:
        year: 2024
        formal: true
`

func TestParseCompilesRulesInOrder(t *testing.T) {
	s, err := schema.Parse([]byte(sampleDoc), fill.Builtins())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rules := s.Rules()
	if len(rules) != 4 || s.Len() != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	if rules[2].Kind != archive.KindDir || rules[1].Kind != archive.KindFile {
		t.Fatalf("unexpected kinds: %+v", rules)
	}
	if got := rules[3].Fill.Params; got["year"] != "2024" || got["formal"] != "true" {
		t.Fatalf("expected stringified params, got %v", got)
	}
	if names := s.FillNames(); strings.Join(names, ",") != "uppercase,placeholder" {
		t.Fatalf("unexpected fill names %v", names)
	}
	if req := s.Required(); len(req) != 2 {
		t.Fatalf("expected 2 required rules, got %d", len(req))
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	s, err := schema.Parse([]byte(sampleDoc), fill.Builtins())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rules := s.Rules()
	rules[0].Required = false
	rules[3].Fill.Params["year"] = "1999"
	rules[3].Fill.Name = "verbatim"

	fresh := s.Rules()
	if !fresh[0].Required {
		t.Fatal("mutating the returned slice changed the schema")
	}
	if fresh[3].Fill.Name != "placeholder" || fresh[3].Fill.Params["year"] != "2024" {
		t.Fatalf("mutating a returned fill spec changed the schema: %+v", fresh[3].Fill)
	}
}

func TestMatchFirstRuleWins(t *testing.T) {
	s, err := schema.Parse([]byte(sampleDoc), fill.Builtins())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	rule, ok := s.Match("a.txt")
	if !ok || rule.Index != 0 || rule.Fill.Name != "uppercase" {
		t.Fatalf("a.txt should match rule 0, got %+v", rule)
	}
	rule, ok = s.Match("other.txt")
	if !ok || rule.Index != 3 {
		t.Fatalf("other.txt should match rule 3, got %+v", rule)
	}
	if _, ok := s.Match("img/logo.png"); ok {
		t.Fatal("img/logo.png should not match")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"not yaml":       "version: [1",
		"wrong version":  "version: 2\nrules: []\n",
		"missing rules":  "version: 1\n",
		"unknown field":  "version: 1\nrules:\n  - pattern: a\n    optional: true\n",
		"bad kind":       "version: 1\nrules:\n  - pattern: a\n    kind: socket\n",
		"bad glob":       "version: 1\nrules:\n  - pattern: \"[a\"\n",
		"unknown fill":   "version: 1\nrules:\n  - pattern: a\n    fill: { name: translate }\n",
		"bad fill param": "version: 1\nrules:\n  - pattern: a\n    fill: { name: dialect, params: { dialect: klingon } }\n",
		"dir fill":       "version: 1\nrules:\n  - pattern: a\n    kind: dir\n    fill: { name: uppercase }\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := schema.Parse([]byte(doc), fill.Builtins())
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := fault.KindOf(err); kind != fault.ConfigError {
				t.Fatalf("expected ConfigError, got %s (%v)", kind, err)
			}
		})
	}
}

func TestLoadReadsJSONDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	testsupport.WriteFile(t, path, []byte(`{"version": 1, "rules": [{"pattern": "**/*.md", "fill": {"name": "sanitize_html"}}]}`))
	s, err := schema.Load(path, fill.Builtins())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := s.Match("docs/readme.md"); !ok {
		t.Fatal("expected docs/readme.md to match")
	}

	_, err = schema.Load(filepath.Join(t.TempDir(), "missing.yaml"), fill.Builtins())
	if fault.KindOf(err) != fault.ConfigError {
		t.Fatalf("missing document should be a ConfigError, got %v", err)
	}
}
