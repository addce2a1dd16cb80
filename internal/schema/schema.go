package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/glob"
)

//go:embed template.schema.json
var documentSchema []byte

const (
	stageSchema      = "schema"
	documentSchemaID = "inmemory://templatefiller/template.schema.json"
)

// FillCatalog reports whether a fill transformation exists and accepts params.
type FillCatalog interface {
	Check(name string, params map[string]string) error
}

// FillSpec names a fill transformation and its parameters.
type FillSpec struct {
	Name   string
	Params map[string]string
}

// Rule is one compiled schema rule.
type Rule struct {
	Index    int
	Pattern  string
	Kind     archive.Kind
	Required bool
	Fill     *FillSpec

	matcher glob.Pattern
}

// Matches reports whether the rule's pattern matches path.
func (r Rule) Matches(path string) bool {
	return r.matcher.Match(path)
}

// Schema is an immutable ordered rule set.
type Schema struct {
	Version int
	rules   []Rule
}

// Rules returns a copy of the rules in declaration order.
func (s *Schema) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	for i, rule := range s.rules {
		if rule.Fill != nil {
			fill := *rule.Fill
			fill.Params = maps.Clone(rule.Fill.Params)
			rule.Fill = &fill
		}
		out[i] = rule
	}
	return out
}

// Len returns the number of rules.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

type document struct {
	Version int       `yaml:"version"`
	Rules   []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	Pattern  string   `yaml:"pattern"`
	Kind     string   `yaml:"kind"`
	Required bool     `yaml:"required"`
	Fill     *fillDoc `yaml:"fill"`
}

type fillDoc struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// Load reads and parses the schema document at path.
func Load(path string, catalog FillCatalog) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigError, stageSchema, "load", "read schema document "+path, err)
	}
	return Parse(data, catalog)
}

// Parse validates and compiles a schema document. Every failure is a ConfigError.
func Parse(data []byte, catalog FillCatalog) (*Schema, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fault.Wrap(fault.ConfigError, stageSchema, "decode", "malformed schema document", err)
	}

	s := &Schema{Version: doc.Version, rules: make([]Rule, 0, len(doc.Rules))}
	for i, rd := range doc.Rules {
		rule, err := compileRule(i, rd, catalog)
		if err != nil {
			return nil, err
		}
		s.rules = append(s.rules, rule)
	}
	return s, nil
}

func compileRule(index int, rd ruleDoc, catalog FillCatalog) (Rule, error) {
	op := fmt.Sprintf("rule %d", index+1)
	matcher, err := glob.Compile(rd.Pattern)
	if err != nil {
		return Rule{}, fault.Wrap(fault.ConfigError, stageSchema, op, "invalid pattern", err)
	}
	kind := archive.KindFile
	if rd.Kind == string(archive.KindDir) {
		kind = archive.KindDir
	}
	rule := Rule{
		Index:    index,
		Pattern:  matcher.String(),
		Kind:     kind,
		Required: rd.Required,
		matcher:  matcher,
	}
	if rd.Fill != nil {
		spec := &FillSpec{Name: strings.TrimSpace(rd.Fill.Name), Params: stringParams(rd.Fill.Params)}
		if catalog == nil {
			return Rule{}, fault.New(fault.ConfigError, stageSchema, op, "no fill registry configured")
		}
		if err := catalog.Check(spec.Name, spec.Params); err != nil {
			return Rule{}, fault.Wrap(fault.ConfigError, stageSchema, op, fmt.Sprintf("fill rule %q for pattern %q", spec.Name, rule.Pattern), err)
		}
		if kind == archive.KindDir {
			return Rule{}, fault.New(fault.ConfigError, stageSchema, op, fmt.Sprintf("pattern %q: fill rules apply to files only", rule.Pattern))
		}
		rule.Fill = spec
	}
	return rule, nil
}

func stringParams(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for key, value := range raw {
		out[key] = fmt.Sprint(value)
	}
	return out
}

func validateDocument(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "decode", "malformed schema document", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "decode", "schema document is not JSON compatible", err)
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "decode", "schema document is not JSON compatible", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(documentSchemaID, bytes.NewReader(documentSchema)); err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "compile", "add document schema", err)
	}
	compiled, err := compiler.Compile(documentSchemaID)
	if err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "compile", "compile document schema", err)
	}
	if err := compiled.Validate(payload); err != nil {
		return fault.Wrap(fault.ConfigError, stageSchema, "validate", "schema document is invalid", err)
	}
	return nil
}

// Match returns the first rule, in declaration order, whose pattern matches path.
func (s *Schema) Match(path string) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	for _, rule := range s.rules {
		if rule.Matches(path) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Required returns the rules that must be satisfied by at least one entry.
func (s *Schema) Required() []Rule {
	if s == nil {
		return nil
	}
	var out []Rule
	for _, rule := range s.rules {
		if rule.Required {
			out = append(out, rule)
		}
	}
	return out
}

// FillNames lists the distinct fill transformations the schema uses.
func (s *Schema) FillNames() []string {
	if s == nil {
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, rule := range s.rules {
		if rule.Fill != nil && !seen[rule.Fill.Name] {
			seen[rule.Fill.Name] = true
			names = append(names, rule.Fill.Name)
		}
	}
	return names
}
