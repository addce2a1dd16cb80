// Package schema loads the template schema: an ordered list of glob rules that
// declare which archive entries are expected, what kind they must be, and which
// fill transformation applies to them.
//
// Documents are YAML (JSON is accepted as a subset) and are checked against an
// embedded JSON Schema before rules are compiled. Rules are evaluated in
// declaration order and the first match wins. A loaded Schema is immutable and
// safe to share between sessions.
package schema
