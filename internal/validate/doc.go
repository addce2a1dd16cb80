// Package validate checks an extracted archive against the template schema.
//
// Validation never short-circuits: every entry and every rule is evaluated so
// a single Report carries the complete set of problems. Diagnostics are data,
// not errors; the caller decides what a failing report means.
package validate
