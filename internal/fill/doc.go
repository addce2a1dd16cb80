// Package fill transforms extracted entries according to the fill rules named
// in the template schema.
//
// A Registry maps rule names to transformations; Builtins returns the stock
// set. The Engine walks the extracted entries, applies the transformation
// chosen by each entry's first matching rule, and copies every other entry
// through unchanged. Failures either stop the walk (fail_fast) or are collected
// while the remaining entries are still evaluated (accumulate).
package fill
