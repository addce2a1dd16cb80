// Package packaging turns fill results into a deterministic zip archive and
// publishes it to the download store.
//
// Identical results always produce byte-identical archives: entries are
// sorted by path and every header carries the same timestamp and mode.
package packaging
