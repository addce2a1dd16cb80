// Package fileutil writes exported archives to operator-chosen paths with
// size and digest verification.
package fileutil
