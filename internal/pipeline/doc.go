// Package pipeline drives one upload through intake, validation, fill, and
// packaging.
//
// A Pipeline is built once from immutable dependencies and is safe for
// concurrent use; every call to Run owns a fresh session with its own
// workspace. Run never returns an error: the result is an Outcome that holds
// diagnostics, a published output, or a classified fault, and the HTTP and
// CLI layers render it.
//
// Session state is persisted through the records store at every transition:
//
//	received -> extracted -> validated (check only) -> filled -> packaged -> ready
//
// Any stage may end the session in failed. A check-mode session whose
// diagnostics contain errors ends in rejected, which is not a fault.
package pipeline
