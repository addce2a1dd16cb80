// Package fault classifies system failures that abort an upload session.
//
// A Fault carries a Kind (the stable, user-facing classification), the
// pipeline stage and operation that failed, a short message, the wrapped
// cause, and the call frames captured where the fault was raised. Validation
// findings are not faults; they live in package validate as diagnostics.
//
// Stage code builds faults with Wrap or New and callers classify any error
// with KindOf, which falls back to IOFailure for unclassified errors.
package fault
