// Package storage exposes the upload and download stores as narrow key/value
// blob collaborators. Callers deal in keys only; no path or bucket layout
// leaks past this package.
//
// Every store creates objects exclusively: writing a key that already exists
// fails with ErrExists and leaves the original untouched.
package storage
