// Package httpapi serves the upload, download, and session endpoints.
//
// Handlers translate requests into pipeline runs and hand every Outcome to
// the Reporter, the single place that decides status codes and how much
// failure detail a caller sees. Faults are always logged in full by the
// pipeline; responses carry internals only when debug is enabled.
package httpapi
