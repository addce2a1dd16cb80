// Package archive implements upload intake: bounded payload reads and zip
// extraction into a session workspace.
//
// Every member name is vetted before the first byte is written. Declared sizes
// are checked against the configured limits up front and actual output is
// metered while writing, so neither path traversal nor decompression bombs can
// escape the workspace or its budget.
package archive
