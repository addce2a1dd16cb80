// Package logs reads the service log file for the CLI. It returns the last
// N lines with bounded memory, resumes from a byte offset for follow mode,
// and can narrow output to a single upload session in either log format.
package logs
