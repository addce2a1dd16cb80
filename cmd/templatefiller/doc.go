// Command templatefiller serves the upload form and HTTP API, runs the
// pipeline against local archives, and inspects session and download
// records.
package main
