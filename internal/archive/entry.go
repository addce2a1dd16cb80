package archive

import (
	"io"
	"os"
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
)

// Entry is one extracted archive member. Path is workspace-relative and
// slash-separated, without a trailing slash.
type Entry struct {
	Path string
	Kind Kind
	Size int64

	location string
}

// NewEntry builds an entry backed by a file at location. It is used by tests
// and by callers that stage content outside Extract.
func NewEntry(path string, kind Kind, size int64, location string) Entry {
	return Entry{Path: path, Kind: kind, Size: size, location: location}
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Open returns the entry content. Directories have no content.
func (e Entry) Open() (io.ReadCloser, error) {
	if e.IsDir() {
		return nil, os.ErrInvalid
	}
	return os.Open(e.location)
}

// ReadAll returns the entry content.
func (e Entry) ReadAll() ([]byte, error) {
	if e.IsDir() {
		return nil, nil
	}
	return os.ReadFile(e.location)
}
