package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ZipMember describes one member of a test archive. Names ending in "/" are
// written as directories.
type ZipMember struct {
	Name   string
	Body   []byte
	Mode   os.FileMode
	Method uint16
}

// File returns a deflated regular file member.
func File(name, body string) ZipMember {
	return ZipMember{Name: name, Body: []byte(body), Method: zip.Deflate}
}

// Dir returns a directory member.
func Dir(name string) ZipMember {
	return ZipMember{Name: name, Mode: os.ModeDir | 0o755}
}

// ZipBytes builds an in-memory archive with members in the given order.
func ZipBytes(t testing.TB, members ...ZipMember) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		header := &zip.FileHeader{Name: m.Name, Method: m.Method, Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		if m.Mode != 0 {
			header.SetMode(m.Mode)
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip create %s: %v", m.Name, err)
		}
		if len(m.Body) > 0 {
			if _, err := w.Write(m.Body); err != nil {
				t.Fatalf("zip write %s: %v", m.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// ReadZip returns the members of an archive as name to content.
func ReadZip(t testing.TB, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open member %s: %v", f.Name, err)
		}
		var content bytes.Buffer
		if _, err := content.ReadFrom(rc); err != nil {
			t.Fatalf("read member %s: %v", f.Name, err)
		}
		rc.Close()
		out[f.Name] = content.String()
	}
	return out
}
