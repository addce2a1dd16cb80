package packaging_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/fill"
	"templatefiller/internal/packaging"
	"templatefiller/internal/records"
	"templatefiller/internal/storage"
	"templatefiller/internal/testsupport"
)

func sampleResults() []fill.Result {
	return []fill.Result{
		{Path: "b/c.txt", Kind: archive.KindFile, Content: []byte("second")},
		{Path: "a.txt", Kind: archive.KindFile, Content: []byte("HELLO"), Rule: "uppercase"},
		{Path: "b", Kind: archive.KindDir},
		{Path: "empty.txt", Kind: archive.KindFile},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := packaging.Build(sampleResults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reversed := sampleResults()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	second, err := packaging.Build(reversed)
	if err != nil {
		t.Fatalf("Build reversed: %v", err)
	}

	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("expected byte-identical archives regardless of result order")
	}
	if first.SHA256 != second.SHA256 || first.SHA256 == "" {
		t.Fatalf("digest mismatch: %s vs %s", first.SHA256, second.SHA256)
	}
	want := []string{"a.txt", "b/", "b/c.txt", "empty.txt"}
	if diff := cmp.Diff(want, first.Entries); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildHeaders(t *testing.T) {
	built, err := packaging.Build(sampleResults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(built.Data), built.Size())
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	for _, f := range zr.File {
		if !f.Modified.Equal(packaging.Epoch) {
			t.Fatalf("%s: modified %v, want %v", f.Name, f.Modified, packaging.Epoch)
		}
		if f.FileInfo().IsDir() != (f.Name == "b/") {
			t.Fatalf("%s: unexpected directory flag", f.Name)
		}
	}

	contents := testsupport.ReadZip(t, built.Data)
	if contents["a.txt"] != "HELLO" || contents["b/c.txt"] != "second" || contents["empty.txt"] != "" {
		t.Fatalf("unexpected contents: %#v", contents)
	}
}

func TestBuildEmptyAndDuplicate(t *testing.T) {
	empty, err := packaging.Build(nil)
	if err != nil {
		t.Fatalf("Build(nil): %v", err)
	}
	if len(testsupport.ReadZip(t, empty.Data)) != 0 {
		t.Fatal("expected empty archive")
	}

	_, err = packaging.Build([]fill.Result{
		{Path: "x.txt", Kind: archive.KindFile},
		{Path: "x.txt", Kind: archive.KindFile},
	})
	if fault.KindOf(err) != fault.IOFailure {
		t.Fatalf("expected IOFailure for duplicate paths, got %v", err)
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"letter.zip":        "letter",
		"Café Menu.ZIP":     "Cafe_Menu",
		`C:\Users\me\x.zip`: "x",
		"../../etc.zip":     "etc",
		"":                  "output",
		".zip":              "output",
		"résumé.tar.zip":    "resume.tar",
	}
	for input, want := range cases {
		if got := packaging.Stem(input); got != want {
			t.Errorf("Stem(%q) = %q, want %q", input, got, want)
		}
	}
	if got := packaging.OutputID("abc", "letter.zip"); got != "abc_letter.zip" {
		t.Fatalf("OutputID = %q", got)
	}
}

func TestPublishStoresAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recs := testsupport.MustOpenRecords(t, cfg)
	store, err := storage.NewLocalStore(cfg.Paths.DownloadDir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	built, err := packaging.Build(sampleResults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := packaging.Publish(ctx, store, recs, "sess", "letter.zip", built)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if out.ID != "sess_letter.zip" || out.Backend != "local" || out.Size != built.Size() {
		t.Fatalf("unexpected output: %#v", out)
	}

	record, err := recs.GetDownload(ctx, out.ID)
	if err != nil || record == nil {
		t.Fatalf("GetDownload: %#v, %v", record, err)
	}
	if record.SHA256 != built.SHA256 || record.SessionID != "sess" {
		t.Fatalf("unexpected record: %#v", record)
	}

	rc, _, err := store.Open(ctx, out.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	stored, _ := io.ReadAll(rc)
	if !bytes.Equal(stored, built.Data) {
		t.Fatal("stored bytes differ from built archive")
	}

	_, err = packaging.Publish(ctx, store, recs, "sess", "letter.zip", built)
	if fault.KindOf(err) != fault.IOFailure || !errors.Is(err, storage.ErrExists) {
		t.Fatalf("expected IOFailure wrapping ErrExists, got %v", err)
	}
}

type failingRecorder struct{}

func (failingRecorder) InsertDownload(context.Context, records.Download) (*records.Download, error) {
	return nil, errors.New("disk full")
}

func TestPublishRemovesBlobWhenRecordFails(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	built, err := packaging.Build(sampleResults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx := context.Background()
	if _, err := packaging.Publish(ctx, store, failingRecorder{}, "s", "x.zip", built); fault.KindOf(err) != fault.IOFailure {
		t.Fatalf("expected IOFailure, got %v", err)
	}
	if _, _, err := store.Open(ctx, "s_x.zip"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected blob to be removed, got %v", err)
	}
}
