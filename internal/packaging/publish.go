package packaging

import (
	"context"
	"errors"
	"path"
	"strings"

	"templatefiller/internal/fault"
	"templatefiller/internal/records"
	"templatefiller/internal/storage"
	"templatefiller/internal/textutil"
)

const (
	defaultStem = "output"
	maxStemLen  = 96
)

// Output describes a published archive.
type Output struct {
	ID      string
	Entries []string
	SHA256  string
	Size    int64
	Backend string
}

// Recorder persists download records.
type Recorder interface {
	InsertDownload(ctx context.Context, d records.Download) (*records.Download, error)
}

// OutputID derives the download id for a session's upload.
func OutputID(sessionID, uploadName string) string {
	return sessionID + "_" + Stem(uploadName) + ".zip"
}

// Stem reduces an upload filename to a safe ASCII stem. Accents are folded
// and anything outside [A-Za-z0-9._-] becomes an underscore.
func Stem(uploadName string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(uploadName), "\\", "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".zip") {
		base = strings.TrimSuffix(base, ext)
	}
	return textutil.SanitizeToken(base, maxStemLen, defaultStem)
}

// Publish stores archive under its output id and records the download. The
// store never overwrites, so an id collision is an IOFailure.
func Publish(ctx context.Context, store storage.Store, recorder Recorder, sessionID, uploadName string, archive *Archive) (*Output, error) {
	id := OutputID(sessionID, uploadName)
	if err := store.Put(ctx, id, archive.Data); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, fault.Wrap(fault.IOFailure, stagePackage, "publish", "output id already exists", err)
		}
		return nil, fault.Wrap(fault.IOFailure, stagePackage, "publish", "store archive", err)
	}

	if _, err := recorder.InsertDownload(ctx, records.Download{
		OutputID:   id,
		SessionID:  sessionID,
		Backend:    store.Backend(),
		StorageKey: id,
		Size:       archive.Size(),
		SHA256:     archive.SHA256,
	}); err != nil {
		_ = store.Delete(ctx, id)
		return nil, fault.Wrap(fault.IOFailure, stagePackage, "publish", "record download", err)
	}

	return &Output{
		ID:      id,
		Entries: archive.Entries,
		SHA256:  archive.SHA256,
		Size:    archive.Size(),
		Backend: store.Backend(),
	}, nil
}
