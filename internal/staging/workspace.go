package staging

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	lockFileName = ".lock"
	filesDirName = "files"
)

// ErrOutsideWorkspace reports a relative path that resolves beyond the workspace root.
var ErrOutsideWorkspace = errors.New("path resolves outside workspace")

// ErrWorkspaceExists reports a session id whose workspace is already present.
var ErrWorkspaceExists = errors.New("workspace already exists")

// Workspace is a session-exclusive directory. Callers must Release it once the
// session reaches a terminal state.
type Workspace struct {
	ID   string
	Root string

	files string
	lock  *flock.Flock
}

// Create makes a new workspace for sessionID under baseDir and locks it.
func Create(baseDir, sessionID string) (*Workspace, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return nil, fmt.Errorf("invalid workspace id %q", sessionID)
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure workspace dir: %w", err)
	}
	root := filepath.Join(baseDir, sessionID)
	if err := os.Mkdir(root, 0o700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, sessionID)
		}
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	lock := flock.New(filepath.Join(root, lockFileName))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		_ = os.RemoveAll(root)
		if err == nil {
			err = errors.New("lock held elsewhere")
		}
		return nil, fmt.Errorf("lock workspace: %w", err)
	}

	files := filepath.Join(root, filesDirName)
	if err := os.Mkdir(files, 0o700); err != nil {
		_ = lock.Unlock()
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("create workspace files dir: %w", err)
	}
	return &Workspace{ID: sessionID, Root: root, files: files, lock: lock}, nil
}

// Dir returns the directory extracted entries live under.
func (w *Workspace) Dir() string {
	return w.files
}

// Resolve maps a slash-separated relative path onto the workspace. Paths that
// are absolute or climb out of the workspace yield ErrOutsideWorkspace.
func (w *Workspace) Resolve(rel string) (string, error) {
	if rel == "" || strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideWorkspace, rel)
	}
	cleaned := path.Clean(rel)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrOutsideWorkspace, rel)
	}
	full := filepath.Join(w.files, filepath.FromSlash(cleaned))
	within, err := filepath.Rel(w.files, full)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideWorkspace, rel)
	}
	return full, nil
}

// Release unlocks and removes the workspace. It is safe to call more than once.
func (w *Workspace) Release() error {
	if w == nil || w.lock == nil {
		return nil
	}
	var errs []error
	if err := os.RemoveAll(w.Root); err != nil {
		errs = append(errs, fmt.Errorf("remove workspace: %w", err))
	}
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock workspace: %w", err))
	}
	w.lock = nil
	return errors.Join(errs...)
}

// probeLock reports whether another holder owns the workspace lock at dir. On
// success the probe lock is returned held so the caller can remove the
// directory without racing a new session.
func probeLock(dir string) (*flock.Flock, bool, error) {
	lockPath := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	probe := flock.New(lockPath)
	locked, err := probe.TryLock()
	if err != nil {
		return nil, false, err
	}
	if !locked {
		return nil, true, nil
	}
	return probe, false, nil
}
