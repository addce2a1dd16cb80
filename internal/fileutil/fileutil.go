package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrIntegrity reports content whose size or digest differs from what was expected.
var ErrIntegrity = errors.New("integrity check failed")

// WriteVerified streams r into a temp file beside dst, checks the byte count
// and SHA-256 digest, then links it into place. dst must not exist. Nothing
// is left at dst when verification fails. A negative size or empty digest
// skips that check.
func WriteVerified(dst string, r io.Reader, size int64, sha256Hex string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if size >= 0 && written != size {
		return fmt.Errorf("%w: expected %d bytes, copied %d", ErrIntegrity, size, written)
	}
	if sha256Hex != "" {
		if got := hex.EncodeToString(hasher.Sum(nil)); got != sha256Hex {
			return fmt.Errorf("%w: sha256 %s does not match recorded %s", ErrIntegrity, got, sha256Hex)
		}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Link(tmpPath, dst); err != nil {
		return fmt.Errorf("place %s: %w", dst, err)
	}
	return nil
}
