package packaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"templatefiller/internal/archive"
	"templatefiller/internal/fault"
	"templatefiller/internal/fill"
)

const stagePackage = "package"

// Epoch is the modification time stamped on every archive member.
var Epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	fileMode = 0o644
	dirMode  = fs.ModeDir | 0o755
)

// Archive is a packaged result ready to publish.
type Archive struct {
	Entries []string
	Data    []byte
	SHA256  string
}

// Size returns the archive length in bytes.
func (a *Archive) Size() int64 {
	return int64(len(a.Data))
}

// Build writes results into a zip archive. Directory entries get a trailing
// slash and no content.
func Build(results []fill.Result) (*Archive, error) {
	sorted := append([]fill.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	names := make([]string, 0, len(sorted))
	var prev string
	for i, result := range sorted {
		if result.Path == "" {
			return nil, fault.New(fault.IOFailure, stagePackage, "build", "result has an empty path")
		}
		if i > 0 && result.Path == prev {
			return nil, fault.New(fault.IOFailure, stagePackage, "build", fmt.Sprintf("duplicate output path %s", result.Path))
		}
		prev = result.Path

		header := &zip.FileHeader{
			Name:     result.Path,
			Method:   zip.Deflate,
			Modified: Epoch,
		}
		if result.Kind == archive.KindDir {
			header.Name += "/"
			header.Method = zip.Store
			header.SetMode(dirMode)
		} else {
			header.SetMode(fileMode)
		}

		w, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fault.Wrap(fault.IOFailure, stagePackage, "build", "create zip entry "+result.Path, err)
		}
		if result.Kind != archive.KindDir && len(result.Content) > 0 {
			if _, err := w.Write(result.Content); err != nil {
				return nil, fault.Wrap(fault.IOFailure, stagePackage, "build", "write zip entry "+result.Path, err)
			}
		}
		names = append(names, header.Name)
	}
	if err := writer.Close(); err != nil {
		return nil, fault.Wrap(fault.IOFailure, stagePackage, "build", "finalize zip", err)
	}

	data := buffer.Bytes()
	return &Archive{Entries: names, Data: data, SHA256: sha256Hex(data)}, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
