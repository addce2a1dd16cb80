package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"templatefiller/internal/fault"
	"templatefiller/internal/glob"
	"templatefiller/internal/staging"
)

// ratioFloor is the declared size below which the compression ratio is not
// enforced; tiny repetitive files compress extremely well.
const ratioFloor = 1 << 20

// Limits bounds extraction.
type Limits struct {
	MaxDecompressedBytes int64
	MaxCompressionRatio  float64
	MaxEntries           int
}

// Extractor unpacks zip payloads into workspaces.
type Extractor struct {
	limits Limits
	ignore glob.Set
}

// NewExtractor validates limits and compiles the ignore patterns.
func NewExtractor(limits Limits, ignorePatterns []string) (*Extractor, error) {
	if limits.MaxDecompressedBytes <= 0 || limits.MaxEntries <= 0 || limits.MaxCompressionRatio < 1 {
		return nil, fault.New(fault.ConfigError, stageIntake, "configure", "extraction limits must be positive")
	}
	ignore, err := glob.CompileSet(ignorePatterns)
	if err != nil {
		return nil, fault.Wrap(fault.ConfigError, stageIntake, "configure", "invalid ignore pattern", err)
	}
	return &Extractor{limits: limits, ignore: ignore}, nil
}

type member struct {
	file *zip.File
	path string
	dir  bool
}

// Extract unpacks payload into ws and returns the explicit members in archive
// order. Implicit parent directories are created but not reported.
func (x *Extractor) Extract(ctx context.Context, payload []byte, ws *staging.Workspace) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fault.Wrap(fault.ExtractionFailure, stageIntake, "open archive", "payload is not a readable zip archive", err)
	}

	members, err := x.plan(reader.File, ws)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(members))
	budget := x.limits.MaxDecompressedBytes
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return nil, fault.Wrap(fault.IOFailure, stageIntake, "extract", "extraction cancelled", err)
		}
		target, err := ws.Resolve(m.path)
		if err != nil {
			return nil, fault.Wrap(fault.PathTraversal, stageIntake, "resolve", m.path, err)
		}
		if m.dir {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fault.Wrap(fault.ExtractionFailure, stageIntake, "create directory", m.path, err)
			}
			entries = append(entries, Entry{Path: m.path, Kind: KindDir, location: target})
			continue
		}
		written, err := writeMember(m, target, budget)
		if err != nil {
			return nil, err
		}
		budget -= written
		entries = append(entries, Entry{Path: m.path, Kind: KindFile, Size: written, location: target})
	}
	return entries, nil
}

// plan vets every member before anything touches the disk.
func (x *Extractor) plan(files []*zip.File, ws *staging.Workspace) ([]member, error) {
	members := make([]member, 0, len(files))
	seen := make(map[string]bool, len(files))
	var declared, compressed uint64

	for _, f := range files {
		name, err := normalizeName(f.Name)
		if err != nil {
			return nil, fault.Wrap(fault.PathTraversal, stageIntake, "vet name", f.Name, err)
		}
		if name == "" {
			continue
		}
		if _, err := ws.Resolve(name); err != nil {
			return nil, fault.Wrap(fault.PathTraversal, stageIntake, "vet name", f.Name, err)
		}
		if x.ignore.MatchAny(name) {
			continue
		}

		mode := f.Mode()
		dir := strings.HasSuffix(strings.ReplaceAll(f.Name, `\`, "/"), "/") || mode.IsDir()
		switch {
		case mode&fs.ModeSymlink != 0:
			return nil, fault.New(fault.ExtractionFailure, stageIntake, "vet member", fmt.Sprintf("%s: symbolic links are not supported", name))
		case !dir && !mode.IsRegular():
			return nil, fault.New(fault.ExtractionFailure, stageIntake, "vet member", fmt.Sprintf("%s: unsupported member type %s", name, mode.Type()))
		}

		if _, dup := seen[name]; dup {
			return nil, fault.New(fault.ExtractionFailure, stageIntake, "vet member", fmt.Sprintf("%s: duplicate archive member", name))
		}
		seen[name] = dir

		members = append(members, member{file: f, path: name, dir: dir})
		if len(members) > x.limits.MaxEntries {
			return nil, fault.New(fault.ArchiveTooLarge, stageIntake, "vet limits", fmt.Sprintf("archive has more than %d entries", x.limits.MaxEntries))
		}
		if !dir {
			declared += f.UncompressedSize64
			compressed += f.CompressedSize64
		}
	}

	for _, m := range members {
		for parent := path.Dir(m.path); parent != "."; parent = path.Dir(parent) {
			if isDir, ok := seen[parent]; ok && !isDir {
				return nil, fault.New(fault.ExtractionFailure, stageIntake, "vet member", fmt.Sprintf("%s: parent %s is a file", m.path, parent))
			}
		}
	}

	if declared > uint64(x.limits.MaxDecompressedBytes) {
		return nil, fault.New(fault.ArchiveTooLarge, stageIntake, "vet limits",
			fmt.Sprintf("declared size %d exceeds %d bytes", declared, x.limits.MaxDecompressedBytes))
	}
	if declared > ratioFloor {
		ratio := float64(declared) / float64(max(compressed, 1))
		if ratio > x.limits.MaxCompressionRatio {
			return nil, fault.New(fault.ArchiveTooLarge, stageIntake, "vet limits",
				fmt.Sprintf("compression ratio %.0f exceeds %.0f", ratio, x.limits.MaxCompressionRatio))
		}
	}
	return members, nil
}

func writeMember(m member, target string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fault.Wrap(fault.ExtractionFailure, stageIntake, "create directory", m.path, err)
	}
	src, err := openMember(m.file)
	if err != nil {
		return 0, fault.Wrap(fault.ExtractionFailure, stageIntake, "open member", m.path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fault.Wrap(fault.ExtractionFailure, stageIntake, "create file", m.path, err)
	}
	sum := crc32.NewIEEE()
	written, copyErr := io.Copy(io.MultiWriter(dst, sum), io.LimitReader(src, budget+1))
	closeErr := dst.Close()

	switch {
	case written > budget:
		_ = os.Remove(target)
		return 0, fault.New(fault.ArchiveTooLarge, stageIntake, "write member",
			fmt.Sprintf("%s: decompressed output exceeds the remaining budget", m.path))
	case copyErr != nil:
		_ = os.Remove(target)
		return 0, fault.Wrap(fault.ExtractionFailure, stageIntake, "write member", m.path+": corrupt stream", copyErr)
	case closeErr != nil:
		_ = os.Remove(target)
		return 0, fault.Wrap(fault.IOFailure, stageIntake, "write member", m.path, closeErr)
	case uint64(written) != m.file.UncompressedSize64 || sum.Sum32() != m.file.CRC32:
		_ = os.Remove(target)
		return 0, fault.New(fault.ExtractionFailure, stageIntake, "write member",
			fmt.Sprintf("%s: size or checksum does not match the archive header", m.path))
	}
	return written, nil
}

// openMember decompresses f without the zip reader's declared-size cutoff so
// output is metered against the extraction budget instead.
func openMember(f *zip.File) (io.ReadCloser, error) {
	switch f.Method {
	case zip.Store, zip.Deflate:
	default:
		return f.Open()
	}
	raw, err := f.OpenRaw()
	if err != nil {
		return nil, err
	}
	if f.Method == zip.Store {
		return io.NopCloser(raw), nil
	}
	return flate.NewReader(raw), nil
}

var errUnsafeName = errors.New("unsafe member name")

// normalizeName converts a raw member name to a clean workspace-relative
// slash path. Absolute names, drive letters, and any `..` segment are refused.
func normalizeName(raw string) (string, error) {
	name := strings.ReplaceAll(raw, `\`, "/")
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: NUL byte", errUnsafeName)
	}
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute path", errUnsafeName)
	}
	if len(name) >= 2 && name[1] == ':' && isASCIILetter(name[0]) {
		return "", fmt.Errorf("%w: drive letter", errUnsafeName)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: parent segment", errUnsafeName)
		}
	}
	cleaned := path.Clean(strings.TrimSuffix(name, "/"))
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
