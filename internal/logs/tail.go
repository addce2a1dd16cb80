package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"templatefiller/internal/logging"
)

const (
	maxLineBytes = 1 << 20
	pollInterval = 250 * time.Millisecond
)

// Matcher selects log lines. A nil Matcher keeps every line.
type Matcher func(line string) bool

// TailOptions controls a Tail call. A negative Offset reads the last Limit
// matching lines; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Wait   time.Duration
	Match  Matcher
}

// TailResult holds the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from path. When Wait is positive and nothing new matched,
// it polls until a line arrives, Wait elapses, or ctx ends. A missing file
// yields no lines and offset zero.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var result TailResult
	if opts.Offset < 0 {
		result, err = lastLines(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated or truncated underneath us.
			offset = 0
		}
		result, err = readFrom(path, offset, opts.Match)
	}
	if err != nil || len(result.Lines) > 0 || opts.Wait <= 0 {
		return result, err
	}
	return waitForLines(ctx, path, result.Offset, opts.Wait, opts.Match)
}

// SessionMatcher keeps lines logged for sessionID. JSON lines are matched on
// their session_id field; console lines on the bracketed short id.
func SessionMatcher(sessionID string) Matcher {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	marker := "[" + short + "]"
	return func(line string) bool {
		if strings.HasPrefix(line, "{") {
			var fields map[string]any
			if json.Unmarshal([]byte(line), &fields) == nil {
				id, _ := fields[logging.FieldSessionID].(string)
				return id == sessionID
			}
		}
		return strings.Contains(line, marker)
	}
}

func lastLines(path string, limit int, match Matcher) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: end}, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	offset, err := scanLines(file, 0, func(line string) {
		if match != nil && !match(line) {
			return
		}
		ring[next] = line
		next = (next + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return TailResult{}, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

func readFrom(path string, offset int64, match Matcher) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return TailResult{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	var lines []string
	end, err := scanLines(file, offset, func(line string) {
		if match == nil || match(line) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return TailResult{Offset: offset}, err
	}
	return TailResult{Lines: lines, Offset: end}, nil
}

// scanLines feeds complete lines to fn and returns the offset just past the
// last newline, so a partially written line is re-read on the next call.
func scanLines(r io.Reader, start int64, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	offset := start
	for {
		chunk, err := reader.ReadString('\n')
		if len(chunk) > 0 && strings.HasSuffix(chunk, "\n") {
			offset += int64(len(chunk))
			line := strings.TrimRight(chunk, "\r\n")
			if len(line) > maxLineBytes {
				line = line[:maxLineBytes]
			}
			fn(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
	}
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match Matcher) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	result := TailResult{Offset: offset}
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-ticker.C:
		}

		next, err := readFrom(path, result.Offset, match)
		if err != nil {
			return result, err
		}
		result.Offset = next.Offset
		if len(next.Lines) > 0 {
			result.Lines = next.Lines
			return result, nil
		}
		if time.Now().After(deadline) {
			return result, nil
		}
	}
}
