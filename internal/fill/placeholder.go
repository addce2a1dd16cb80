package fill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

const (
	defaultLeftDelim  = "{{"
	defaultRightDelim = "}}"
	paramFromDir      = "_from_dir"
	paramLeft         = "_left"
	paramRight        = "_right"
)

func delimiters(params map[string]string) (string, string) {
	left, right := params[paramLeft], params[paramRight]
	if left == "" {
		left = defaultLeftDelim
	}
	if right == "" {
		right = defaultRightDelim
	}
	return left, right
}

func checkPlaceholderParams(params map[string]string) error {
	left, right := delimiters(params)
	if strings.TrimSpace(left) == "" || strings.TrimSpace(right) == "" {
		return errors.New("delimiters must not be blank")
	}
	if dir := params[paramFromDir]; dir != "" {
		if strings.HasPrefix(dir, "/") || strings.Contains("/"+dir+"/", "/../") {
			return fmt.Errorf("%s %q must be archive-relative", paramFromDir, dir)
		}
	}
	return nil
}

// placeholder replaces delimited keys with values from params or, when
// _from_dir is set, from <dir>/<key>.txt inside the archive. Params win over
// files. Every unresolved key is reported.
func placeholder(_ context.Context, in Input) (Output, error) {
	left, right := delimiters(in.Params)
	fromDir := strings.Trim(in.Params[paramFromDir], "/")

	content := in.Content
	var out bytes.Buffer
	out.Grow(len(content))
	missing := map[string]struct{}{}

	for {
		start := bytes.Index(content, []byte(left))
		if start < 0 {
			out.Write(content)
			break
		}
		end := bytes.Index(content[start+len(left):], []byte(right))
		if end < 0 {
			return Output{}, fmt.Errorf("unterminated placeholder at byte %d", len(in.Content)-len(content)+start)
		}
		out.Write(content[:start])
		key := strings.TrimSpace(string(content[start+len(left) : start+len(left)+end]))
		value, ok := resolveKey(key, in, fromDir)
		if !ok {
			missing[key] = struct{}{}
		} else {
			out.WriteString(value)
		}
		content = content[start+len(left)+end+len(right):]
	}

	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for key := range missing {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return Output{}, fmt.Errorf("unresolved placeholder(s): %s", strings.Join(keys, ", "))
	}
	return Output{Content: out.Bytes()}, nil
}

func resolveKey(key string, in Input, fromDir string) (string, bool) {
	if key == "" || strings.HasPrefix(key, "_") {
		return "", false
	}
	if value, ok := in.Params[key]; ok {
		return value, true
	}
	if fromDir == "" || in.Lookup == nil || strings.Contains(key, "/") {
		return "", false
	}
	data, ok := in.Lookup(path.Join(fromDir, key+".txt"))
	if !ok {
		return "", false
	}
	return strings.TrimRight(string(data), "\r\n"), true
}
