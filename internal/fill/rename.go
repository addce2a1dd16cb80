package fill

import (
	"context"
	"errors"
	"path"
	"strings"
)

func checkRenameParams(params map[string]string) error {
	if strings.TrimSpace(params["to"]) == "" {
		return errors.New("to is required")
	}
	return nil
}

// rename moves an entry without touching its content. The `to` template may
// reference {dir}, {name}, {stem}, and {ext} of the source path.
func rename(_ context.Context, in Input) (Output, error) {
	to := strings.TrimSpace(in.Params["to"])
	if to == "" {
		return Output{}, errors.New("to is required")
	}
	dir := path.Dir(in.Path)
	if dir == "." {
		dir = ""
	}
	name := path.Base(in.Path)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	target := strings.NewReplacer(
		"{dir}", dir,
		"{name}", name,
		"{stem}", stem,
		"{ext}", ext,
	).Replace(to)
	target = strings.TrimPrefix(target, "/")
	if target == "" {
		return Output{}, errors.New("rename produced an empty path")
	}
	return Output{Path: target, Content: in.Content}, nil
}
