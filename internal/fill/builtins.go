package fill

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Builtins returns a registry holding the stock transformations.
func Builtins() *Registry {
	r, err := NewRegistry(
		Transform{Name: "verbatim", Apply: verbatim},
		casing("uppercase", cases.Upper),
		casing("lowercase", cases.Lower),
		casing("titlecase", cases.Title),
		Transform{Name: "normalize", Text: true, Apply: normalizeForm, CheckParams: checkNormalizeParams},
		Transform{Name: "placeholder", Text: true, Apply: placeholder, CheckParams: checkPlaceholderParams},
		Transform{Name: "rename", Apply: rename, CheckParams: checkRenameParams},
		Transform{Name: "apostrophe", Text: true, Apply: apostrophe, CheckParams: checkApostropheParams},
		Transform{Name: "dialect", Text: true, Apply: dialect, CheckParams: checkDialectParams},
		Transform{Name: "sanitize_html", Text: true, Apply: sanitizeHTML, CheckParams: checkSanitizeParams},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func verbatim(_ context.Context, in Input) (Output, error) {
	return Output{Content: in.Content}, nil
}

func casing(name string, caser func(language.Tag, ...cases.Option) cases.Caser) Transform {
	return Transform{
		Name: name,
		Text: true,
		Apply: func(_ context.Context, in Input) (Output, error) {
			tag, err := langParam(in.Params)
			if err != nil {
				return Output{}, err
			}
			c := caser(tag)
			return Output{Content: []byte(c.String(string(in.Content)))}, nil
		},
		CheckParams: func(params map[string]string) error {
			_, err := langParam(params)
			return err
		},
	}
}

func langParam(params map[string]string) (language.Tag, error) {
	raw := strings.TrimSpace(params["lang"])
	if raw == "" {
		return language.Und, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Und, fmt.Errorf("lang %q: %w", raw, err)
	}
	return tag, nil
}

var normalForms = map[string]norm.Form{
	"nfc":  norm.NFC,
	"nfd":  norm.NFD,
	"nfkc": norm.NFKC,
	"nfkd": norm.NFKD,
}

func checkNormalizeParams(params map[string]string) error {
	form := strings.ToLower(strings.TrimSpace(params["form"]))
	if form == "" {
		return nil
	}
	if _, ok := normalForms[form]; !ok {
		return fmt.Errorf("form %q: want nfc, nfd, nfkc, or nfkd", params["form"])
	}
	return nil
}

func normalizeForm(_ context.Context, in Input) (Output, error) {
	form := strings.ToLower(strings.TrimSpace(in.Params["form"]))
	if form == "" {
		form = "nfc"
	}
	f, ok := normalForms[form]
	if !ok {
		return Output{}, fmt.Errorf("form %q: unsupported", form)
	}
	return Output{Content: f.Bytes(in.Content)}, nil
}

func checkSanitizeParams(params map[string]string) error {
	_, err := sanitizePolicy(params["policy"])
	return err
}

func sanitizePolicy(name string) (*bluemonday.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "strict":
		return bluemonday.StrictPolicy(), nil
	case "ugc":
		return bluemonday.UGCPolicy(), nil
	default:
		return nil, fmt.Errorf("policy %q: want strict or ugc", name)
	}
}

func sanitizeHTML(_ context.Context, in Input) (Output, error) {
	policy, err := sanitizePolicy(in.Params["policy"])
	if err != nil {
		return Output{}, err
	}
	return Output{Content: policy.SanitizeBytes(in.Content)}, nil
}
