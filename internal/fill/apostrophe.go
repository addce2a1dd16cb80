package fill

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

const (
	curlyOpen  = '‘'
	curlyClose = '’'
)

func checkApostropheParams(params map[string]string) error {
	switch strings.ToLower(strings.TrimSpace(params["preference"])) {
	case "curly", "straight":
		return nil
	default:
		return fmt.Errorf("preference %q: want curly or straight", params["preference"])
	}
}

// apostrophe normalizes single quotes. "straight" folds curly quotes to ';
// "curly" turns ' into a closing quote after a letter or digit and an opening
// quote elsewhere.
func apostrophe(_ context.Context, in Input) (Output, error) {
	pref := strings.ToLower(strings.TrimSpace(in.Params["preference"]))
	text := string(in.Content)
	switch pref {
	case "straight":
		return Output{Content: []byte(strings.NewReplacer(string(curlyOpen), "'", string(curlyClose), "'").Replace(text))}, nil
	case "curly":
		var b strings.Builder
		b.Grow(len(text))
		prev := rune(-1)
		for _, r := range text {
			if r == '\'' {
				if prev != -1 && (unicode.IsLetter(prev) || unicode.IsDigit(prev) || unicode.IsPunct(prev)) {
					r = curlyClose
				} else {
					r = curlyOpen
				}
			}
			b.WriteRune(r)
			prev = r
		}
		return Output{Content: []byte(b.String())}, nil
	default:
		return Output{}, fmt.Errorf("preference %q: want curly or straight", pref)
	}
}
