package fill

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// spellingPairs maps American stems to British ones. A word is converted when
// it is a stem followed by one of its permitted endings.
var spellingPairs = []struct {
	ame, bre string
	endings  []string
}{
	{"color", "colour", []string{"", "s", "ed", "ing", "ful"}},
	{"favor", "favour", []string{"", "s", "ed", "ing", "ite", "ites", "able"}},
	{"honor", "honour", []string{"", "s", "ed", "ing", "able"}},
	{"humor", "humour", []string{"", "s", "ed"}},
	{"labor", "labour", []string{"", "s", "ed", "ing", "er", "ers"}},
	{"neighbor", "neighbour", []string{"", "s", "hood", "ing", "ly"}},
	{"behavior", "behaviour", []string{"", "s", "al"}},
	{"center", "centre", []string{"", "s"}},
	{"theater", "theatre", []string{"", "s"}},
	{"fiber", "fibre", []string{"", "s"}},
	{"defense", "defence", []string{"", "s"}},
	{"offense", "offence", []string{"", "s"}},
	{"gray", "grey", []string{""}},
	{"catalog", "catalogue", []string{"", "s"}},
	{"dialog", "dialogue", []string{"", "s"}},
	{"traveled", "travelled", []string{""}},
	{"traveling", "travelling", []string{""}},
	{"traveler", "traveller", []string{"", "s"}},
	{"canceled", "cancelled", []string{""}},
	{"canceling", "cancelling", []string{""}},
	{"modeled", "modelled", []string{""}},
	{"modeling", "modelling", []string{""}},
	{"enroll", "enrol", []string{"", "s"}},
	{"fulfill", "fulfil", []string{"", "s"}},
	{"organiz", "organis", []string{"e", "es", "ed", "ing", "er", "ers", "ation", "ations"}},
	{"recogniz", "recognis", []string{"e", "es", "ed", "ing"}},
	{"realiz", "realis", []string{"e", "es", "ed", "ing"}},
	{"apologiz", "apologis", []string{"e", "es", "ed", "ing"}},
	{"emphasiz", "emphasis", []string{"e", "es", "ed", "ing"}},
	{"summariz", "summaris", []string{"e", "es", "ed", "ing"}},
	{"prioritiz", "prioritis", []string{"e", "es", "ed", "ing"}},
	{"analyz", "analys", []string{"e", "ed", "ing"}},
}

var (
	wordPattern = regexp.MustCompile(`\p{L}+`)
	toBritish   = map[string]string{}
	toAmerican  = map[string]string{}
)

func init() {
	for _, pair := range spellingPairs {
		for _, ending := range pair.endings {
			toBritish[pair.ame+ending] = pair.bre + ending
			toAmerican[pair.bre+ending] = pair.ame + ending
		}
	}
}

func checkDialectParams(params map[string]string) error {
	_, err := dialectTable(params["dialect"])
	return err
}

func dialectTable(name string) (map[string]string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bre":
		return toBritish, nil
	case "ame":
		return toAmerican, nil
	default:
		return nil, fmt.Errorf("dialect %q: want bre or ame", name)
	}
}

// dialect rewrites known spellings into the requested English dialect,
// keeping the case shape of each word.
func dialect(_ context.Context, in Input) (Output, error) {
	table, err := dialectTable(in.Params["dialect"])
	if err != nil {
		return Output{}, err
	}
	out := wordPattern.ReplaceAllStringFunc(string(in.Content), func(word string) string {
		replacement, ok := table[strings.ToLower(word)]
		if !ok {
			return word
		}
		return matchCase(word, replacement)
	})
	return Output{Content: []byte(out)}, nil
}

func matchCase(original, replacement string) string {
	switch {
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case unicode.IsUpper([]rune(original)[0]):
		r := []rune(replacement)
		r[0] = unicode.ToUpper(r[0])
		return string(r)
	default:
		return replacement
	}
}
