// Package classify implements the value classifiers of the inference engine.
//
// Every function here is pure. Parse functions report success with a bool
// instead of an error: an unparseable value is an expected outcome, not a
// failure. Column predicates (IsBoolean, IsInteger, IsFloat, IsDate) take the
// non-missing raw strings of one column and decide whether the whole column
// plausibly holds that type.
package classify

import "strings"

// Vocabulary is the set of tokens recognized as boolean true/false.
//
// Tokens are stored trimmed and lower-cased; Lookup applies the same folding
// to its input, so matching is case-insensitive.
type Vocabulary struct {
	True  map[string]struct{}
	False map[string]struct{}
}

// DefaultTrueTokens and DefaultFalseTokens are the built-in truth vocabulary.
var (
	DefaultTrueTokens  = []string{"true", "yes", "1", "y", "t", "oui"}
	DefaultFalseTokens = []string{"false", "no", "0", "n", "f", "non"}
)

// DefaultVocabulary returns a fresh copy of the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(DefaultTrueTokens, DefaultFalseTokens)
}

// NewVocabulary builds a vocabulary from token lists. Empty tokens are ignored.
func NewVocabulary(trueTokens, falseTokens []string) Vocabulary {
	v := Vocabulary{
		True:  make(map[string]struct{}, len(trueTokens)),
		False: make(map[string]struct{}, len(falseTokens)),
	}
	for _, t := range trueTokens {
		if t = fold(t); t != "" {
			v.True[t] = struct{}{}
		}
	}
	for _, t := range falseTokens {
		if t = fold(t); t != "" {
			v.False[t] = struct{}{}
		}
	}
	return v
}

// Extend returns a copy of v with extra tokens added, e.g. for another locale
// ("ja"/"nein").
func (v Vocabulary) Extend(trueTokens, falseTokens []string) Vocabulary {
	out := NewVocabulary(nil, nil)
	for k := range v.True {
		out.True[k] = struct{}{}
	}
	for k := range v.False {
		out.False[k] = struct{}{}
	}
	for _, t := range trueTokens {
		if t = fold(t); t != "" {
			out.True[t] = struct{}{}
		}
	}
	for _, t := range falseTokens {
		if t = fold(t); t != "" {
			out.False[t] = struct{}{}
		}
	}
	return out
}

// Empty reports whether the vocabulary has no tokens at all.
func (v Vocabulary) Empty() bool {
	return len(v.True) == 0 && len(v.False) == 0
}

// Lookup maps s to its boolean value. ok is false when s is in neither set.
// A token present in both sets resolves to true.
func (v Vocabulary) Lookup(s string) (value bool, ok bool) {
	s = fold(s)
	if _, hit := v.True[s]; hit {
		return true, true
	}
	if _, hit := v.False[s]; hit {
		return false, true
	}
	return false, false
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
