// Package moderation censors forbidden words in message content before it
// reaches persistence. Matching runs over a normalized view of the text
// (lowercased, punctuation and spacing stripped) so trivial obfuscation like
// "b.a.d w o r d" is still caught, while the replacement preserves the
// original length and spacing.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher         *goahocorasick.Machine
	replacementChar rune
}

// NewModerator builds an Aho-Corasick automaton over the normalized word
// list. An empty list yields a moderator that never censors.
func NewModerator(censoredWords []string, replacementChar rune) (*Moderator, error) {
	if len(censoredWords) == 0 {
		return &Moderator{replacementChar: replacementChar}, nil
	}
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if norm, _ := normalize(word); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacementChar: replacementChar}, nil
}

// Censor replaces every character of every forbidden match with the
// replacement rune. The input is returned untouched when nothing matches.
func (m *Moderator) Censor(original string) string {
	if m.matcher == nil {
		return original
	}
	normalized, origIdx := normalize(original)
	if len(normalized) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original
	}

	runes := []rune(original)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Censor everything between the first and last original rune of the
		// match, separators included.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			runes[i] = m.replacementChar
		}
	}
	return string(runes)
}

// normalize lowercases the text and strips separators, returning the
// normalized runes together with the original index of each kept rune.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	norm := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))
	for i, r := range runes {
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}
