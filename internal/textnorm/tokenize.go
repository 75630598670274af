package textnorm

import (
	"strings"
	"unicode/utf8"
)

// Stopword sets are keyed by normalized token form: the Arabic entries are
// what the words look like after Normalize has run (إلى -> الى, أو -> او).
var arabicStopwords = map[string]bool{
	"في": true, "من": true, "الى": true, "على": true, "عن": true,
	"مع": true, "هذا": true, "هذه": true, "و": true, "او": true,
	"ال": true, "لل": true, "بال": true,
}

var englishStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "for": true, "to": true, "of": true, "with": true,
	"and": true, "or": true,
}

// IsStopword reports whether the normalized token is a stopword for lang.
func IsStopword(token, lang string) bool {
	if lang == "ar" {
		return arabicStopwords[token]
	}
	return englishStopwords[token]
}

// Tokenize splits normalized text on whitespace, dropping tokens of length
// one or less and language-specific stopwords. Order is preserved.
func Tokenize(normalized, lang string) []string {
	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if IsStopword(f, lang) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// MeaningfulTokens filters tokens shorter than minRunes. Matchers use this
// to keep short fragments from triggering keyword hits.
func MeaningfulTokens(tokens []string, minRunes int) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if utf8.RuneCountInString(t) >= minRunes {
			out = append(out, t)
		}
	}
	return out
}
