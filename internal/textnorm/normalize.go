// Package textnorm provides Arabic/English text canonicalization for the
// search core. All indexing and matching runs over the normalized form, so
// the transforms here must stay pure, deterministic, and idempotent.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Arabic letters the normalizer folds.
const (
	alef          = 'ا' // ا
	alefHamzaAbv  = 'أ' // أ
	alefHamzaBlw  = 'إ' // إ
	alefMadda     = 'آ' // آ
	alefWasla     = 'ٱ' // ٱ
	yaBare        = 'ي' // ي
	alefMaqsura   = 'ى' // ى
	taMarbuta     = 'ة' // ة
	haFinal       = 'ه' // ه
	tatweel       = 'ـ' // ـ
	arabicLam     = 'ل' // ل
)

// isArabicDiacritic reports whether r is a combining mark the normalizer
// removes: U+0610–U+061A, U+064B–U+065F, U+0670, U+06D6–U+06ED.
func isArabicDiacritic(r rune) bool {
	switch {
	case r >= 0x0610 && r <= 0x061A:
		return true
	case r >= 0x064B && r <= 0x065F:
		return true
	case r == 0x0670:
		return true
	case r >= 0x06D6 && r <= 0x06ED:
		return true
	}
	return false
}

// foldRune maps a single rune to its canonical form, or -1 to drop it.
func foldRune(r rune) rune {
	switch r {
	case alefHamzaAbv, alefHamzaBlw, alefMadda, alefWasla:
		return alef
	case alefMaqsura:
		return yaBare
	case taMarbuta:
		return haFinal
	case tatweel:
		return -1
	}
	if isArabicDiacritic(r) {
		return -1
	}
	return unicode.ToLower(r)
}

// Normalize canonicalizes text for matching and indexing: Unicode NFKC,
// Arabic diacritic removal, hamza/alef and ya folding, ta-marbuta folding,
// definite-article stripping, ASCII lowercasing, whitespace collapsing.
// Normalize(Normalize(x)) == Normalize(x) for all x.
func Normalize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if f := foldRune(r); f >= 0 {
			b.WriteRune(f)
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = stripDefiniteArticle(w)
	}
	return strings.Join(words, " ")
}

// stripDefiniteArticle removes leading "ال" prefixes from a word. It loops
// so the result is a fixed point: once stripped, stripping again is a no-op.
// A prefix is only removed when at least two runes remain, which keeps
// short function words (الى, الا) intact.
func stripDefiniteArticle(word string) string {
	for {
		runes := []rune(word)
		if len(runes) < 4 || runes[0] != alef || runes[1] != arabicLam {
			return word
		}
		word = string(runes[2:])
	}
}

// FoldTaMarbuta substitutes ta-marbuta with ha. Useful when comparing raw
// catalog keywords that have not passed through Normalize.
func FoldTaMarbuta(s string) string {
	return strings.Map(func(r rune) rune {
		if r == taMarbuta {
			return haFinal
		}
		return r
	}, s)
}

// Equivalent reports whether two strings normalize to the same form,
// allowing the ta-marbuta/ha substitution in either direction.
func Equivalent(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	return FoldTaMarbuta(na) == FoldTaMarbuta(nb)
}
