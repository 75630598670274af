// Package matcher resolves free-text mentions of categories, locations, and
// transaction types against the live catalog. Strategies run cheapest first;
// store failures degrade to "no match" so the parser can escalate tiers
// instead of erroring out.
package matcher

import (
	"context"
	"strings"
	"unicode/utf8"

	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/textnorm"
	"sooqsearch/internal/types"
)

// Strategy confidences. Exact hot-cache hits outrank every DB heuristic.
const (
	confExactKeyword  = 0.95
	confKeywordSingle = 0.70
	confMetaKeyword   = 0.85
	confFullText      = 0.85
	confTrigram       = 0.75

	confCityExact    = 0.95
	confCitySimilar  = 0.90
	confNeighborhood = 0.85
)

// minTokenRunes filters noise tokens before catalog matching.
const minTokenRunes = 3

// CatalogStore is the slice of the store the matcher needs.
type CatalogStore interface {
	CategoryByKeywordTokens(ctx context.Context, tokens []string, lang string) (*types.Category, error)
	CategoryByMetaKeywords(ctx context.Context, normalized, lang string) (*types.Category, error)
	CategoryByFullText(ctx context.Context, normalized, lang string) (*types.Category, error)
	CategoryByTrigram(ctx context.Context, normalized, lang string) (*types.Category, float64, error)
	CityBySimilarity(ctx context.Context, token, lang string) (*types.City, float64, error)
	NeighborhoodBySimilarity(ctx context.Context, token, lang string) (*types.Neighborhood, float64, error)
	DescendantLeaves(ctx context.Context, id int64) ([]types.Category, error)
}

// Hot provides the in-memory catalog snapshot.
type Hot interface {
	Snapshot(ctx context.Context) *hotcache.Snapshot
}

// Matcher bundles the catalog sources.
type Matcher struct {
	store CatalogStore
	hot   Hot
}

// New creates a matcher over the given sources.
func New(store CatalogStore, hot Hot) *Matcher {
	return &Matcher{store: store, hot: hot}
}

// MatchCategory resolves the best category for the normalized query text.
// Returns nil when no strategy matches.
func (m *Matcher) MatchCategory(ctx context.Context, normalized, lang string) *types.CategoryMatch {
	tokens := matchTokens(normalized, lang)
	if len(tokens) == 0 {
		return nil
	}

	// Strategy 1: curated keyword hit against the hot snapshot, exact or
	// by containment. First match in snapshot order wins.
	snap := m.hot.Snapshot(ctx)
	for i := range snap.Categories {
		c := &snap.Categories[i]
		for _, kw := range c.Keywords(lang) {
			for _, tok := range tokens {
				if keywordMatches(textnorm.Normalize(kw), tok) {
					logging.Matcher("category snapshot keyword: %q -> %s (%.2f)", tok, c.Slug, confExactKeyword)
					return categoryMatch(c, lang, confExactKeyword)
				}
			}
		}
	}

	// Strategy 2: keyword-array match in the DB. Two distinct tokens
	// hitting the list make the match trustworthy; one is tentative.
	if c, err := m.store.CategoryByKeywordTokens(ctx, tokens, lang); err != nil {
		logging.Get(logging.CategoryMatcher).Warn("keyword tokens lookup: %v", err)
	} else if c != nil {
		conf := keywordArrayConfidence(tokens, c.Keywords(lang))
		logging.Matcher("category keyword array: %s (%.2f)", c.Slug, conf)
		return categoryMatch(c, lang, conf)
	}

	// Strategy 3: free-text meta keywords.
	if c, err := m.store.CategoryByMetaKeywords(ctx, normalized, lang); err != nil {
		logging.Get(logging.CategoryMatcher).Warn("meta keywords lookup: %v", err)
	} else if c != nil {
		logging.Matcher("category meta keywords: %s (%.2f)", c.Slug, confMetaKeyword)
		return categoryMatch(c, lang, confMetaKeyword)
	}

	// Strategy 4: language-aware full text over category names.
	if c, err := m.store.CategoryByFullText(ctx, normalized, lang); err != nil {
		logging.Get(logging.CategoryMatcher).Warn("full text lookup: %v", err)
	} else if c != nil {
		logging.Matcher("category full text: %s (%.2f)", c.Slug, confFullText)
		return categoryMatch(c, lang, confFullText)
	}

	// Strategy 5: trigram similarity, the typo net.
	if c, sim, err := m.store.CategoryByTrigram(ctx, normalized, lang); err != nil {
		logging.Get(logging.CategoryMatcher).Warn("trigram lookup: %v", err)
	} else if c != nil {
		logging.Matcher("category trigram: %s sim=%.2f (%.2f)", c.Slug, sim, confTrigram)
		return categoryMatch(c, lang, confTrigram)
	}

	return nil
}

// FindLeafCategory refines a non-leaf match to the most specific descendant
// leaf whose keywords appear in the query tokens. Returns nil when no leaf
// is distinguishable, in which case the caller keeps the original match.
func (m *Matcher) FindLeafCategory(ctx context.Context, match *types.CategoryMatch, normalized, lang string) *types.CategoryMatch {
	leaves, err := m.store.DescendantLeaves(ctx, match.ID)
	if err != nil {
		logging.Get(logging.CategoryMatcher).Warn("descendant leaves: %v", err)
		return nil
	}
	if len(leaves) == 0 {
		return nil
	}

	tokens := matchTokens(normalized, lang)
	for i := range leaves {
		leaf := &leaves[i]
		for _, kw := range leaf.Keywords(lang) {
			nkw := textnorm.Normalize(kw)
			for _, tok := range tokens {
				if nkw == tok || containsEither(nkw, tok) {
					logging.Matcher("leaf refinement: %s -> %s", match.Slug, leaf.Slug)
					return categoryMatch(leaf, lang, match.Confidence)
				}
			}
		}
	}
	return nil
}

func categoryMatch(c *types.Category, lang string, conf float64) *types.CategoryMatch {
	return &types.CategoryMatch{
		ID:         c.ID,
		Slug:       c.Slug,
		Name:       c.Name(lang),
		Level:      c.Level,
		Confidence: conf,
	}
}

// keywordMatches reports whether a normalized keyword matches a token:
// exact equality, or substring containment in either direction when both
// strings span at least four runes. Containment overlap is always the whole
// shorter string, which clears the 80% bar by construction.
func keywordMatches(keyword, token string) bool {
	if keyword == token {
		return true
	}
	if !containsEither(keyword, token) {
		return false
	}
	return utf8.RuneCountInString(keyword) >= 4 && utf8.RuneCountInString(token) >= 4
}

// keywordArrayConfidence counts the distinct tokens that hit the keyword
// list: 0.95 for two or more, 0.70 for one (or when the keyword list was
// not loadable in-process).
func keywordArrayConfidence(tokens []string, keywords []string) float64 {
	matched := 0
	for _, tok := range tokens {
		for _, kw := range keywords {
			if keywordMatches(textnorm.Normalize(kw), tok) {
				matched++
				break
			}
		}
	}
	if matched >= 2 {
		return confExactKeyword
	}
	return confKeywordSingle
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// matchTokens tokenizes normalized text and keeps tokens long enough to be
// meaningful for catalog matching.
func matchTokens(normalized, lang string) []string {
	return textnorm.MeaningfulTokens(textnorm.Tokenize(normalized, lang), minTokenRunes)
}
