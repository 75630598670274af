package matcher

import (
	"context"
	"unicode/utf8"

	"sooqsearch/internal/logging"
	"sooqsearch/internal/textnorm"
	"sooqsearch/internal/types"
)

// MatchLocation resolves a city or neighborhood mention. Exact city names
// from the hot snapshot win; DB similarity over cities comes next; then
// neighborhoods. Returns nil when nothing plausible is mentioned.
func (m *Matcher) MatchLocation(ctx context.Context, normalized, lang string) *types.LocationMatch {
	tokens := locationTokens(normalized, lang)
	if len(tokens) == 0 {
		return nil
	}

	// Strategy 1: snapshot hit on city or province name, exact or by
	// substring in either direction.
	snap := m.hot.Snapshot(ctx)
	for i := range snap.Cities {
		city := &snap.Cities[i]
		name := textnorm.Normalize(city.Name(lang))
		province := textnorm.Normalize(city.Province(lang))
		for _, tok := range tokens {
			if cityNameHit(name, tok) || cityNameHit(province, tok) {
				logging.Matcher("location snapshot city: %q -> %s (%.2f)", tok, city.Name(lang), confCityExact)
				return cityMatch(city, lang, confCityExact)
			}
		}
	}

	// Strategy 2: fuzzy city lookup in the DB, token by token.
	for _, tok := range tokens {
		city, sim, err := m.store.CityBySimilarity(ctx, tok, lang)
		if err != nil {
			logging.Get(logging.CategoryMatcher).Warn("city similarity: %v", err)
			break
		}
		if city != nil {
			logging.Matcher("location city similarity: %q -> %s sim=%.2f (%.2f)", tok, city.Name(lang), sim, confCitySimilar)
			return cityMatch(city, lang, confCitySimilar)
		}
	}

	// Strategy 3: neighborhoods.
	for _, tok := range tokens {
		n, sim, err := m.store.NeighborhoodBySimilarity(ctx, tok, lang)
		if err != nil {
			logging.Get(logging.CategoryMatcher).Warn("neighborhood similarity: %v", err)
			break
		}
		if n != nil {
			logging.Matcher("location neighborhood: %q -> %s sim=%.2f (%.2f)", tok, n.Name(lang), sim, confNeighborhood)
			return &types.LocationMatch{
				ID:         n.ID,
				Kind:       types.LocationNeighborhood,
				Name:       n.Name(lang),
				CityID:     n.CityID,
				Confidence: confNeighborhood,
			}
		}
	}

	return nil
}

// cityNameHit reports whether a token names a city or province: normalized
// equality (ta-marbuta tolerant) or substring containment either way.
func cityNameHit(name, tok string) bool {
	if name == "" {
		return false
	}
	return name == tok || textnorm.Equivalent(name, tok) || containsEither(name, tok)
}

func cityMatch(c *types.City, lang string, conf float64) *types.LocationMatch {
	return &types.LocationMatch{
		ID:         c.ID,
		Kind:       types.LocationCity,
		Name:       c.Name(lang),
		Province:   c.Province(lang),
		Confidence: conf,
	}
}

// locationTokens keeps tokens longer than two runes; two-letter fragments
// never name a city.
func locationTokens(normalized, lang string) []string {
	tokens := textnorm.Tokenize(normalized, lang)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if utf8.RuneCountInString(t) > 2 {
			out = append(out, t)
		}
	}
	return out
}
