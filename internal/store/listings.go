package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"sooqsearch/internal/logging"
	"sooqsearch/internal/textnorm"
	"sooqsearch/internal/types"
)

const listingColumns = `l.id, l.title, l.description, l.category_id, l.city_id,
	l.neighborhood_id, l.transaction_slug, l.boosted, l.priority, l.created_at`

func scanListing(row interface{ Scan(...any) error }, extra ...any) (types.Listing, error) {
	var l types.Listing
	dest := []any{&l.ID, &l.Title, &l.Description, &l.CategoryID, &l.CityID,
		&l.NeighborhoodID, &l.TransactionSlug, &l.Boosted, &l.Priority, &l.CreatedAt}
	dest = append(dest, extra...)
	return l, row.Scan(dest...)
}

// VectorSearch retrieves listings by embedding cosine similarity, filtered
// and ordered by similarity, then boost, priority, and recency.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, minSimilarity float64, filter *types.Filter, limit int) ([]types.SearchResult, error) {
	where, args := filter.Render(4)
	query := fmt.Sprintf(`
		SELECT %s, 1 - (l.embedding <=> $1) AS sim
		FROM listings l
		WHERE l.embedding IS NOT NULL
		  AND 1 - (l.embedding <=> $1) >= $2
		  AND %s
		ORDER BY sim DESC, l.boosted DESC, l.priority DESC, l.created_at DESC
		LIMIT $3`, listingColumns, where)

	queryArgs := append([]any{pgvector.NewVector(embedding), minSimilarity, limit}, args...)
	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []types.SearchResult
	for rows.Next() {
		var sim float64
		l, err := scanListing(rows, &sim)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, types.SearchResult{Listing: l, SimilarityScore: sim, Source: "vector"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, s.enrichAttributes(ctx, out)
}

// FullTextSearch retrieves listings by prefix full-text match over the
// precomputed search vector.
func (s *Store) FullTextSearch(ctx context.Context, tokens []string, lang string, filter *types.Filter, limit int) ([]types.SearchResult, error) {
	tsq := prefixTSQuery(tokens)
	if tsq == "" {
		return nil, nil
	}

	where, args := filter.Render(4)
	query := fmt.Sprintf(`
		SELECT %s, ts_rank(l.search_vector, to_tsquery($1::regconfig, $2)) AS rank
		FROM listings l
		WHERE l.search_vector @@ to_tsquery($1::regconfig, $2)
		  AND %s
		ORDER BY rank DESC, l.boosted DESC, l.priority DESC, l.created_at DESC
		LIMIT $3`, listingColumns, where)

	queryArgs := append([]any{tsConfig(lang), tsq, limit}, args...)
	rows, err := s.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("full text search: %w", err)
	}
	defer rows.Close()

	var out []types.SearchResult
	for rows.Next() {
		var rank float64
		l, err := scanListing(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, types.SearchResult{Listing: l, RankScore: rank, Source: "lexical"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, s.enrichAttributes(ctx, out)
}

// prefixTSQuery builds "tok1:* & tok2:*" from the tokens, escaping tsquery
// operator characters by dropping them.
func prefixTSQuery(tokens []string) string {
	var parts []string
	for _, t := range tokens {
		clean := strings.Map(func(r rune) rune {
			switch r {
			case '&', '|', '!', '(', ')', ':', '*', '\'', '\\':
				return -1
			}
			return r
		}, t)
		if clean != "" {
			parts = append(parts, clean+":*")
		}
	}
	return strings.Join(parts, " & ")
}

// TitleOnlySearch matches keywords against titles alone with ILIKE, trying
// each keyword and its ta-marbuta-swapped variant. Used when no filtered
// method produced results.
func (s *Store) TitleOnlySearch(ctx context.Context, keywords []string, filter *types.Filter, limit int) ([]types.SearchResult, error) {
	return s.likeSearch(ctx, keywords, "l.title ILIKE ?", filter, limit)
}

// FallbackSearch is the widest net: keywords against title or description.
func (s *Store) FallbackSearch(ctx context.Context, keywords []string, filter *types.Filter, limit int) ([]types.SearchResult, error) {
	return s.likeSearch(ctx, keywords, "(l.title ILIKE ? OR l.description ILIKE ?)", filter, limit)
}

func (s *Store) likeSearch(ctx context.Context, keywords []string, clause string, filter *types.Filter, limit int) ([]types.SearchResult, error) {
	f := filter.Clone()
	markers := strings.Count(clause, "?")

	var patterns []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		for _, variant := range taMarbutaVariants(kw) {
			if !seen[variant] {
				seen[variant] = true
				patterns = append(patterns, "%"+variant+"%")
			}
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	var alts []string
	var altArgs []any
	for _, p := range patterns {
		alts = append(alts, clause)
		for i := 0; i < markers; i++ {
			altArgs = append(altArgs, p)
		}
	}
	f.Add("("+strings.Join(alts, " OR ")+")", altArgs...)

	where, args := f.Render(2)
	query := fmt.Sprintf(`
		SELECT %s
		FROM listings l
		WHERE %s
		ORDER BY l.boosted DESC, l.priority DESC, l.created_at DESC
		LIMIT $1`, listingColumns, where)

	rows, err := s.pool.Query(ctx, query, append([]any{limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("like search: %w", err)
	}
	defer rows.Close()

	var out []types.SearchResult
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, types.SearchResult{Listing: l, Source: "lexical"})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, s.enrichAttributes(ctx, out)
}

// taMarbutaVariants returns the keyword plus its ta-marbuta/ha swapped
// forms, so ILIKE matching tolerates the common spelling variation in raw
// listing text. Normalized keywords carry ه, raw titles may carry ة.
func taMarbutaVariants(kw string) []string {
	variants := []string{kw}
	if folded := textnorm.FoldTaMarbuta(kw); folded != kw {
		variants = append(variants, folded)
	}
	if strings.HasSuffix(kw, "ه") {
		variants = append(variants, strings.TrimSuffix(kw, "ه")+"ة")
	}
	return variants
}

// HasEmbeddedListings probes whether any listing matching the filter carries
// an embedding, so the orchestrator can skip the vector path entirely.
func (s *Store) HasEmbeddedListings(ctx context.Context, filter *types.Filter) (bool, error) {
	return s.probe(ctx, "l.embedding IS NOT NULL", filter)
}

// HasSearchVectors probes whether any matching listing has a search vector.
func (s *Store) HasSearchVectors(ctx context.Context, filter *types.Filter) (bool, error) {
	return s.probe(ctx, "l.search_vector IS NOT NULL", filter)
}

func (s *Store) probe(ctx context.Context, cond string, filter *types.Filter) (bool, error) {
	where, args := filter.Render(1)
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM listings l WHERE %s AND %s)`, cond, where)

	var exists bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe: %w", err)
	}
	return exists, nil
}

// CityProvince returns the localized province name of a city, for the
// proximity re-rank.
func (s *Store) CityProvince(ctx context.Context, cityID int64, lang string) (string, error) {
	col := "province_ar"
	if lang == types.LangEnglish {
		col = "province_en"
	}
	var province string
	err := s.pool.QueryRow(ctx, `SELECT `+col+` FROM cities WHERE id = $1`, cityID).Scan(&province)
	if err != nil {
		return "", maybeNoRows(err, "city province")
	}
	return province, nil
}

// CityIDsInProvince returns the city IDs sharing a province, localized by
// language.
func (s *Store) CityIDsInProvince(ctx context.Context, province, lang string) ([]int64, error) {
	col := "province_ar"
	if lang == types.LangEnglish {
		col = "province_en"
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM cities WHERE `+col+` = $1 AND active`, province)
	if err != nil {
		return nil, fmt.Errorf("cities in province: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// enrichAttributes attaches the listing_attributes rows for each result.
func (s *Store) enrichAttributes(ctx context.Context, results []types.SearchResult) error {
	if len(results) == 0 {
		return nil
	}

	ids := make([]int64, len(results))
	byID := make(map[int64]*types.Listing, len(results))
	for i := range results {
		ids[i] = results[i].Listing.ID
		byID[results[i].Listing.ID] = &results[i].Listing
	}

	rows, err := s.pool.Query(ctx, `
		SELECT listing_id, slug, value
		FROM listing_attributes
		WHERE listing_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("listing attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var slug, value string
		if err := rows.Scan(&id, &slug, &value); err != nil {
			return fmt.Errorf("scan attribute: %w", err)
		}
		l := byID[id]
		if l.Attributes == nil {
			l.Attributes = make(map[string]string)
		}
		l.Attributes[slug] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}

	logging.Get(logging.CategoryStore).Debug("enriched %d listings with attributes", len(results))
	return nil
}
