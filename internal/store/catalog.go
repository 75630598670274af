package store

import (
	"context"
	"fmt"

	"sooqsearch/internal/types"
)

const categoryColumns = `c.id, c.slug, c.name_ar, c.name_en, c.level, c.parent_id, c.path,
	c.active, c.sort_order,
	COALESCE(k.keywords_ar, '{}'), COALESCE(k.keywords_en, '{}'),
	COALESCE(k.meta_keywords_ar, ''), COALESCE(k.meta_keywords_en, '')`

const categoryFrom = `FROM categories c
	LEFT JOIN category_keywords k ON k.category_id = c.id`

func scanCategory(row interface{ Scan(...any) error }) (types.Category, error) {
	var c types.Category
	err := row.Scan(&c.ID, &c.Slug, &c.NameAR, &c.NameEN, &c.Level, &c.ParentID, &c.Path,
		&c.Active, &c.SortOrder,
		&c.KeywordsAR, &c.KeywordsEN, &c.MetaAR, &c.MetaEN)
	return c, err
}

// TopCategories returns the most specific active categories first, for the
// hot cache. Deeper levels sort before shallower so keyword scans prefer
// leaves over roots.
func (s *Store) TopCategories(ctx context.Context, limit int) ([]types.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.active
		ORDER BY c.level DESC, c.sort_order ASC, c.id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	defer rows.Close()

	var out []types.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveCities returns all active cities.
func (s *Store) ActiveCities(ctx context.Context) ([]types.City, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name_ar, name_en, province_ar, province_en, latitude, longitude
		FROM cities WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("active cities: %w", err)
	}
	defer rows.Close()

	var out []types.City
	for rows.Next() {
		var c types.City
		if err := rows.Scan(&c.ID, &c.NameAR, &c.NameEN, &c.ProvinceAR, &c.ProvinceEN,
			&c.Latitude, &c.Longitude); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TransactionTypes returns the closed set of transaction types.
func (s *Store) TransactionTypes(ctx context.Context) ([]types.TransactionType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, slug, name_ar, name_en FROM transaction_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("transaction types: %w", err)
	}
	defer rows.Close()

	var out []types.TransactionType
	for rows.Next() {
		var t types.TransactionType
		if err := rows.Scan(&t.ID, &t.Slug, &t.NameAR, &t.NameEN); err != nil {
			return nil, fmt.Errorf("scan transaction type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CategoryByKeywordTokens matches query tokens against the curated keyword
// arrays. A token matches a keyword on equality, or on containment when the
// shorter of the two is at least 4 runes. Most specific category wins.
func (s *Store) CategoryByKeywordTokens(ctx context.Context, tokens []string, lang string) (*types.Category, error) {
	col := "k.keywords_ar"
	if lang == types.LangEnglish {
		col = "k.keywords_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.active AND EXISTS (
			SELECT 1 FROM unnest(`+col+`) kw, unnest($1::text[]) tok
			WHERE kw = tok
			   OR (least(char_length(kw), char_length(tok)) >= 4
			       AND (kw LIKE '%' || tok || '%' OR tok LIKE '%' || kw || '%'))
		)
		ORDER BY c.level DESC, c.sort_order ASC
		LIMIT 1`, tokens)

	c, err := scanCategory(row)
	if err != nil {
		return nil, maybeNoRows(err, "category by keywords")
	}
	return &c, nil
}

// CategoryByMetaKeywords matches the whole normalized query against the
// free-text meta keyword column.
func (s *Store) CategoryByMetaKeywords(ctx context.Context, normalized, lang string) (*types.Category, error) {
	col := "k.meta_keywords_ar"
	if lang == types.LangEnglish {
		col = "k.meta_keywords_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.active AND `+col+` <> '' AND $1 ILIKE '%' || `+col+` || '%'
		ORDER BY c.level DESC, c.sort_order ASC
		LIMIT 1`, normalized)

	c, err := scanCategory(row)
	if err != nil {
		return nil, maybeNoRows(err, "category by meta keywords")
	}
	return &c, nil
}

// CategoryByFullText ranks categories by full-text match over the localized
// name, using the language's text-search configuration.
func (s *Store) CategoryByFullText(ctx context.Context, normalized, lang string) (*types.Category, error) {
	col := "c.name_ar"
	if lang == types.LangEnglish {
		col = "c.name_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.active AND to_tsvector($1::regconfig, `+col+`) @@ plainto_tsquery($1::regconfig, $2)
		ORDER BY ts_rank(to_tsvector($1::regconfig, `+col+`), plainto_tsquery($1::regconfig, $2)) DESC,
			c.level DESC
		LIMIT 1`, tsConfig(lang), normalized)

	c, err := scanCategory(row)
	if err != nil {
		return nil, maybeNoRows(err, "category by full text")
	}
	return &c, nil
}

// CategoryByTrigram finds the closest category name by trigram similarity
// above the floor, returning the similarity alongside.
func (s *Store) CategoryByTrigram(ctx context.Context, normalized, lang string) (*types.Category, float64, error) {
	col := "c.name_ar"
	if lang == types.LangEnglish {
		col = "c.name_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+`, similarity(`+col+`, $1) AS sim `+categoryFrom+`
		WHERE c.active AND similarity(`+col+`, $1) > 0.3
		ORDER BY sim DESC, c.level DESC
		LIMIT 1`, normalized)

	var c types.Category
	var sim float64
	err := row.Scan(&c.ID, &c.Slug, &c.NameAR, &c.NameEN, &c.Level, &c.ParentID, &c.Path,
		&c.Active, &c.SortOrder,
		&c.KeywordsAR, &c.KeywordsEN, &c.MetaAR, &c.MetaEN, &sim)
	if err != nil {
		return nil, 0, maybeNoRows(err, "category by trigram")
	}
	return &c, sim, nil
}

// CityBySimilarity finds the closest city by name. Exact normalized equality
// is tried first; trigram similarity above 0.4 otherwise.
func (s *Store) CityBySimilarity(ctx context.Context, token, lang string) (*types.City, float64, error) {
	col := "name_ar"
	if lang == types.LangEnglish {
		col = "name_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, name_ar, name_en, province_ar, province_en, latitude, longitude,
			similarity(`+col+`, $1) AS sim
		FROM cities
		WHERE active AND (`+col+` = $1 OR similarity(`+col+`, $1) > 0.4)
		ORDER BY (`+col+` = $1) DESC, sim DESC
		LIMIT 1`, token)

	var c types.City
	var sim float64
	err := row.Scan(&c.ID, &c.NameAR, &c.NameEN, &c.ProvinceAR, &c.ProvinceEN,
		&c.Latitude, &c.Longitude, &sim)
	if err != nil {
		return nil, 0, maybeNoRows(err, "city by similarity")
	}
	return &c, sim, nil
}

// NeighborhoodBySimilarity finds the closest neighborhood by name.
func (s *Store) NeighborhoodBySimilarity(ctx context.Context, token, lang string) (*types.Neighborhood, float64, error) {
	col := "name_ar"
	if lang == types.LangEnglish {
		col = "name_en"
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, name_ar, name_en, city_id, similarity(`+col+`, $1) AS sim
		FROM neighborhoods
		WHERE `+col+` = $1 OR similarity(`+col+`, $1) > 0.4
		ORDER BY (`+col+` = $1) DESC, sim DESC
		LIMIT 1`, token)

	var n types.Neighborhood
	var sim float64
	err := row.Scan(&n.ID, &n.NameAR, &n.NameEN, &n.CityID, &sim)
	if err != nil {
		return nil, 0, maybeNoRows(err, "neighborhood by similarity")
	}
	return &n, sim, nil
}

// DescendantLeaves walks the category tree below id and returns the active
// leaves (categories with no active children).
func (s *Store) DescendantLeaves(ctx context.Context, id int64) ([]types.Category, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE sub AS (
			SELECT c.id FROM categories c WHERE c.id = $1 AND c.active
			UNION ALL
			SELECT c.id FROM categories c JOIN sub ON c.parent_id = sub.id WHERE c.active
		)
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.id IN (SELECT id FROM sub)
		  AND NOT EXISTS (
			SELECT 1 FROM categories ch WHERE ch.parent_id = c.id AND ch.active
		  )
		ORDER BY c.sort_order ASC, c.id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("descendant leaves: %w", err)
	}
	defer rows.Close()

	var out []types.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryParent returns the active parent of id, or nil at a root.
func (s *Store) CategoryParent(ctx context.Context, id int64) (*types.Category, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+categoryColumns+` `+categoryFrom+`
		WHERE c.active AND c.id = (SELECT parent_id FROM categories WHERE id = $1)`, id)

	c, err := scanCategory(row)
	if err != nil {
		return nil, maybeNoRows(err, "category parent")
	}
	return &c, nil
}
