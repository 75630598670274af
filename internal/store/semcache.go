package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"sooqsearch/internal/logging"
	"sooqsearch/internal/types"
)

// NearestParsed returns the stored parse closest to the embedding by cosine
// similarity, along with the similarity. Nil when the table is empty.
func (s *Store) NearestParsed(ctx context.Context, embedding []float32) (*types.ParsedRecord, float64, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, query_text, payload, hit_count, created_at, updated_at,
			1 - (query_embedding <=> $1) AS sim
		FROM parsed_results
		ORDER BY query_embedding <=> $1
		LIMIT 1`, pgvector.NewVector(embedding))

	var r types.ParsedRecord
	var sim float64
	err := row.Scan(&r.ID, &r.QueryText, &r.Payload, &r.HitCount, &r.CreatedAt, &r.UpdatedAt, &sim)
	if err != nil {
		return nil, 0, maybeNoRows(err, "nearest parsed")
	}
	return &r, sim, nil
}

// UpsertParsed stores a parse keyed by query text. Re-storing the same
// query bumps its hit count and refreshes the payload.
func (s *Store) UpsertParsed(ctx context.Context, queryText string, payload []byte, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO parsed_results (query_text, payload, query_embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (query_text) DO UPDATE SET
			payload = EXCLUDED.payload,
			query_embedding = EXCLUDED.query_embedding,
			hit_count = parsed_results.hit_count + 1,
			updated_at = now()`, queryText, payload, pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("upsert parsed: %w", err)
	}
	return nil
}

// BumpParsedHit increments a record's hit count on a cache hit.
func (s *Store) BumpParsedHit(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE parsed_results SET hit_count = hit_count + 1, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bump parsed hit: %w", err)
	}
	return nil
}

// DeleteStaleParsed evicts semantic-cache rows that are cold (below minHits
// and older than staleAfter) or simply too old (older than maxAge). Returns
// the number of rows removed.
func (s *Store) DeleteStaleParsed(ctx context.Context, minHits int, staleAfter, maxAge time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM parsed_results
		WHERE (hit_count < $1 AND updated_at < now() - make_interval(secs => $2))
		   OR updated_at < now() - make_interval(secs => $3)`,
		minHits, staleAfter.Seconds(), maxAge.Seconds())
	if err != nil {
		return 0, fmt.Errorf("delete stale parsed: %w", err)
	}

	n := tag.RowsAffected()
	if n > 0 {
		logging.Get(logging.CategorySemCache).Info("evicted %d stale parses", n)
	}
	return n, nil
}
