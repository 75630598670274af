// Package store is the Postgres layer. All SQL lives here; callers work in
// domain types. Requires the vector and pg_trgm extensions.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"sooqsearch/internal/logging"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Config holds connection settings.
type Config struct {
	DSN     string
	PoolMin int
	PoolMax int
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store: DSN required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: parse DSN: %w", err)
	}
	if cfg.PoolMin > 0 {
		poolCfg.MinConns = int32(cfg.PoolMin)
	}
	if cfg.PoolMax > 0 {
		poolCfg.MaxConns = int32(cfg.PoolMax)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	logging.Get(logging.CategoryStore).Info("connected: pool min=%d max=%d", poolCfg.MinConns, poolCfg.MaxConns)
	return &Store{pool: pool}, nil
}

// Ping checks database liveness.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the schema, extensions, and indexes. Idempotent.
func (s *Store) Migrate(ctx context.Context, embeddingDim int) error {
	for _, stmt := range schemaStatements(embeddingDim) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	logging.Get(logging.CategoryStore).Info("migration complete: embedding dim=%d", embeddingDim)
	return nil
}

func schemaStatements(embeddingDim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,

		`CREATE TABLE IF NOT EXISTS categories (
			id          BIGSERIAL PRIMARY KEY,
			slug        TEXT NOT NULL UNIQUE,
			name_ar     TEXT NOT NULL,
			name_en     TEXT NOT NULL,
			level       INT  NOT NULL DEFAULT 0,
			parent_id   BIGINT REFERENCES categories(id),
			path        TEXT NOT NULL DEFAULT '',
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			sort_order  INT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS category_keywords (
			category_id      BIGINT PRIMARY KEY REFERENCES categories(id) ON DELETE CASCADE,
			keywords_ar      TEXT[] NOT NULL DEFAULT '{}',
			keywords_en      TEXT[] NOT NULL DEFAULT '{}',
			meta_keywords_ar TEXT NOT NULL DEFAULT '',
			meta_keywords_en TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS cities (
			id          BIGSERIAL PRIMARY KEY,
			name_ar     TEXT NOT NULL,
			name_en     TEXT NOT NULL,
			province_ar TEXT NOT NULL DEFAULT '',
			province_en TEXT NOT NULL DEFAULT '',
			latitude    DOUBLE PRECISION,
			longitude   DOUBLE PRECISION,
			active      BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS neighborhoods (
			id      BIGSERIAL PRIMARY KEY,
			name_ar TEXT NOT NULL,
			name_en TEXT NOT NULL,
			city_id BIGINT NOT NULL REFERENCES cities(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS transaction_types (
			id      BIGSERIAL PRIMARY KEY,
			slug    TEXT NOT NULL UNIQUE,
			name_ar TEXT NOT NULL,
			name_en TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS listings (
			id               BIGSERIAL PRIMARY KEY,
			title            TEXT NOT NULL,
			description      TEXT NOT NULL DEFAULT '',
			category_id      BIGINT NOT NULL REFERENCES categories(id),
			city_id          BIGINT NOT NULL REFERENCES cities(id),
			neighborhood_id  BIGINT REFERENCES neighborhoods(id),
			transaction_slug TEXT NOT NULL REFERENCES transaction_types(slug),
			status           TEXT NOT NULL DEFAULT 'active',
			boosted          BOOLEAN NOT NULL DEFAULT FALSE,
			priority         INT NOT NULL DEFAULT 0,
			language         TEXT NOT NULL DEFAULT 'ar',
			search_vector    TSVECTOR,
			embedding        VECTOR(` + fmt.Sprint(embeddingDim) + `),
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS listing_attributes (
			listing_id BIGINT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			slug       TEXT NOT NULL,
			value      TEXT NOT NULL,
			numeric_value DOUBLE PRECISION,
			PRIMARY KEY (listing_id, slug)
		)`,

		`CREATE TABLE IF NOT EXISTS parsed_results (
			id              BIGSERIAL PRIMARY KEY,
			query_text      TEXT NOT NULL UNIQUE,
			payload         JSONB NOT NULL,
			query_embedding VECTOR(` + fmt.Sprint(embeddingDim) + `) NOT NULL,
			hit_count       INT NOT NULL DEFAULT 1,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_categories_parent ON categories (parent_id) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_category_keywords_ar ON category_keywords USING GIN (keywords_ar)`,
		`CREATE INDEX IF NOT EXISTS idx_category_keywords_en ON category_keywords USING GIN (keywords_en)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_name_ar_trgm ON categories USING GIN (name_ar gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_name_en_trgm ON categories USING GIN (name_en gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_cities_name_ar_trgm ON cities USING GIN (name_ar gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_neighborhoods_name_ar_trgm ON neighborhoods USING GIN (name_ar gin_trgm_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_category ON listings (category_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_listings_city ON listings (city_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_listings_search_vector ON listings USING GIN (search_vector)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_embedding ON listings
			USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_parsed_results_embedding ON parsed_results
			USING hnsw (query_embedding vector_cosine_ops)`,
	}
}

// tsConfig maps a language tag to the Postgres text-search configuration.
func tsConfig(lang string) string {
	if lang == "ar" {
		return "arabic"
	}
	return "english"
}
