// Package service is the public facade over the search core: input
// validation, request tracing, health reporting, and the background
// eviction loop live here so every transport (CLI, HTTP, RPC) gets the
// same behavior.
package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/search"
	"sooqsearch/internal/semcache"
	"sooqsearch/internal/types"
)

// maxQueryRunes bounds the accepted query length.
const maxQueryRunes = 500

// QueryParser parses queries into intents.
type QueryParser interface {
	Parse(ctx context.Context, original, lang string) (*types.Intent, error)
	TierStats() [5]int64
}

// Searcher retrieves result pages for intents.
type Searcher interface {
	Search(ctx context.Context, intent *types.Intent, page, limit int) (*types.ResultPage, error)
}

// HealthStore is the store slice the health check needs.
type HealthStore interface {
	Ping(ctx context.Context) error
	HasEmbeddedListings(ctx context.Context, filter *types.Filter) (bool, error)
	HasSearchVectors(ctx context.Context, filter *types.Filter) (bool, error)
}

// Hot exposes the catalog snapshot for age reporting.
type Hot interface {
	Snapshot(ctx context.Context) *hotcache.Snapshot
}

// EvictorConfig controls the semantic-cache eviction loop.
type EvictorConfig struct {
	Interval time.Duration
	Policy   semcache.EvictionPolicy
}

// Deps wires the facade.
type Deps struct {
	Parser   QueryParser
	Searcher Searcher
	Store    HealthStore
	Hot      Hot            // nil skips snapshot age in health
	Sem      *semcache.Cache // nil disables eviction
	Evictor  EvictorConfig

	LLMConfigured       bool
	EmbeddingConfigured bool
}

// Service is the facade.
type Service struct {
	deps Deps
}

// New creates the facade.
func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Parse validates the query and returns its intent.
func (s *Service) Parse(ctx context.Context, query, lang string) (*types.Intent, error) {
	reqID := uuid.NewString()
	if err := validate(query, lang); err != nil {
		return nil, err
	}

	intent, err := s.deps.Parser.Parse(ctx, query, lang)
	if err != nil {
		return nil, classify(err, "parse query")
	}

	logging.Get(logging.CategoryAPI).Info("parse: req=%s lang=%s tier=%d conf=%.2f", reqID, lang, intent.Tier, intent.Confidence)
	return intent, nil
}

// Search parses the query and retrieves a result page.
func (s *Service) Search(ctx context.Context, query, lang string, page, limit int) (*types.ResultPage, error) {
	reqID := uuid.NewString()
	if err := validate(query, lang); err != nil {
		return nil, err
	}

	intent, err := s.deps.Parser.Parse(ctx, query, lang)
	if err != nil {
		return nil, classify(err, "parse query")
	}

	result, err := s.deps.Searcher.Search(ctx, intent, page, limit)
	if err != nil {
		if errors.Is(err, search.ErrUnresolved) {
			return nil, E(KindParseUnresolved, "query resolves to nothing searchable", err)
		}
		return nil, classify(err, "search")
	}

	logging.Get(logging.CategoryAPI).Info("search: req=%s lang=%s method=%s total=%d page=%d",
		reqID, lang, result.Method, result.Total, result.Page)
	return result, nil
}

// Health reports per-component status.
type Health struct {
	StoreOK             bool     `json:"store_ok"`
	HotCacheAgeSeconds  float64  `json:"hot_cache_age_seconds"`
	VectorReady         bool     `json:"vector_ready"`
	LexicalReady        bool     `json:"lexical_ready"`
	LLMConfigured       bool     `json:"llm_configured"`
	EmbeddingConfigured bool     `json:"embedding_configured"`
	TierStats           [5]int64 `json:"tier_stats"`
	TotalParses         int64    `json:"total_parses"`
}

// HealthCheck pings the store, probes retrieval readiness, and gathers
// parser statistics.
func (s *Service) HealthCheck(ctx context.Context) (*Health, error) {
	h := &Health{
		TierStats:           s.deps.Parser.TierStats(),
		LLMConfigured:       s.deps.LLMConfigured,
		EmbeddingConfigured: s.deps.EmbeddingConfigured,
	}
	for _, n := range h.TierStats {
		h.TotalParses += n
	}
	if s.deps.Hot != nil {
		if snap := s.deps.Hot.Snapshot(ctx); snap != nil && !snap.LoadedAt.IsZero() {
			h.HotCacheAgeSeconds = time.Since(snap.LoadedAt).Seconds()
		}
	}

	if err := s.deps.Store.Ping(ctx); err != nil {
		return h, E(KindStoreUnavail, "store ping", err)
	}
	h.StoreOK = true

	active := &types.Filter{}
	active.Add("l.status = ?", "active")
	if ok, err := s.deps.Store.HasEmbeddedListings(ctx, active); err == nil {
		h.VectorReady = ok && s.deps.EmbeddingConfigured
	}
	if ok, err := s.deps.Store.HasSearchVectors(ctx, active.Clone()); err == nil {
		h.LexicalReady = ok
	}
	return h, nil
}

// StartEvictor launches the semantic-cache eviction loop. No-op when the
// cache is disabled or the interval unset.
func (s *Service) StartEvictor(ctx context.Context) {
	if s.deps.Sem == nil || s.deps.Evictor.Interval <= 0 {
		return
	}
	go s.deps.Sem.RunEvictor(ctx, s.deps.Evictor.Interval, s.deps.Evictor.Policy)
}

// validate enforces the input contract: a query of 2..500 runes and a
// supported language tag.
func validate(query, lang string) error {
	n := utf8.RuneCountInString(query)
	if n < 2 {
		return E(KindInvalidInput, "query too short", nil)
	}
	if n > maxQueryRunes {
		return E(KindInvalidInput, "query too long", nil)
	}
	if lang != types.LangArabic && lang != types.LangEnglish {
		return E(KindInvalidInput, "unsupported language tag", nil)
	}
	return nil
}

// classify maps lower-layer failures onto service kinds.
func classify(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return E(KindTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return E(KindTimeout, msg, err)
	default:
		return E(KindInternal, msg, err)
	}
}
