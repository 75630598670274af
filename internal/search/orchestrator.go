// Package search turns parsed intents into ranked result pages. The
// orchestrator picks a retrieval method from what the inventory supports,
// widens the net when strict filters come back empty, and re-ranks by
// location proximity before paginating.
package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"sooqsearch/internal/cache"
	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/types"
)

// ErrUnresolved reports an intent with nothing to search on.
var ErrUnresolved = errors.New("intent resolves neither a category nor keywords")

// vectorSimilarityFloor prunes semantically unrelated listings from the
// vector candidate pool.
const vectorSimilarityFloor = 0.3

// lexicalOnlyMaxConf routes weakly understood intents to the lexical
// retriever alone: below it the embedding of a half-parsed query ranks on
// noise.
const lexicalOnlyMaxConf = 0.5

// Availability-probe states. The store inventory is probed once and
// remembered for the orchestrator's lifetime.
const (
	probeUnknown int32 = iota
	probeYes
	probeNo
)

// ListingStore is the retrieval slice of the store.
type ListingStore interface {
	VectorSearch(ctx context.Context, embedding []float32, minSimilarity float64, filter *types.Filter, limit int) ([]types.SearchResult, error)
	FullTextSearch(ctx context.Context, tokens []string, lang string, filter *types.Filter, limit int) ([]types.SearchResult, error)
	TitleOnlySearch(ctx context.Context, keywords []string, filter *types.Filter, limit int) ([]types.SearchResult, error)
	FallbackSearch(ctx context.Context, keywords []string, filter *types.Filter, limit int) ([]types.SearchResult, error)
	HasEmbeddedListings(ctx context.Context, filter *types.Filter) (bool, error)
	HasSearchVectors(ctx context.Context, filter *types.Filter) (bool, error)
	CategoryParent(ctx context.Context, id int64) (*types.Category, error)
}

// Embedder embeds the query for the vector path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CategoryValidator double-checks mid-confidence category matches.
type CategoryValidator interface {
	ValidateCategory(ctx context.Context, utterance, categoryName string) (bool, error)
}

// Hot provides the catalog snapshot for the proximity re-rank.
type Hot interface {
	Snapshot(ctx context.Context) *hotcache.Snapshot
}

// Config holds the orchestrator thresholds.
type Config struct {
	CategoryGateLow     float64
	CategoryGateHigh    float64
	VectorMethodMinConf float64
	ResultCacheTTL      time.Duration
	ResultCacheSize     int
	DefaultLimit        int
	MaxFallbackDepth    int
	CandidatePoolSize   int
}

// Orchestrator runs retrieval for parsed intents.
type Orchestrator struct {
	store     ListingStore
	embedder  Embedder          // nil disables the vector path
	validator CategoryValidator // nil disables the mid-confidence check
	hot       Hot
	results   *cache.TTLCache[*types.ResultPage]
	cfg       Config

	embeddedProbe atomic.Int32
	tsvectorProbe atomic.Int32
}

// New creates an orchestrator. embedder and validator may be nil.
func New(store ListingStore, embedder Embedder, validator CategoryValidator, hot Hot, cfg Config) *Orchestrator {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.CandidatePoolSize <= 0 {
		cfg.CandidatePoolSize = 100
	}
	return &Orchestrator{
		store:     store,
		embedder:  embedder,
		validator: validator,
		hot:       hot,
		results:   cache.New[*types.ResultPage](cfg.ResultCacheSize, cfg.ResultCacheTTL),
		cfg:       cfg,
	}
}

// Search retrieves, ranks, and paginates listings for the intent.
func (o *Orchestrator) Search(ctx context.Context, intent *types.Intent, page, limit int) (*types.ResultPage, error) {
	if intent.Unresolved() {
		return nil, ErrUnresolved
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = o.cfg.DefaultLimit
	}

	key := resultKey(intent, page, limit)
	if cached, ok := o.results.Get(key); ok {
		out := *cached
		out.Cached = true
		logging.Retrieval("result cache hit: %q page=%d", intent.Normalized, page)
		return &out, nil
	}

	includeCategory, titleFirst := o.gateCategory(ctx, intent)

	var method string
	var results []types.SearchResult
	var err error

	// A category the parser barely believes in short-circuits to the
	// title-only pass without any category filter. Hits are served as-is;
	// an empty pass falls through to normal retrieval, still categoryless.
	if titleFirst && len(intent.Keywords) > 0 {
		loose := BuildFilter(intent, false)
		results, err = o.store.TitleOnlySearch(ctx, intent.Keywords, loose, o.cfg.CandidatePoolSize)
		if err != nil {
			return nil, fmt.Errorf("title search: %w", err)
		}
		method = "title_only"
	}

	if len(results) == 0 {
		filter := BuildFilter(intent, includeCategory)
		method, results, err = o.retrieve(ctx, intent, filter)
		if err != nil {
			return nil, err
		}
	}

	// Empty with a category filter: climb the category tree and retry at
	// each ancestor before giving up on the filter entirely.
	if len(results) == 0 && includeCategory {
		method, results = o.parentFallback(ctx, intent)
	}

	// Still empty: progressively unfiltered keyword passes.
	if len(results) == 0 && len(intent.Keywords) > 0 {
		loose := BuildFilter(intent, false)
		results, err = o.store.TitleOnlySearch(ctx, intent.Keywords, loose, o.cfg.CandidatePoolSize)
		if err != nil {
			return nil, fmt.Errorf("title search: %w", err)
		}
		method = "title_only"

		if len(results) == 0 {
			results, err = o.store.FallbackSearch(ctx, intent.Keywords, loose, o.cfg.CandidatePoolSize)
			if err != nil {
				return nil, fmt.Errorf("fallback search: %w", err)
			}
			method = "fallback"
		}
	}

	o.rerank(ctx, intent, results)

	total := len(results)
	offset := (page - 1) * limit
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	pageOut := &types.ResultPage{
		Results: results[offset:end],
		Total:   total,
		Page:    page,
		Limit:   limit,
		Method:  method,
		Intent:  intent,
	}

	// Empty pages stay uncached so newly inserted listings show up
	// immediately.
	if len(pageOut.Results) > 0 {
		o.results.Set(key, pageOut)
	}
	logging.Retrieval("search: %q method=%s total=%d page=%d", intent.Normalized, method, total, page)
	return pageOut, nil
}

// gateCategory decides whether the category filter applies, judged on the
// parser's overall confidence. Below the low gate the match is discarded and
// titleFirst tells the caller to try the title-only pass before anything
// else; between the gates the validator gets a vote; above the high gate the
// category is trusted outright.
func (o *Orchestrator) gateCategory(ctx context.Context, intent *types.Intent) (include, titleFirst bool) {
	cat := intent.Category
	if cat == nil {
		return false, false
	}
	if intent.Confidence < o.cfg.CategoryGateLow {
		logging.Retrieval("category gate: dropping %s (%.2f < %.2f)", cat.Slug, intent.Confidence, o.cfg.CategoryGateLow)
		return false, true
	}
	if intent.Confidence >= o.cfg.CategoryGateHigh || o.validator == nil {
		return true, false
	}

	ok, err := o.validator.ValidateCategory(ctx, intent.Original, cat.Name)
	if err != nil {
		// Validator outage never costs a plausible category.
		logging.Get(logging.CategoryRetrieval).Warn("category validation: %v", err)
		return true, false
	}
	if !ok {
		logging.Retrieval("category gate: validator rejected %s for %q", cat.Slug, intent.Normalized)
	}
	return ok, false
}

// retrieve picks the retrieval method: vector alone for confident, richly
// specified intents; lexical alone for weakly understood ones; hybrid for
// the middle ground. The inventory probes constrain what can actually run.
func (o *Orchestrator) retrieve(ctx context.Context, intent *types.Intent, filter *types.Filter) (string, []types.SearchResult, error) {
	vectorOK := o.embedder != nil && o.vectorAvailable(ctx)
	lexicalOK := len(intent.Keywords) > 0 && o.lexicalAvailable(ctx)

	specific := len(intent.Attributes) >= 2 || len(intent.Keywords) >= 2

	switch {
	case vectorOK && intent.Confidence > o.cfg.VectorMethodMinConf && specific:
		results, err := o.vector(ctx, intent, filter)
		return "vector", results, err
	case lexicalOK && intent.Confidence < lexicalOnlyMaxConf:
		results, err := o.lexical(ctx, intent, filter)
		return "lexical", results, err
	case vectorOK && lexicalOK:
		results, err := o.hybrid(ctx, intent, filter)
		return "hybrid", results, err
	case vectorOK:
		results, err := o.vector(ctx, intent, filter)
		return "vector", results, err
	case lexicalOK:
		results, err := o.lexical(ctx, intent, filter)
		return "lexical", results, err
	}
	return "lexical", nil, nil
}

// vectorAvailable reports whether any active listing carries an embedding.
func (o *Orchestrator) vectorAvailable(ctx context.Context) bool {
	return o.probe(ctx, &o.embeddedProbe, o.store.HasEmbeddedListings)
}

// lexicalAvailable reports whether the search_vector column is populated.
func (o *Orchestrator) lexicalAvailable(ctx context.Context) bool {
	return o.probe(ctx, &o.tsvectorProbe, o.store.HasSearchVectors)
}

// probe memoizes an inventory check. Errors stay unmemoized so a recovered
// store is noticed on the next search.
func (o *Orchestrator) probe(ctx context.Context, state *atomic.Int32, check func(context.Context, *types.Filter) (bool, error)) bool {
	if s := state.Load(); s != probeUnknown {
		return s == probeYes
	}

	active := &types.Filter{}
	active.Add("l.status = ?", "active")
	ok, err := check(ctx, active)
	if err != nil {
		logging.Get(logging.CategoryRetrieval).Warn("inventory probe: %v", err)
		return false
	}
	if ok {
		state.Store(probeYes)
	} else {
		state.Store(probeNo)
	}
	return ok
}

func (o *Orchestrator) vector(ctx context.Context, intent *types.Intent, filter *types.Filter) ([]types.SearchResult, error) {
	vec, err := o.embedder.Embed(ctx, intent.Normalized)
	if err != nil {
		// Embedder outage degrades to the lexical path.
		logging.Get(logging.CategoryRetrieval).Warn("query embed: %v", err)
		return o.lexical(ctx, intent, filter)
	}
	return o.store.VectorSearch(ctx, vec, vectorSimilarityFloor, filter, o.cfg.CandidatePoolSize)
}

func (o *Orchestrator) lexical(ctx context.Context, intent *types.Intent, filter *types.Filter) ([]types.SearchResult, error) {
	return o.store.FullTextSearch(ctx, intent.Keywords, intent.Language, filter, o.cfg.CandidatePoolSize)
}

// hybrid merges vector and lexical candidates, vector first; a listing
// found by both keeps its vector entry with the lexical rank folded in.
func (o *Orchestrator) hybrid(ctx context.Context, intent *types.Intent, filter *types.Filter) ([]types.SearchResult, error) {
	vecResults, err := o.vector(ctx, intent, filter)
	if err != nil {
		return nil, err
	}
	lexResults, err := o.lexical(ctx, intent, filter)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]int, len(vecResults))
	for i, r := range vecResults {
		seen[r.Listing.ID] = i
	}

	merged := vecResults
	for _, r := range lexResults {
		if i, ok := seen[r.Listing.ID]; ok {
			merged[i].RankScore = r.RankScore
			continue
		}
		merged = append(merged, r)
	}
	if len(merged) > o.cfg.CandidatePoolSize {
		merged = merged[:o.cfg.CandidatePoolSize]
	}
	return merged, nil
}

// parentFallback walks up the category tree, running the lexical retriever
// at each ancestor. The cheap retriever is deliberate here: the walk is
// already a consolation pass, and ancestors are broad enough for full text.
func (o *Orchestrator) parentFallback(ctx context.Context, intent *types.Intent) (string, []types.SearchResult) {
	current := intent.Category.ID
	for depth := 0; depth < o.cfg.MaxFallbackDepth; depth++ {
		parent, err := o.store.CategoryParent(ctx, current)
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("parent fallback: %v", err)
			break
		}
		if parent == nil {
			break
		}

		widened := *intent
		cat := *intent.Category
		cat.ID = parent.ID
		cat.Slug = parent.Slug
		cat.Level = parent.Level
		widened.Category = &cat

		filter := BuildFilter(&widened, true)
		results, err := o.lexical(ctx, &widened, filter)
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("parent fallback search: %v", err)
			break
		}
		if len(results) > 0 {
			logging.Retrieval("parent fallback: %s -> %s at depth %d (%d results)",
				intent.Category.Slug, parent.Slug, depth+1, len(results))
			return "lexical", results
		}
		current = parent.ID
	}
	return "lexical", nil
}

// rerank orders by location proximity first (same city, then same
// province), then by the merged primary score.
func (o *Orchestrator) rerank(ctx context.Context, intent *types.Intent, results []types.SearchResult) {
	if len(results) < 2 {
		return
	}

	provinceOf := map[int64]string{}
	var wantCity int64
	var wantProvince string
	if loc := intent.Location; loc != nil {
		if loc.Kind == types.LocationNeighborhood {
			wantCity = loc.CityID
		} else {
			wantCity = loc.ID
			wantProvince = loc.Province
		}
		snap := o.hot.Snapshot(ctx)
		for i := range snap.Cities {
			provinceOf[snap.Cities[i].ID] = snap.Cities[i].Province(intent.Language)
		}
	}

	rank := func(r *types.SearchResult) (int, float64) {
		tier := 2
		if wantCity != 0 && r.Listing.CityID == wantCity {
			tier = 0
		} else if wantProvince != "" && provinceOf[r.Listing.CityID] == wantProvince {
			tier = 1
		}
		return tier, r.PrimaryScore()
	}

	sort.SliceStable(results, func(i, j int) bool {
		ti, si := rank(&results[i])
		tj, sj := rank(&results[j])
		if ti != tj {
			return ti < tj
		}
		return si > sj
	})
}

// resultKey hashes the searchable fields of the intent plus pagination.
// Volatile metadata (tokens, tier) stays out so identical searches share a
// cache entry regardless of how they were parsed.
func resultKey(intent *types.Intent, page, limit int) string {
	payload, _ := json.Marshal(struct {
		Normalized  string
		Language    string
		Category    *types.CategoryMatch
		Location    *types.LocationMatch
		Transaction *types.TransactionMatch
		Attributes  map[string]types.AttributeValue
		Page        int
		Limit       int
	}{
		intent.Normalized, intent.Language, intent.Category, intent.Location,
		intent.Transaction, intent.Attributes, page, limit,
	})
	sum := md5.Sum(payload)
	return "results:" + hex.EncodeToString(sum[:])
}
