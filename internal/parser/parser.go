// Package parser turns free-text queries into catalog-grounded intents
// through five escalating tiers: exact cache, database matching, semantic
// cache, and two LLM hint passes. Cheaper tiers always run first; the LLM
// is consulted only when the catalog cannot resolve the query on its own.
package parser

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sooqsearch/internal/cache"
	"sooqsearch/internal/llm"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/textnorm"
	"sooqsearch/internal/types"
)

// Confidence weights. The overall confidence is the weighted mean over the
// components that are present: transaction only counts when its own
// confidence clears 0.7; extracted attributes count as fully confident.
const (
	weightCategory    = 0.40
	weightLocation    = 0.30
	weightTransaction = 0.15
	weightAttributes  = 0.15

	txConfidenceFloor = 0.7
)

// llmResolvedConfidence is assigned when an LLM hint re-resolves against the
// catalog. The hint tiers only ever fill fields tier 1 could not, so their
// confidence is fixed rather than recomputed.
const llmResolvedConfidence = 0.85

// CatalogMatcher resolves mentions against the catalog.
type CatalogMatcher interface {
	MatchCategory(ctx context.Context, normalized, lang string) *types.CategoryMatch
	MatchLocation(ctx context.Context, normalized, lang string) *types.LocationMatch
	MatchTransactionType(normalized string) *types.TransactionMatch
	FindLeafCategory(ctx context.Context, match *types.CategoryMatch, normalized, lang string) *types.CategoryMatch
}

// SemanticCache looks up and stores parses by embedding proximity.
type SemanticCache interface {
	Lookup(ctx context.Context, normalized string) (*types.Intent, []float32, error)
	Store(ctx context.Context, normalized string, intent *types.Intent, vec []float32) error
}

// HintSource produces LLM hints for the two top tiers.
type HintSource interface {
	ShortHints(ctx context.Context, utterance string) (*llm.Hints, llm.Usage, error)
	FullHints(ctx context.Context, utterance string) (*llm.Hints, llm.Usage, error)
	Model() string
}

// AttrExtractor extracts structured attributes from normalized text.
type AttrExtractor func(normalized string) map[string]types.AttributeValue

// Config holds the parser thresholds and timeouts.
type Config struct {
	Tier1ConfidenceThreshold float64
	Tier3Timeout             time.Duration
	Tier4Timeout             time.Duration
}

// Parser is the tiered query parser.
type Parser struct {
	matcher CatalogMatcher
	sem     SemanticCache // nil disables tier 2
	hints   HintSource    // nil disables tiers 3 and 4
	extract AttrExtractor
	exact   *cache.TTLCache[*types.Intent]
	cfg     Config

	tierHits [5]atomic.Int64
}

// New creates a parser. sem and hints may be nil; the corresponding tiers
// are skipped.
func New(m CatalogMatcher, sem SemanticCache, hints HintSource, extract AttrExtractor, exact *cache.TTLCache[*types.Intent], cfg Config) *Parser {
	return &Parser{matcher: m, sem: sem, hints: hints, extract: extract, exact: exact, cfg: cfg}
}

// Parse resolves a query to an intent. It always returns an intent; the
// caller inspects Confidence, Tier, and Unresolved to decide what to do
// with it.
func (p *Parser) Parse(ctx context.Context, original, lang string) (*types.Intent, error) {
	normalized := textnorm.Normalize(original)
	key := exactKey(normalized, lang)

	// Tier 0: exact cache. The served copy reports tier 0 no matter which
	// tier produced the cached parse.
	if cached, ok := p.exact.Get(key); ok {
		p.tierHits[types.TierExactCache].Add(1)
		out := *cached
		out.Original = original
		out.Tier = types.TierExactCache
		out.Method = "exact_cache"
		logging.Parser("tier 0 hit: %q", normalized)
		return &out, nil
	}

	// Tier 1: database matching.
	intent := p.parseTier1(ctx, original, normalized, lang)
	if intent.Confidence >= p.cfg.Tier1ConfidenceThreshold {
		p.tierHits[types.TierDatabase].Add(1)
		p.exact.Set(key, intent)
		logging.Parser("tier 1: %q conf=%.2f", normalized, intent.Confidence)
		return intent, nil
	}

	// Tier 2: semantic cache.
	var queryVec []float32
	if p.sem != nil {
		cached, vec, err := p.sem.Lookup(ctx, normalized)
		queryVec = vec
		if err == nil && cached != nil {
			p.tierHits[types.TierSemanticCache].Add(1)
			cached.Original = original
			cached.Tier = types.TierSemanticCache
			cached.Method = "semantic_cache"
			p.exact.Set(key, cached)
			return cached, nil
		}
	}

	// Tiers 3 and 4: LLM hints, short prompt first. A tier returns non-nil
	// only when at least one hint re-resolved against the catalog.
	if p.hints != nil {
		if resolved := p.parseLLMTier(ctx, intent, normalized, lang, types.TierLLMShort); resolved != nil {
			p.finishLLM(ctx, key, normalized, resolved, queryVec)
			return resolved, nil
		}
		if resolved := p.parseLLMTier(ctx, intent, normalized, lang, types.TierLLMFull); resolved != nil {
			p.finishLLM(ctx, key, normalized, resolved, queryVec)
			return resolved, nil
		}
	}

	// All escalations exhausted: serve the tier-1 parse at reduced
	// confidence rather than failing.
	intent.Confidence *= 0.8
	intent.Method = "fallback"
	p.tierHits[types.TierDatabase].Add(1)
	logging.Parser("fallback: %q conf=%.2f", normalized, intent.Confidence)
	return intent, nil
}

// parseTier1 runs the catalog matchers. Category and location lookups are
// independent and run concurrently.
func (p *Parser) parseTier1(ctx context.Context, original, normalized, lang string) *types.Intent {
	intent := &types.Intent{
		Original:   original,
		Normalized: normalized,
		Language:   lang,
		Tier:       types.TierDatabase,
		Method:     "database",
		Keywords:   textnorm.MeaningfulTokens(textnorm.Tokenize(normalized, lang), 2),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent.Category = p.matcher.MatchCategory(gctx, normalized, lang)
		return nil
	})
	g.Go(func() error {
		intent.Location = p.matcher.MatchLocation(gctx, normalized, lang)
		return nil
	})
	_ = g.Wait()

	intent.Transaction = p.matcher.MatchTransactionType(normalized)
	intent.Attributes = p.extract(normalized)

	// Refine shallow category matches toward a leaf; refinement costs a
	// little confidence since it rests on weaker evidence.
	if intent.Category != nil && intent.Category.Level < 2 {
		if leaf := p.matcher.FindLeafCategory(ctx, intent.Category, normalized, lang); leaf != nil {
			leaf.Confidence = intent.Category.Confidence * 0.95
			intent.Category = leaf
		}
	}

	intent.Confidence = weightedConfidence(intent)
	return intent
}

// parseLLMTier asks the LLM for hints and re-resolves every hint against
// the catalog. Nil means no hint resolved, so the tier could not improve
// the base parse.
func (p *Parser) parseLLMTier(ctx context.Context, base *types.Intent, normalized, lang string, tier int) *types.Intent {
	timeout := p.cfg.Tier3Timeout
	ask := p.hints.ShortHints
	method := "llm_short"
	if tier == types.TierLLMFull {
		timeout = p.cfg.Tier4Timeout
		ask = p.hints.FullHints
		method = "llm_full"
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hints, usage, err := ask(hctx, base.Original)
	if err != nil {
		logging.Get(logging.CategoryParser).Warn("tier %d hints: %v", tier, err)
		return nil
	}
	if hints.Empty() {
		return nil
	}

	out := *base
	out.Tier = tier
	out.Method = method
	out.LLMModel = p.hints.Model()
	out.LLMTokens = base.LLMTokens + usage.TotalTokens

	// Hints are suggestions, never authority: each one goes back through
	// the same catalog matchers as user text.
	resolved := false
	if out.Category == nil && hints.Category != "" {
		if c := p.matcher.MatchCategory(ctx, textnorm.Normalize(hints.Category), lang); c != nil {
			out.Category = c
			resolved = true
		}
	}
	if out.Location == nil && hints.Location != "" {
		if l := p.matcher.MatchLocation(ctx, textnorm.Normalize(hints.Location), lang); l != nil {
			out.Location = l
			resolved = true
		}
	}
	if out.Transaction == nil && hints.Transaction != "" {
		if tx := p.matcher.MatchTransactionType(textnorm.Normalize(hints.Transaction)); tx != nil {
			out.Transaction = tx
			resolved = true
		}
	}
	if !resolved {
		return nil
	}
	mergeHintAttributes(&out, hints.Attributes)

	out.Confidence = llmResolvedConfidence
	logging.Parser("tier %d: %q conf=%.2f tokens=%d", tier, normalized, out.Confidence, usage.TotalTokens)
	return &out
}

// finishLLM records an accepted LLM parse in both caches.
func (p *Parser) finishLLM(ctx context.Context, key, normalized string, intent *types.Intent, vec []float32) {
	p.tierHits[intent.Tier].Add(1)
	p.exact.Set(key, intent)
	if p.sem != nil {
		if err := p.sem.Store(ctx, normalized, intent, vec); err != nil {
			logging.Get(logging.CategorySemCache).Warn("store parse: %v", err)
		}
	}
}

// mergeHintAttributes folds hint attributes into the intent without
// overriding anything the extractor already found.
func mergeHintAttributes(intent *types.Intent, hintAttrs map[string]string) {
	if len(hintAttrs) == 0 {
		return
	}
	if intent.Attributes == nil {
		intent.Attributes = make(map[string]types.AttributeValue, len(hintAttrs))
	}
	for slug, raw := range hintAttrs {
		if _, exists := intent.Attributes[slug]; exists {
			continue
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			intent.Attributes[slug] = types.Number(n)
		} else {
			intent.Attributes[slug] = types.Enum(raw)
		}
	}
}

// weightedConfidence is the weighted mean of the component confidences over
// the components that are present: sum(w_i*c_i) / sum(w_i). Missing fields
// contribute neither numerator nor denominator, so a parse is judged only on
// what it actually resolved.
func weightedConfidence(intent *types.Intent) float64 {
	var sum, weights float64
	if intent.Category != nil {
		sum += weightCategory * intent.Category.Confidence
		weights += weightCategory
	}
	if intent.Location != nil {
		sum += weightLocation * intent.Location.Confidence
		weights += weightLocation
	}
	if intent.Transaction != nil && intent.Transaction.Confidence > txConfidenceFloor {
		sum += weightTransaction * intent.Transaction.Confidence
		weights += weightTransaction
	}
	if len(intent.Attributes) > 0 {
		sum += weightAttributes
		weights += weightAttributes
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// TierStats reports how many parses each tier has served.
func (p *Parser) TierStats() [5]int64 {
	var out [5]int64
	for i := range p.tierHits {
		out[i] = p.tierHits[i].Load()
	}
	return out
}

func exactKey(normalized, lang string) string {
	sum := md5.Sum([]byte(normalized + "|" + lang))
	return fmt.Sprintf("parsed:%s", hex.EncodeToString(sum[:]))
}
