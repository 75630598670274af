package parser

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"sooqsearch/internal/cache"
	"sooqsearch/internal/llm"
	"sooqsearch/internal/types"
)

type fakeMatcher struct {
	category    *types.CategoryMatch
	location    *types.LocationMatch
	transaction *types.TransactionMatch
	leaf        *types.CategoryMatch

	categoryCalls int
}

func (f *fakeMatcher) MatchCategory(_ context.Context, _, _ string) *types.CategoryMatch {
	f.categoryCalls++
	if f.category == nil {
		return nil
	}
	c := *f.category
	return &c
}

func (f *fakeMatcher) MatchLocation(_ context.Context, _, _ string) *types.LocationMatch {
	if f.location == nil {
		return nil
	}
	l := *f.location
	return &l
}

func (f *fakeMatcher) MatchTransactionType(string) *types.TransactionMatch {
	if f.transaction == nil {
		return nil
	}
	t := *f.transaction
	return &t
}

func (f *fakeMatcher) FindLeafCategory(_ context.Context, _ *types.CategoryMatch, _, _ string) *types.CategoryMatch {
	if f.leaf == nil {
		return nil
	}
	l := *f.leaf
	return &l
}

type fakeSem struct {
	intent *types.Intent
	stored map[string]*types.Intent
	err    error
}

func (f *fakeSem) Lookup(context.Context, string) (*types.Intent, []float32, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.intent, []float32{1, 0}, nil
}

func (f *fakeSem) Store(_ context.Context, normalized string, intent *types.Intent, _ []float32) error {
	if f.stored == nil {
		f.stored = make(map[string]*types.Intent)
	}
	f.stored[normalized] = intent
	return nil
}

type fakeHints struct {
	short *llm.Hints
	full  *llm.Hints
	err   error
	calls int
}

func (f *fakeHints) ShortHints(context.Context, string) (*llm.Hints, llm.Usage, error) {
	f.calls++
	return f.short, llm.Usage{TotalTokens: 10}, f.err
}

func (f *fakeHints) FullHints(context.Context, string) (*llm.Hints, llm.Usage, error) {
	f.calls++
	return f.full, llm.Usage{TotalTokens: 30}, f.err
}

func (f *fakeHints) Model() string { return "fake-model" }

func noAttrs(string) map[string]types.AttributeValue { return nil }

func testConfig() Config {
	return Config{
		Tier1ConfidenceThreshold: 0.80,
		Tier3Timeout:             500 * time.Millisecond,
		Tier4Timeout:             1500 * time.Millisecond,
	}
}

func fullMatcher() *fakeMatcher {
	return &fakeMatcher{
		category:    &types.CategoryMatch{ID: 10, Slug: "cars", Level: 2, Confidence: 0.95},
		location:    &types.LocationMatch{ID: 1, Kind: types.LocationCity, Confidence: 0.95},
		transaction: &types.TransactionMatch{Slug: types.TxForSale, Confidence: 0.9},
	}
}

func TestParse_Tier1Accepted(t *testing.T) {
	p := New(fullMatcher(), nil, nil, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "سيارة للبيع في دمشق", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Tier != types.TierDatabase || intent.Method != "database" {
		t.Fatalf("tier=%d method=%q", intent.Tier, intent.Method)
	}

	// Weighted mean over the present components.
	want := (0.40*0.95 + 0.30*0.95 + 0.15*0.9) / (0.40 + 0.30 + 0.15)
	if math.Abs(intent.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", intent.Confidence, want)
	}
	if len(intent.Keywords) == 0 {
		t.Fatal("keywords not extracted")
	}
}

func TestParse_CategoryAndAttributesResolveAtTier1(t *testing.T) {
	// A confident category plus an extracted price range clears the tier-1
	// threshold on its own; the LLM must never be consulted.
	min, max := 100000.0, 200000.0
	priceRange := func(string) map[string]types.AttributeValue {
		return map[string]types.AttributeValue{types.AttrPrice: types.Range(&min, &max)}
	}
	m := &fakeMatcher{category: &types.CategoryMatch{ID: 20, Slug: "apartments", Level: 2, Confidence: 0.95}}
	hints := &fakeHints{short: &llm.Hints{Category: "شقق"}}
	p := New(m, nil, hints, priceRange, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "شقة بسعر من 100000 الى 200000 ليرة", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Tier != types.TierDatabase || intent.Method != "database" {
		t.Fatalf("tier=%d method=%q", intent.Tier, intent.Method)
	}
	want := (0.40*0.95 + 0.15) / (0.40 + 0.15)
	if math.Abs(intent.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", intent.Confidence, want)
	}
	if hints.calls != 0 {
		t.Fatalf("LLM consulted %d times for a tier-1 parse", hints.calls)
	}
}

func TestParse_Tier0CacheHit(t *testing.T) {
	m := fullMatcher()
	p := New(m, nil, nil, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	first, err := p.Parse(context.Background(), "سيارة للبيع في دمشق", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	calls := m.categoryCalls

	second, err := p.Parse(context.Background(), "سيارة للبيع في دمشق", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if m.categoryCalls != calls {
		t.Fatal("cache hit still ran the matcher")
	}
	if second.Tier != types.TierExactCache || second.Method != "exact_cache" {
		t.Fatalf("cache hit reported tier=%d method=%q", second.Tier, second.Method)
	}
	if second.Confidence != first.Confidence || second.Category.Slug != first.Category.Slug {
		t.Fatalf("cached intent differs: %+v vs %+v", second, first)
	}

	stats := p.TierStats()
	if stats[types.TierExactCache] != 1 || stats[types.TierDatabase] != 1 {
		t.Fatalf("tier stats = %v", stats)
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := New(fullMatcher(), nil, nil, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	a, _ := p.Parse(context.Background(), "شقة للايجار حلب", types.LangArabic)
	b, _ := p.Parse(context.Background(), "شقة  للايجار   حلب", types.LangArabic) // extra spaces
	if a.Normalized != b.Normalized || a.Confidence != b.Confidence {
		t.Fatalf("parse not deterministic: %+v vs %+v", a, b)
	}
}

func TestParse_Tier2SemanticHit(t *testing.T) {
	weak := &fakeMatcher{} // nothing matches
	sem := &fakeSem{intent: &types.Intent{
		Category:   &types.CategoryMatch{Slug: "cars", Confidence: 0.95},
		Confidence: 0.85,
	}}
	p := New(weak, sem, nil, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "بدي سيارة", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Tier != types.TierSemanticCache || intent.Method != "semantic_cache" {
		t.Fatalf("tier=%d method=%q", intent.Tier, intent.Method)
	}
	if intent.Category == nil || intent.Category.Slug != "cars" {
		t.Fatalf("intent = %+v", intent)
	}
}

func TestParse_Tier3ShortHints(t *testing.T) {
	// Tier 1 resolves nothing from the raw text; the hint re-resolution
	// succeeds.
	hints := &fakeHints{short: &llm.Hints{Category: "سيارات", Location: "دمشق", Transaction: "بيع"}}
	sem := &fakeSem{}
	m := &hintAwareMatcher{resolved: &fakeMatcher{
		category:    &types.CategoryMatch{Slug: "cars", Level: 2, Confidence: 0.95},
		location:    &types.LocationMatch{ID: 1, Confidence: 0.95},
		transaction: &types.TransactionMatch{Slug: types.TxForSale, Confidence: 0.9},
	}}
	p := New(m, sem, hints, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "بدي سيارة بدمشق", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Tier != types.TierLLMShort || intent.Method != "llm_short" {
		t.Fatalf("tier=%d method=%q", intent.Tier, intent.Method)
	}
	if math.Abs(intent.Confidence-0.85) > 1e-9 {
		t.Fatalf("resolved hint confidence = %v, want 0.85", intent.Confidence)
	}
	if intent.LLMModel != "fake-model" || intent.LLMTokens == 0 {
		t.Fatalf("llm metadata missing: %+v", intent)
	}
	if len(sem.stored) != 1 {
		t.Fatal("accepted LLM parse not stored in semantic cache")
	}
}

// hintAwareMatcher resolves nothing on the first pass (raw query text) and
// everything afterwards (hint re-resolution).
type hintAwareMatcher struct {
	resolved *fakeMatcher
	calls    atomic.Int32
}

func (h *hintAwareMatcher) MatchCategory(ctx context.Context, normalized, lang string) *types.CategoryMatch {
	if h.calls.Add(1) == 1 {
		return nil
	}
	return h.resolved.MatchCategory(ctx, normalized, lang)
}

func (h *hintAwareMatcher) MatchLocation(ctx context.Context, normalized, lang string) *types.LocationMatch {
	if h.calls.Load() < 2 {
		return nil
	}
	return h.resolved.MatchLocation(ctx, normalized, lang)
}

func (h *hintAwareMatcher) MatchTransactionType(normalized string) *types.TransactionMatch {
	if h.calls.Load() < 2 {
		return nil
	}
	return h.resolved.MatchTransactionType(normalized)
}

func (h *hintAwareMatcher) FindLeafCategory(context.Context, *types.CategoryMatch, string, string) *types.CategoryMatch {
	return nil
}

func TestParse_FallbackWhenLLMUnavailable(t *testing.T) {
	m := &fakeMatcher{category: &types.CategoryMatch{Slug: "cars", Level: 2, Confidence: 0.75}}
	hints := &fakeHints{err: errors.New("llm down")}
	p := New(m, nil, hints, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "سيارة قديمة", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Method != "fallback" {
		t.Fatalf("method = %q", intent.Method)
	}

	// Tier 1 confidence is the category's own 0.75, reduced by 0.8.
	if math.Abs(intent.Confidence-0.75*0.8) > 1e-9 {
		t.Fatalf("confidence = %v", intent.Confidence)
	}
}

func TestParse_UnresolvedHintsFallBack(t *testing.T) {
	// The LLM answers, but nothing it suggests exists in the catalog: both
	// hint tiers are treated as no-ops and the tier-1 parse is served at
	// reduced confidence.
	m := &fakeMatcher{} // resolves nothing, for raw text and hints alike
	hints := &fakeHints{
		short: &llm.Hints{Category: "طائرات شراعيه"},
		full:  &llm.Hints{Category: "طائرات شراعيه", Location: "اطلانتس"},
	}
	sem := &fakeSem{}
	p := New(m, sem, hints, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "بدي شي غريب", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Method != "fallback" || intent.Tier != types.TierDatabase {
		t.Fatalf("tier=%d method=%q", intent.Tier, intent.Method)
	}
	if intent.Confidence != 0 {
		t.Fatalf("confidence = %v for a parse with no resolved hints", intent.Confidence)
	}
	if hints.calls != 2 {
		t.Fatalf("hint calls = %d, want both tiers tried", hints.calls)
	}
	if len(sem.stored) != 0 {
		t.Fatal("unresolved parse stored in semantic cache")
	}
}

func TestParse_LeafRefinement(t *testing.T) {
	m := &fakeMatcher{
		category: &types.CategoryMatch{ID: 10, Slug: "vehicles", Level: 0, Confidence: 0.95},
		location: &types.LocationMatch{ID: 1, Confidence: 0.95},
		leaf:     &types.CategoryMatch{ID: 41, Slug: "toyota", Level: 2},
	}
	p := New(m, nil, nil, noAttrs, cache.New[*types.Intent](10, time.Hour), testConfig())

	intent, err := p.Parse(context.Background(), "سيارة تويوتا دمشق", types.LangArabic)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Category.Slug != "toyota" {
		t.Fatalf("category = %+v", intent.Category)
	}
	if math.Abs(intent.Category.Confidence-0.95*0.95) > 1e-9 {
		t.Fatalf("refined confidence = %v", intent.Category.Confidence)
	}
}

func TestWeightedConfidence_TxFloor(t *testing.T) {
	intent := &types.Intent{
		Category:    &types.CategoryMatch{Confidence: 1},
		Transaction: &types.TransactionMatch{Confidence: 0.6},
	}
	// Transaction below the floor is absent from the mean entirely.
	if got := weightedConfidence(intent); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("confidence = %v", got)
	}

	intent.Transaction.Confidence = 0.9
	want := (0.40*1.0 + 0.15*0.9) / (0.40 + 0.15)
	if got := weightedConfidence(intent); math.Abs(got-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", got, want)
	}
}

func TestWeightedConfidence_Empty(t *testing.T) {
	if got := weightedConfidence(&types.Intent{}); got != 0 {
		t.Fatalf("confidence = %v for an empty intent", got)
	}
}
