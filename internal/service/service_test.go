package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/search"
	"sooqsearch/internal/types"
)

type fakeParser struct {
	intent *types.Intent
	err    error
}

func (f *fakeParser) Parse(context.Context, string, string) (*types.Intent, error) {
	return f.intent, f.err
}

func (f *fakeParser) TierStats() [5]int64 { return [5]int64{1, 2, 0, 0, 0} }

type fakeSearcher struct {
	page *types.ResultPage
	err  error
}

func (f *fakeSearcher) Search(context.Context, *types.Intent, int, int) (*types.ResultPage, error) {
	return f.page, f.err
}

type fakeStore struct {
	pingErr     error
	hasEmbedded bool
	hasVectors  bool
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }
func (f *fakeStore) HasEmbeddedListings(context.Context, *types.Filter) (bool, error) {
	return f.hasEmbedded, nil
}
func (f *fakeStore) HasSearchVectors(context.Context, *types.Filter) (bool, error) {
	return f.hasVectors, nil
}

type fakeHot struct{ loadedAt time.Time }

func (f *fakeHot) Snapshot(context.Context) *hotcache.Snapshot {
	return &hotcache.Snapshot{LoadedAt: f.loadedAt}
}

func okService() *Service {
	return New(Deps{
		Parser:   &fakeParser{intent: &types.Intent{Confidence: 0.9, Keywords: []string{"x"}}},
		Searcher: &fakeSearcher{page: &types.ResultPage{Total: 1}},
		Store:    &fakeStore{hasEmbedded: true, hasVectors: true},
		Hot:      &fakeHot{loadedAt: time.Now().Add(-time.Minute)},

		LLMConfigured:       true,
		EmbeddingConfigured: true,
	})
}

func TestValidate_QueryLength(t *testing.T) {
	s := okService()
	ctx := context.Background()

	cases := []struct {
		name  string
		query string
		valid bool
	}{
		{"empty", "", false},
		{"one rune", "س", false},
		{"two runes", "سي", true},
		{"max length", strings.Repeat("a", 500), true},
		{"over max", strings.Repeat("a", 501), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Parse(ctx, tc.query, types.LangArabic)
			if tc.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.valid && KindOf(err) != KindInvalidInput {
				t.Fatalf("kind = %v, want invalid_input", KindOf(err))
			}
		})
	}
}

func TestValidate_Language(t *testing.T) {
	s := okService()

	if _, err := s.Parse(context.Background(), "سيارة", "fr"); KindOf(err) != KindInvalidInput {
		t.Fatalf("kind = %v", KindOf(err))
	}
	if _, err := s.Parse(context.Background(), "car", types.LangEnglish); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSearch_UnresolvedMapsToKind(t *testing.T) {
	s := New(Deps{
		Parser:   &fakeParser{intent: &types.Intent{}},
		Searcher: &fakeSearcher{err: search.ErrUnresolved},
		Store:    &fakeStore{},
	})

	_, err := s.Search(context.Background(), "مم", types.LangArabic, 1, 20)
	if KindOf(err) != KindParseUnresolved {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestSearch_TimeoutClassified(t *testing.T) {
	s := New(Deps{
		Parser:   &fakeParser{err: context.DeadlineExceeded},
		Searcher: &fakeSearcher{},
		Store:    &fakeStore{},
	})

	_, err := s.Search(context.Background(), "سيارة", types.LangArabic, 1, 20)
	if KindOf(err) != KindTimeout {
		t.Fatalf("kind = %v", KindOf(err))
	}
}

func TestSearch_OK(t *testing.T) {
	s := okService()
	page, err := s.Search(context.Background(), "سيارة للبيع", types.LangArabic, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("page = %+v", page)
	}
}

func TestHealthCheck(t *testing.T) {
	s := okService()
	h, err := s.HealthCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !h.StoreOK || !h.VectorReady || !h.LexicalReady {
		t.Fatalf("health = %+v", h)
	}
	if h.TierStats[1] != 2 || h.TotalParses != 3 {
		t.Fatalf("stats = %+v", h)
	}
	if h.HotCacheAgeSeconds < 59 {
		t.Fatalf("hot cache age = %v", h.HotCacheAgeSeconds)
	}
}

func TestHealthCheck_StoreDown(t *testing.T) {
	s := New(Deps{
		Parser:   &fakeParser{},
		Searcher: &fakeSearcher{},
		Store:    &fakeStore{pingErr: errors.New("refused")},
	})

	h, err := s.HealthCheck(context.Background())
	if KindOf(err) != KindStoreUnavail {
		t.Fatalf("kind = %v", KindOf(err))
	}
	if h.StoreOK {
		t.Fatal("store marked healthy while down")
	}
}

func TestStartEvictor_NoopWithoutCache(t *testing.T) {
	s := New(Deps{Parser: &fakeParser{}, Searcher: &fakeSearcher{}, Store: &fakeStore{}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartEvictor(ctx) // must not panic or spawn anything
}

func TestHealthCheck_VectorNeedsEmbedder(t *testing.T) {
	// Embedded listings exist but no embedder is configured: the vector
	// path cannot run.
	s := New(Deps{
		Parser:   &fakeParser{},
		Searcher: &fakeSearcher{},
		Store:    &fakeStore{hasEmbedded: true, hasVectors: true},
	})

	h, err := s.HealthCheck(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.VectorReady {
		t.Fatal("vector path marked ready without an embedder")
	}
	if !h.LexicalReady {
		t.Fatal("lexical path should be ready")
	}
}
