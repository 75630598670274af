package matcher

import (
	"context"
	"errors"
	"testing"

	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/textnorm"
	"sooqsearch/internal/types"
)

type fakeStore struct {
	keywordCat  *types.Category
	metaCat     *types.Category
	fullTextCat *types.Category
	trigramCat  *types.Category
	trigramSim  float64
	city        *types.City
	citySim     float64
	hood        *types.Neighborhood
	hoodSim     float64
	leaves      []types.Category
	err         error
}

func (f *fakeStore) CategoryByKeywordTokens(context.Context, []string, string) (*types.Category, error) {
	return f.keywordCat, f.err
}
func (f *fakeStore) CategoryByMetaKeywords(context.Context, string, string) (*types.Category, error) {
	return f.metaCat, f.err
}
func (f *fakeStore) CategoryByFullText(context.Context, string, string) (*types.Category, error) {
	return f.fullTextCat, f.err
}
func (f *fakeStore) CategoryByTrigram(context.Context, string, string) (*types.Category, float64, error) {
	return f.trigramCat, f.trigramSim, f.err
}
func (f *fakeStore) CityBySimilarity(context.Context, string, string) (*types.City, float64, error) {
	return f.city, f.citySim, f.err
}
func (f *fakeStore) NeighborhoodBySimilarity(context.Context, string, string) (*types.Neighborhood, float64, error) {
	return f.hood, f.hoodSim, f.err
}
func (f *fakeStore) DescendantLeaves(context.Context, int64) ([]types.Category, error) {
	return f.leaves, f.err
}

type fakeHot struct {
	snap hotcache.Snapshot
}

func (f *fakeHot) Snapshot(context.Context) *hotcache.Snapshot { return &f.snap }

func carsSnapshot() *fakeHot {
	return &fakeHot{snap: hotcache.Snapshot{
		Categories: []types.Category{
			{ID: 10, Slug: "cars", NameAR: "سيارات", NameEN: "Cars", Level: 1,
				KeywordsAR: []string{"سيارة", "سيارات"}, KeywordsEN: []string{"car", "cars"}},
		},
		Cities: []types.City{
			{ID: 1, NameAR: "دمشق", NameEN: "Damascus", ProvinceAR: "دمشق", ProvinceEN: "Damascus"},
			{ID: 2, NameAR: "حلب", NameEN: "Aleppo", ProvinceAR: "حلب", ProvinceEN: "Aleppo"},
		},
	}}
}

func TestMatchCategory_ExactKeyword(t *testing.T) {
	m := New(&fakeStore{}, carsSnapshot())

	got := m.MatchCategory(context.Background(), textnorm.Normalize("سيارة تويوتا"), types.LangArabic)
	if got == nil {
		t.Fatal("expected exact keyword match")
	}
	if got.Slug != "cars" || got.Confidence != 0.95 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchCategory_SnapshotKeywordContainment(t *testing.T) {
	// A token containing (or contained in) a curated keyword counts as a
	// snapshot hit when both sides span at least four runes.
	hot := &fakeHot{snap: hotcache.Snapshot{Categories: []types.Category{
		{ID: 15, Slug: "phones", NameAR: "موبايلات", Level: 2, KeywordsAR: []string{"موبايلات"}},
	}}}
	m := New(&fakeStore{}, hot)

	got := m.MatchCategory(context.Background(), textnorm.Normalize("موبايل سامسونج"), types.LangArabic)
	if got == nil {
		t.Fatal("expected snapshot containment match")
	}
	if got.Slug != "phones" || got.Confidence != 0.95 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchCategory_KeywordArraySingleToken(t *testing.T) {
	// One matching token earns the tentative 0.70; short tokens never
	// trigger containment.
	st := &fakeStore{keywordCat: &types.Category{
		ID: 20, Slug: "apartments", NameAR: "شقق", Level: 2,
		KeywordsAR: []string{"شقق سكنيه"},
	}}
	m := New(st, &fakeHot{})

	got := m.MatchCategory(context.Background(), textnorm.Normalize("شقق للبيع"), types.LangArabic)
	if got == nil {
		t.Fatal("expected keyword-array match")
	}
	if got.Slug != "apartments" || got.Confidence != 0.70 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchCategory_KeywordArrayTwoTokens(t *testing.T) {
	st := &fakeStore{keywordCat: &types.Category{
		ID: 21, Slug: "toyota", NameAR: "تويوتا", Level: 2,
		KeywordsAR: []string{"سيارات", "تويوتا"},
	}}
	m := New(st, &fakeHot{})

	got := m.MatchCategory(context.Background(), textnorm.Normalize("سيارات تويوتا مستعملة"), types.LangArabic)
	if got == nil {
		t.Fatal("expected keyword-array match")
	}
	if got.Confidence != 0.95 {
		t.Fatalf("two-token confidence = %v, want 0.95", got.Confidence)
	}
}

func TestMatchCategory_TrigramLast(t *testing.T) {
	st := &fakeStore{trigramCat: &types.Category{ID: 30, Slug: "laptops", NameEN: "Laptops"}, trigramSim: 0.6}
	m := New(st, &fakeHot{})

	got := m.MatchCategory(context.Background(), "laptp", types.LangEnglish)
	if got == nil || got.Slug != "laptops" {
		t.Fatalf("match = %+v", got)
	}
	if got.Confidence != 0.75 {
		t.Fatalf("trigram confidence = %v", got.Confidence)
	}
}

func TestMatchCategory_StoreErrorDegradesToNil(t *testing.T) {
	m := New(&fakeStore{err: errors.New("db down")}, &fakeHot{})
	if got := m.MatchCategory(context.Background(), "dishwasher", types.LangEnglish); got != nil {
		t.Fatalf("expected nil on store failure, got %+v", got)
	}
}

func TestMatchCategory_NoTokens(t *testing.T) {
	m := New(&fakeStore{}, &fakeHot{})
	if got := m.MatchCategory(context.Background(), "", types.LangArabic); got != nil {
		t.Fatalf("expected nil for empty text, got %+v", got)
	}
}

func TestFindLeafCategory(t *testing.T) {
	st := &fakeStore{leaves: []types.Category{
		{ID: 41, Slug: "toyota", NameAR: "تويوتا", Level: 2, KeywordsAR: []string{"تويوتا"}},
		{ID: 42, Slug: "kia", NameAR: "كيا", Level: 2, KeywordsAR: []string{"كيا"}},
	}}
	m := New(st, &fakeHot{})

	root := &types.CategoryMatch{ID: 10, Slug: "cars", Level: 0, Confidence: 0.95}
	got := m.FindLeafCategory(context.Background(), root, textnorm.Normalize("سيارة تويوتا"), types.LangArabic)
	if got == nil || got.Slug != "toyota" {
		t.Fatalf("leaf = %+v", got)
	}

	if got := m.FindLeafCategory(context.Background(), root, "bicycle", types.LangEnglish); got != nil {
		t.Fatalf("expected nil when no leaf keyword present, got %+v", got)
	}
}

func TestMatchLocation_ExactCity(t *testing.T) {
	m := New(&fakeStore{}, carsSnapshot())

	got := m.MatchLocation(context.Background(), textnorm.Normalize("شقة في دمشق"), types.LangArabic)
	if got == nil {
		t.Fatal("expected city match")
	}
	if got.Kind != types.LocationCity || got.ID != 1 || got.Confidence != 0.95 {
		t.Fatalf("match = %+v", got)
	}
	if got.Province == "" {
		t.Fatal("province not carried")
	}
}

func TestMatchLocation_CityNameSubstring(t *testing.T) {
	// A prepositioned token still hits: "بدمشق" contains the city name.
	m := New(&fakeStore{}, carsSnapshot())

	got := m.MatchLocation(context.Background(), textnorm.Normalize("شقة بدمشق"), types.LangArabic)
	if got == nil {
		t.Fatal("expected city match")
	}
	if got.ID != 1 || got.Confidence != 0.95 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchLocation_ProvinceName(t *testing.T) {
	hot := &fakeHot{snap: hotcache.Snapshot{Cities: []types.City{
		{ID: 4, NameAR: "دوما", ProvinceAR: "ريف دمشق"},
	}}}
	m := New(&fakeStore{}, hot)

	got := m.MatchLocation(context.Background(), textnorm.Normalize("عقارات ريف دمشق"), types.LangArabic)
	if got == nil {
		t.Fatal("expected province match")
	}
	if got.ID != 4 || got.Confidence != 0.95 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchLocation_CitySimilarity(t *testing.T) {
	st := &fakeStore{city: &types.City{ID: 3, NameAR: "حمص", NameEN: "Homs"}, citySim: 0.6}
	m := New(st, &fakeHot{})

	got := m.MatchLocation(context.Background(), "homss", types.LangEnglish)
	if got == nil || got.ID != 3 || got.Confidence != 0.90 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchLocation_Neighborhood(t *testing.T) {
	st := &fakeStore{hood: &types.Neighborhood{ID: 7, NameAR: "المزه", CityID: 1}, hoodSim: 0.8}
	m := New(st, &fakeHot{})

	got := m.MatchLocation(context.Background(), textnorm.Normalize("المزة"), types.LangArabic)
	if got == nil {
		t.Fatal("expected neighborhood match")
	}
	if got.Kind != types.LocationNeighborhood || got.CityID != 1 || got.Confidence != 0.85 {
		t.Fatalf("match = %+v", got)
	}
}

func TestMatchTransactionType(t *testing.T) {
	m := New(&fakeStore{}, &fakeHot{})

	cases := []struct {
		query string
		slug  string
	}{
		{"سيارة للبيع", types.TxForSale},
		{"شقة للايجار", types.TxForRentMonthly},
		{"شقة ايجار يومي", types.TxForRentDaily},
		{"مكتب ايجار سنوي", types.TxForRentYearly},
		{"مقايضة موبايل", types.TxForExchange},
		{"مطلوب كهربائي", types.TxServiceRequested},
		{"apartment for rent", types.TxForRentMonthly},
		{"car for sale", types.TxForSale},
	}
	for _, tc := range cases {
		got := m.MatchTransactionType(textnorm.Normalize(tc.query))
		if got == nil {
			t.Errorf("%q: expected match", tc.query)
			continue
		}
		if got.Slug != tc.slug {
			t.Errorf("%q: slug = %q, want %q", tc.query, got.Slug, tc.slug)
		}
	}
}

func TestMatchTransactionType_NoDefault(t *testing.T) {
	m := New(&fakeStore{}, &fakeHot{})
	if got := m.MatchTransactionType(textnorm.Normalize("سيارة تويوتا حمراء")); got != nil {
		t.Fatalf("expected nil without a transaction mention, got %+v", got)
	}
}
