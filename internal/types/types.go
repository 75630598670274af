// Package types defines the domain model shared across the search core:
// catalog entities, parsed intents, attribute values, and result shapes.
package types

import "time"

// Language tags accepted by the core.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// Category is a node in the catalog category tree.
// Level 0 is a root; a leaf has no active children.
type Category struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	NameAR    string `json:"name_ar"`
	NameEN    string `json:"name_en"`
	Level     int    `json:"level"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Path      string `json:"path"` // materialized path, e.g. "1.14.92"
	Active    bool   `json:"active"`
	SortOrder int    `json:"sort_order"`

	// Curated keyword lists from the category_keywords table.
	KeywordsAR []string `json:"keywords_ar,omitempty"`
	KeywordsEN []string `json:"keywords_en,omitempty"`
	MetaAR     string   `json:"meta_keywords_ar,omitempty"`
	MetaEN     string   `json:"meta_keywords_en,omitempty"`
}

// Name returns the localized name for the given language tag.
func (c *Category) Name(lang string) string {
	if lang == LangArabic {
		return c.NameAR
	}
	return c.NameEN
}

// Keywords returns the curated keyword list for the given language tag.
func (c *Category) Keywords(lang string) []string {
	if lang == LangArabic {
		return c.KeywordsAR
	}
	return c.KeywordsEN
}

// Meta returns the free-text meta keywords for the given language tag.
func (c *Category) Meta(lang string) string {
	if lang == LangArabic {
		return c.MetaAR
	}
	return c.MetaEN
}

// City is a top-level location with its province.
type City struct {
	ID         int64    `json:"id"`
	NameAR     string   `json:"name_ar"`
	NameEN     string   `json:"name_en"`
	ProvinceAR string   `json:"province_ar"`
	ProvinceEN string   `json:"province_en"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}

// Name returns the localized city name.
func (c *City) Name(lang string) string {
	if lang == LangArabic {
		return c.NameAR
	}
	return c.NameEN
}

// Province returns the localized province name.
func (c *City) Province(lang string) string {
	if lang == LangArabic {
		return c.ProvinceAR
	}
	return c.ProvinceEN
}

// Neighborhood is a sub-city location; its parent city is always resolvable.
type Neighborhood struct {
	ID     int64  `json:"id"`
	NameAR string `json:"name_ar"`
	NameEN string `json:"name_en"`
	CityID int64  `json:"city_id"`
}

// Name returns the localized neighborhood name.
func (n *Neighborhood) Name(lang string) string {
	if lang == LangArabic {
		return n.NameAR
	}
	return n.NameEN
}

// TransactionType is one of the closed set of listing transaction kinds.
type TransactionType struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	NameAR string `json:"name_ar"`
	NameEN string `json:"name_en"`
}

// Transaction type slugs. The set is closed.
const (
	TxForSale          = "for-sale"
	TxForRentMonthly   = "for-rent-monthly"
	TxForRentDaily     = "for-rent-daily"
	TxForRentYearly    = "for-rent-yearly"
	TxForExchange      = "for-exchange"
	TxServiceRequested = "service-requested"
	TxServiceOffered   = "service-offered"
	TxJobPosting       = "job-posting"
	TxJobSeeking       = "job-seeking"
)

// AttributeKind tags an AttributeValue variant.
type AttributeKind string

const (
	AttrNumber AttributeKind = "number"
	AttrRange  AttributeKind = "range"
	AttrEnum   AttributeKind = "enum"
	AttrHint   AttributeKind = "hint"
)

// AttributeValue is a tagged union over the attribute kinds.
// Range carries at least one endpoint; Enum and Hint carry Text.
type AttributeValue struct {
	Kind  AttributeKind `json:"kind"`
	Value float64       `json:"value,omitempty"`
	Min   *float64      `json:"min,omitempty"`
	Max   *float64      `json:"max,omitempty"`
	Text  string        `json:"text,omitempty"`
}

// Number builds a single-value attribute.
func Number(v float64) AttributeValue { return AttributeValue{Kind: AttrNumber, Value: v} }

// Range builds a range attribute. Nil endpoints are open.
func Range(min, max *float64) AttributeValue {
	return AttributeValue{Kind: AttrRange, Min: min, Max: max}
}

// Enum builds a closed-set string attribute.
func Enum(v string) AttributeValue { return AttributeValue{Kind: AttrEnum, Text: v} }

// Hint builds a qualitative attribute (e.g. price_indicator=cheap).
func Hint(v string) AttributeValue { return AttributeValue{Kind: AttrHint, Text: v} }

// Common attribute slugs emitted by the extractor.
const (
	AttrPrice          = "price"
	AttrArea           = "area"
	AttrRooms          = "rooms"
	AttrYear           = "year"
	AttrMileage        = "mileage"
	AttrCondition      = "condition"
	AttrPriceIndicator = "price_indicator"
)

// CategoryMatch is a resolved category with the matcher's confidence.
type CategoryMatch struct {
	ID         int64   `json:"id"`
	Slug       string  `json:"slug"`
	Name       string  `json:"name"`
	Level      int     `json:"level"`
	Confidence float64 `json:"confidence"`
}

// LocationKind discriminates the Location union.
type LocationKind string

const (
	LocationCity         LocationKind = "city"
	LocationNeighborhood LocationKind = "neighborhood"
)

// LocationMatch is a resolved location. For neighborhoods, CityID refers to
// the parent city; for cities, Province carries the localized province name.
type LocationMatch struct {
	ID         int64        `json:"id"`
	Kind       LocationKind `json:"kind"`
	Name       string       `json:"name"`
	Province   string       `json:"province,omitempty"`
	CityID     int64        `json:"city_id,omitempty"`
	Confidence float64      `json:"confidence"`
}

// TransactionMatch is a resolved transaction type.
type TransactionMatch struct {
	Slug       string  `json:"slug"`
	Confidence float64 `json:"confidence"`
}

// Parser tiers.
const (
	TierExactCache    = 0
	TierDatabase      = 1
	TierSemanticCache = 2
	TierLLMShort      = 3
	TierLLMFull       = 4
)

// Intent is the structured, catalog-grounded representation of an utterance.
type Intent struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Language   string `json:"language"`

	Category    *CategoryMatch    `json:"category,omitempty"`
	Location    *LocationMatch    `json:"location,omitempty"`
	Transaction *TransactionMatch `json:"transaction,omitempty"`

	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
	Keywords   []string                  `json:"keywords,omitempty"`

	Confidence float64 `json:"confidence"`
	Tier       int     `json:"tier"`
	Method     string  `json:"method"`

	LLMModel  string `json:"llm_model,omitempty"`
	LLMTokens int    `json:"llm_tokens,omitempty"`
}

// Unresolved reports whether the intent carries neither a category nor any
// keywords, i.e. nothing the retrieval layer could act on.
func (i *Intent) Unresolved() bool {
	return i.Category == nil && len(i.Keywords) == 0
}

// Listing is a catalog listing as consumed by the retrieval layer.
type Listing struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CategoryID      int64     `json:"category_id"`
	CityID          int64     `json:"city_id"`
	NeighborhoodID  *int64    `json:"neighborhood_id,omitempty"`
	TransactionSlug string    `json:"transaction_slug"`
	Boosted         bool      `json:"boosted"`
	Priority        int       `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`

	// Enriched attribute values commonly needed by callers
	// (price, currency, area, rooms, bathrooms, year, mileage, brand, model).
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SearchResult is a listing with retrieval scores attached.
type SearchResult struct {
	Listing Listing `json:"listing"`

	// RankScore is the lexical rank; SimilarityScore is the vector cosine
	// similarity. Either may be zero depending on the retrieval source.
	RankScore       float64 `json:"rank_score"`
	SimilarityScore float64 `json:"similarity_score"`
	Source          string  `json:"source"` // "vector" or "lexical"
}

// PrimaryScore is the merged ranking score used for final ordering:
// rank + similarity + boost nudge + priority nudge.
func (r *SearchResult) PrimaryScore() float64 {
	score := r.RankScore + r.SimilarityScore
	if r.Listing.Boosted {
		score += 0.2
	}
	return score + 0.01*float64(r.Listing.Priority)
}

// ResultPage is a paginated, ranked slice of results.
type ResultPage struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	Method  string         `json:"method"` // vector, lexical, hybrid, title_only, fallback
	Cached  bool           `json:"cached"`
	Intent  *Intent        `json:"intent,omitempty"`
}

// ParsedRecord is a row of the semantic-cache table.
type ParsedRecord struct {
	ID        int64     `json:"id"`
	QueryText string    `json:"query_text"`
	Payload   []byte    `json:"payload"` // serialized Intent
	HitCount  int       `json:"hit_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
