package search

import (
	"sooqsearch/internal/types"
)

// singleValueBand widens a single numeric attribute into a ±10% band, so
// "around 100 thousand" behaves like a range instead of an exact match.
const singleValueBand = 0.10

// numeric attribute slugs filtered through listing_attributes.numeric_value.
var numericAttrs = map[string]bool{
	types.AttrPrice:   true,
	types.AttrArea:    true,
	types.AttrRooms:   true,
	types.AttrYear:    true,
	types.AttrMileage: true,
}

// BuildFilter translates an intent into SQL predicates. The category clause
// is only included when includeCategory is set; the orchestrator drops it
// below the confidence gate and during parent-fallback walks.
func BuildFilter(intent *types.Intent, includeCategory bool) *types.Filter {
	f := &types.Filter{}
	f.Add("l.status = ?", "active")

	if includeCategory && intent.Category != nil {
		f.Add("l.category_id = ?", intent.Category.ID)
	}

	if loc := intent.Location; loc != nil {
		switch loc.Kind {
		case types.LocationNeighborhood:
			f.Add("l.neighborhood_id = ?", loc.ID)
		default:
			f.Add("l.city_id = ?", loc.ID)
		}
	}

	if tx := intent.Transaction; tx != nil {
		f.Add("l.transaction_slug = ?", tx.Slug)
	}

	for slug, val := range intent.Attributes {
		addAttributeClause(f, slug, val)
	}
	return f
}

func addAttributeClause(f *types.Filter, slug string, val types.AttributeValue) {
	switch val.Kind {
	case types.AttrNumber:
		if !numericAttrs[slug] {
			return
		}
		lo := val.Value * (1 - singleValueBand)
		hi := val.Value * (1 + singleValueBand)
		if slug == types.AttrRooms || slug == types.AttrYear {
			// Counts and years are exact; a band makes no sense.
			lo, hi = val.Value, val.Value
		}
		f.Add(attrBetween, slug, lo, hi)

	case types.AttrRange:
		if !numericAttrs[slug] {
			return
		}
		switch {
		case val.Min != nil && val.Max != nil:
			f.Add(attrBetween, slug, *val.Min, *val.Max)
		case val.Min != nil:
			f.Add(attrAtLeast, slug, *val.Min)
		case val.Max != nil:
			f.Add(attrAtMost, slug, *val.Max)
		}

	case types.AttrEnum:
		f.Add(attrEquals, slug, val.Text)

	case types.AttrHint:
		// Qualitative hints (cheap, expensive) never filter; they would
		// need market context to mean anything.
	}
}

const (
	attrBetween = `EXISTS (SELECT 1 FROM listing_attributes a
		WHERE a.listing_id = l.id AND a.slug = ? AND a.numeric_value BETWEEN ? AND ?)`
	attrAtLeast = `EXISTS (SELECT 1 FROM listing_attributes a
		WHERE a.listing_id = l.id AND a.slug = ? AND a.numeric_value >= ?)`
	attrAtMost = `EXISTS (SELECT 1 FROM listing_attributes a
		WHERE a.listing_id = l.id AND a.slug = ? AND a.numeric_value <= ?)`
	attrEquals = `EXISTS (SELECT 1 FROM listing_attributes a
		WHERE a.listing_id = l.id AND a.slug = ? AND a.value = ?)`
)
