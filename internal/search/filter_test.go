package search

import (
	"strings"
	"testing"

	"sooqsearch/internal/types"
)

func f64(v float64) *float64 { return &v }

func TestBuildFilter_AlwaysActiveOnly(t *testing.T) {
	f := BuildFilter(&types.Intent{}, false)
	where, args := f.Render(1)
	if where != "l.status = $1" {
		t.Fatalf("where = %q", where)
	}
	if len(args) != 1 || args[0] != "active" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildFilter_CategoryToggle(t *testing.T) {
	intent := &types.Intent{Category: &types.CategoryMatch{ID: 10, Confidence: 0.9}}

	where, _ := BuildFilter(intent, true).Render(1)
	if !strings.Contains(where, "l.category_id") {
		t.Fatalf("category clause missing: %q", where)
	}

	where, _ = BuildFilter(intent, false).Render(1)
	if strings.Contains(where, "l.category_id") {
		t.Fatalf("category clause included when excluded: %q", where)
	}
}

func TestBuildFilter_LocationKinds(t *testing.T) {
	city := &types.Intent{Location: &types.LocationMatch{ID: 1, Kind: types.LocationCity}}
	where, _ := BuildFilter(city, false).Render(1)
	if !strings.Contains(where, "l.city_id") {
		t.Fatalf("city clause missing: %q", where)
	}

	hood := &types.Intent{Location: &types.LocationMatch{ID: 7, Kind: types.LocationNeighborhood, CityID: 1}}
	where, _ = BuildFilter(hood, false).Render(1)
	if !strings.Contains(where, "l.neighborhood_id") {
		t.Fatalf("neighborhood clause missing: %q", where)
	}
	if strings.Contains(where, "l.city_id") {
		t.Fatalf("neighborhood must not also filter by city: %q", where)
	}
}

func TestBuildFilter_PriceBand(t *testing.T) {
	intent := &types.Intent{Attributes: map[string]types.AttributeValue{
		types.AttrPrice: types.Number(100000),
	}}
	f := BuildFilter(intent, false)
	_, args := f.Render(1)

	// active + slug + lo + hi
	if len(args) != 4 {
		t.Fatalf("args = %v", args)
	}
	if args[2] != 90000.0 || args[3] != 110000.0 {
		t.Fatalf("band = [%v, %v]", args[2], args[3])
	}
}

func TestBuildFilter_RoomsExact(t *testing.T) {
	intent := &types.Intent{Attributes: map[string]types.AttributeValue{
		types.AttrRooms: types.Number(3),
	}}
	_, args := BuildFilter(intent, false).Render(1)
	if args[2] != 3.0 || args[3] != 3.0 {
		t.Fatalf("rooms must match exactly, got [%v, %v]", args[2], args[3])
	}
}

func TestBuildFilter_OpenRanges(t *testing.T) {
	atLeast := &types.Intent{Attributes: map[string]types.AttributeValue{
		types.AttrArea: types.Range(f64(100), nil),
	}}
	where, args := BuildFilter(atLeast, false).Render(1)
	if !strings.Contains(where, ">=") || len(args) != 3 {
		t.Fatalf("open min range: %q %v", where, args)
	}

	atMost := &types.Intent{Attributes: map[string]types.AttributeValue{
		types.AttrPrice: types.Range(nil, f64(5000000)),
	}}
	where, args = BuildFilter(atMost, false).Render(1)
	if !strings.Contains(where, "<=") || len(args) != 3 {
		t.Fatalf("open max range: %q %v", where, args)
	}
}

func TestBuildFilter_EnumAndHint(t *testing.T) {
	intent := &types.Intent{Attributes: map[string]types.AttributeValue{
		types.AttrCondition:      types.Enum("new"),
		types.AttrPriceIndicator: types.Hint("cheap"),
	}}
	where, args := BuildFilter(intent, false).Render(1)

	if !strings.Contains(where, "a.value = ") {
		t.Fatalf("enum clause missing: %q", where)
	}
	for _, a := range args {
		if a == "cheap" {
			t.Fatal("qualitative hint must not filter")
		}
	}
}
