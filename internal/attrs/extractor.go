// Package attrs extracts numeric attributes (price, area, rooms, year,
// mileage, condition, price hints) from normalized utterances using pure
// regex tables. Within each attribute, range patterns are tried before
// single values; a range always wins over a single.
package attrs

import (
	"regexp"
	"strconv"
	"strings"

	"sooqsearch/internal/types"
)

const million = 1_000_000

// Pattern tables operate on Normalize() output: ta-marbuta is already
// folded (ليرة -> ليره) and hamza variants are plain alef (إلى -> الى).
var (
	commaInNumber = regexp.MustCompile(`(\d),(\d)`)

	numRe = `(\d+(?:\.\d+)?)`

	priceRangeMillion = regexp.MustCompile(
		`(?:من|from)\s*` + numRe + `\s*(?:الى|to|-)\s*` + numRe + `\s*(?:مليون|ملايين|million)`)
	priceRangeBetweenMillion = regexp.MustCompile(
		`(?:بين|between)\s*` + numRe + `\s*(?:و|and)\s*` + numRe + `\s*(?:مليون|ملايين|million)`)
	priceRangeCurrency = regexp.MustCompile(
		`(?:من|from)\s*` + numRe + `\s*(?:الى|to|-)\s*` + numRe + `\s*(?:ليره|ل\.س|دولار|syp|lira|pounds?|\$)`)
	priceRangeBetweenCurrency = regexp.MustCompile(
		`(?:بين|between)\s*` + numRe + `\s*(?:و|and)\s*` + numRe + `\s*(?:ليره|ل\.س|دولار|syp|lira|pounds?|\$)`)
	priceRangeNaked = regexp.MustCompile(
		`(?:من|from)\s*` + numRe + `\s*(?:الى|to)\s*` + numRe)
	priceRangeDash = regexp.MustCompile(
		numRe + `\s*-\s*` + numRe + `\s*(?:ليره|ل\.س|دولار|syp|lira|مليون|million)`)

	priceSingleCurrency = regexp.MustCompile(
		numRe + `\s*(مليون|million)?\s*(?:ليره|ل\.س|دولار|syp|lira|pounds?|\$)`)
	priceSinglePhrase = regexp.MustCompile(
		`(?:بسعر|سعر|price)\s*` + numRe + `\s*(مليون|million)?`)
	priceSingleMillion = regexp.MustCompile(
		numRe + `\s*(?:مليون|ملايين|million)`)

	areaRange = regexp.MustCompile(
		`(?:من|from)\s*` + numRe + `\s*(?:الى|to|-)\s*` + numRe + `\s*(?:متر مربع|متر|م2|sqm|m2|square\s*meters?)`)
	areaSingle = regexp.MustCompile(
		numRe + `\s*(?:متر مربع|متر|م2|sqm|m2|square\s*meters?)`)
	areaDunum   = regexp.MustCompile(numRe + `\s*(?:دونم|dunums?)`)
	areaHectare = regexp.MustCompile(numRe + `\s*(?:هكتار|hectares?)`)

	roomsNumeric = regexp.MustCompile(`(\d+)\s*(?:غرف|غرفه|rooms?|bedrooms?)`)

	yearMarked     = regexp.MustCompile(`(?:موديل|model|سنه|year)\s*((?:19|20)\d{2})`)
	yearStandalone = regexp.MustCompile(`(?:^|\s)((?:19|20)\d{2})(?:\s|$)`)

	mileageRe = regexp.MustCompile(`(\d+)\s*(?:كيلومتر|كم|km|kilomet(?:er|re)s?)`)

	conditionNew  = regexp.MustCompile(`(?:^|\s)(?:جديد|جديده|new)(?:\s|$)`)
	conditionUsed = regexp.MustCompile(`(?:^|\s)(?:مستعمل|مستعمله|used)(?:\s|$)`)

	hintCheap     = regexp.MustCompile(`(?:^|\s)(?:رخيص|رخيصه|ارخص|cheap|cheapest)(?:\s|$)`)
	hintExpensive = regexp.MustCompile(`(?:^|\s)(?:غالي|غاليه|مكلف|expensive|فخم)(?:\s|$)`)
)

// roomsLexicon maps spelled-out room counts (normalized form) to values.
var roomsLexicon = []struct {
	phrase string
	count  float64
}{
	{"غرفه واحده", 1},
	{"غرفتين", 2},
	{"غرفتان", 2},
	{"ثلاث غرف", 3},
	{"اربع غرف", 4},
	{"خمس غرف", 5},
	{"one room", 1},
	{"two rooms", 2},
	{"three rooms", 3},
	{"four rooms", 4},
	{"five rooms", 5},
}

// Extract pulls every recognizable attribute out of a normalized utterance.
// The returned map is keyed by attribute slug (types.AttrPrice etc.).
func Extract(normalized string) map[string]types.AttributeValue {
	text := stripNumberCommas(normalized)
	text = foldArabicDigits(text)

	out := make(map[string]types.AttributeValue)

	areaRangeMatched := extractArea(text, out)
	extractPrice(text, out, areaRangeMatched)
	extractRooms(text, out)
	extractYear(text, out)
	extractMileage(text, out)
	extractCondition(text, out)
	extractPriceHint(text, out)

	return out
}

func extractPrice(text string, out map[string]types.AttributeValue, areaRangeMatched bool) {
	// Ranges first. The naked form is skipped when the same span already
	// produced an area range (e.g. "من 100 الى 150 متر").
	type rangePattern struct {
		re         *regexp.Regexp
		multiplier float64
		naked      bool
	}
	patterns := []rangePattern{
		{priceRangeMillion, million, false},
		{priceRangeBetweenMillion, million, false},
		{priceRangeCurrency, 1, false},
		{priceRangeBetweenCurrency, 1, false},
		{priceRangeDash, 1, false},
		{priceRangeNaked, 1, true},
	}
	for _, p := range patterns {
		if p.naked && areaRangeMatched {
			continue
		}
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		mult := p.multiplier
		if p.re == priceRangeDash && (strings.Contains(m[0], "مليون") || strings.Contains(m[0], "million")) {
			mult = million
		}
		lo := parseNum(m[1]) * mult
		hi := parseNum(m[2]) * mult
		out[types.AttrPrice] = types.Range(&lo, &hi)
		return
	}

	// Single values.
	if m := priceSingleCurrency.FindStringSubmatch(text); m != nil {
		v := parseNum(m[1])
		if m[2] != "" {
			v *= million
		}
		out[types.AttrPrice] = types.Number(v)
		return
	}
	if m := priceSinglePhrase.FindStringSubmatch(text); m != nil {
		v := parseNum(m[1])
		if m[2] != "" {
			v *= million
		}
		out[types.AttrPrice] = types.Number(v)
		return
	}
	if m := priceSingleMillion.FindStringSubmatch(text); m != nil {
		out[types.AttrPrice] = types.Number(parseNum(m[1]) * million)
	}
}

func extractArea(text string, out map[string]types.AttributeValue) bool {
	if m := areaRange.FindStringSubmatch(text); m != nil {
		lo := parseNum(m[1])
		hi := parseNum(m[2])
		out[types.AttrArea] = types.Range(&lo, &hi)
		return true
	}
	if m := areaSingle.FindStringSubmatch(text); m != nil {
		out[types.AttrArea] = types.Number(parseNum(m[1]))
		return false
	}
	if m := areaDunum.FindStringSubmatch(text); m != nil {
		out[types.AttrArea] = types.Number(parseNum(m[1]) * 1000)
		return false
	}
	if m := areaHectare.FindStringSubmatch(text); m != nil {
		out[types.AttrArea] = types.Number(parseNum(m[1]) * 10000)
		return false
	}
	return false
}

func extractRooms(text string, out map[string]types.AttributeValue) {
	if m := roomsNumeric.FindStringSubmatch(text); m != nil {
		out[types.AttrRooms] = types.Number(parseNum(m[1]))
		return
	}
	for _, entry := range roomsLexicon {
		if strings.Contains(text, entry.phrase) {
			out[types.AttrRooms] = types.Number(entry.count)
			return
		}
	}
}

func extractYear(text string, out map[string]types.AttributeValue) {
	if m := yearMarked.FindStringSubmatch(text); m != nil {
		out[types.AttrYear] = types.Number(parseNum(m[1]))
		return
	}
	// A standalone 19xx/20xx only counts as a year when it is not part of
	// a price or mileage expression.
	for _, m := range yearStandalone.FindAllStringSubmatchIndex(text, -1) {
		following := text[m[3]:]
		if startsWithUnitMarker(following) {
			continue
		}
		out[types.AttrYear] = types.Number(parseNum(text[m[2]:m[3]]))
		return
	}
}

// startsWithUnitMarker reports whether s begins with a currency, area, or
// distance marker, meaning the preceding number was not a year.
func startsWithUnitMarker(s string) bool {
	s = strings.TrimLeft(s, " ")
	for _, marker := range []string{
		"ليره", "ل.س", "دولار", "syp", "lira", "مليون", "million",
		"متر", "م2", "sqm", "m2", "كم", "كيلومتر", "km", "غرف",
	} {
		if strings.HasPrefix(s, marker) {
			return true
		}
	}
	return false
}

func extractMileage(text string, out map[string]types.AttributeValue) {
	if m := mileageRe.FindStringSubmatch(text); m != nil {
		out[types.AttrMileage] = types.Number(parseNum(m[1]))
	}
}

func extractCondition(text string, out map[string]types.AttributeValue) {
	switch {
	case conditionNew.MatchString(text):
		out[types.AttrCondition] = types.Enum("new")
	case conditionUsed.MatchString(text):
		out[types.AttrCondition] = types.Enum("used")
	}
}

func extractPriceHint(text string, out map[string]types.AttributeValue) {
	switch {
	case hintCheap.MatchString(text):
		out[types.AttrPriceIndicator] = types.Hint("cheap")
	case hintExpensive.MatchString(text):
		out[types.AttrPriceIndicator] = types.Hint("expensive")
	}
}

// stripNumberCommas removes thousands separators inside numerics.
func stripNumberCommas(s string) string {
	for commaInNumber.MatchString(s) {
		s = commaInNumber.ReplaceAllString(s, "$1$2")
	}
	return s
}

// foldArabicDigits maps Arabic-Indic digits to ASCII so one numeric
// grammar covers both scripts.
func foldArabicDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '٠' && r <= '٩' {
			return '0' + (r - '٠')
		}
		return r
	}, s)
}

func parseNum(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
