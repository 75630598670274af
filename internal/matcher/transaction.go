package matcher

import (
	"strings"

	"sooqsearch/internal/logging"
	"sooqsearch/internal/types"
)

// txRule maps normalized substrings to a transaction type. All terms must
// appear. Rules are ordered most specific first; the first hit wins.
type txRule struct {
	terms      []string
	slug       string
	confidence float64
}

// Terms are in post-normalization form (definite articles stripped,
// hamza-alef folded, ta-marbuta as ha).
var txRules = []txRule{
	// Rentals, period-qualified first.
	{[]string{"ايجار", "يومي"}, types.TxForRentDaily, 0.90},
	{[]string{"اجار", "يومي"}, types.TxForRentDaily, 0.90},
	{[]string{"rent", "daily"}, types.TxForRentDaily, 0.90},
	{[]string{"ايجار", "سنوي"}, types.TxForRentYearly, 0.90},
	{[]string{"اجار", "سنوي"}, types.TxForRentYearly, 0.90},
	{[]string{"rent", "yearly"}, types.TxForRentYearly, 0.90},
	{[]string{"rent", "annual"}, types.TxForRentYearly, 0.90},
	{[]string{"للايجار"}, types.TxForRentMonthly, 0.90},
	{[]string{"ايجار"}, types.TxForRentMonthly, 0.85},
	{[]string{"اجار"}, types.TxForRentMonthly, 0.80},
	{[]string{"for rent"}, types.TxForRentMonthly, 0.90},
	{[]string{"rent"}, types.TxForRentMonthly, 0.80},

	// Sales. A bare buying verb still signals the for-sale inventory.
	{[]string{"للبيع"}, types.TxForSale, 0.90},
	{[]string{"بيع"}, types.TxForSale, 0.85},
	{[]string{"شراء"}, types.TxForSale, 0.80},
	{[]string{"اشتري"}, types.TxForSale, 0.75},
	{[]string{"for sale"}, types.TxForSale, 0.90},
	{[]string{"sale"}, types.TxForSale, 0.80},
	{[]string{"sell"}, types.TxForSale, 0.75},

	// Exchange.
	{[]string{"مقايضه"}, types.TxForExchange, 0.90},
	{[]string{"مبادله"}, types.TxForExchange, 0.85},
	{[]string{"exchange"}, types.TxForExchange, 0.85},
	{[]string{"swap"}, types.TxForExchange, 0.85},

	// Jobs.
	{[]string{"وظيفه", "شاغره"}, types.TxJobPosting, 0.90},
	{[]string{"باحث", "عمل"}, types.TxJobSeeking, 0.85},
	{[]string{"ابحث", "عمل"}, types.TxJobSeeking, 0.80},
	{[]string{"hiring"}, types.TxJobPosting, 0.85},
	{[]string{"job", "wanted"}, types.TxJobSeeking, 0.85},
	{[]string{"وظيفه"}, types.TxJobPosting, 0.70},

	// "مطلوب" alone marks a request for a service or item, never a sale.
	{[]string{"مطلوب"}, types.TxServiceRequested, 0.85},
	{[]string{"wanted"}, types.TxServiceRequested, 0.80},
}

// MatchTransactionType resolves a transaction type from normalized query
// text. There is no default: silence returns nil rather than assuming
// for-sale, so unfiltered retrieval can span all transaction kinds.
func (m *Matcher) MatchTransactionType(normalized string) *types.TransactionMatch {
	for _, rule := range txRules {
		if containsAll(normalized, rule.terms) {
			logging.Matcher("transaction: %v -> %s (%.2f)", rule.terms, rule.slug, rule.confidence)
			return &types.TransactionMatch{Slug: rule.slug, Confidence: rule.confidence}
		}
	}
	return nil
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
