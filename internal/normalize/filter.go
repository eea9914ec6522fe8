package normalize

import "strings"

// DealFilter decides whether a tender deal belongs to the construction
// market. Matching is keyword-based over the deal's category text with
// party names as a secondary signal.
type DealFilter struct {
	keywords []string
	negative []string
}

// NewDealFilter builds a filter from the configured keyword lists.
func NewDealFilter(keywords, negative []string) *DealFilter {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	return &DealFilter{keywords: lower(keywords), negative: lower(negative)}
}

// IsConstruction applies the two-tier filter.
//
// Tier 1: the category text matches a construction keyword. If it also
// matches a negative keyword the deal is rejected; the negative keyword
// is the more specific signal.
// Tier 2: the category is silent but a party name matches, and the
// category is not obviously non-construction.
func (f *DealFilter) IsConstruction(category, customerName, providerName string) bool {
	cat := strings.ToLower(category)
	isNegative := f.anyMatch(cat, f.negative)

	if f.anyMatch(cat, f.keywords) {
		return !isNegative
	}

	secondary := strings.ToLower(customerName + " " + providerName)
	if f.anyMatch(secondary, f.keywords) {
		return !isNegative
	}

	return false
}

func (f *DealFilter) anyMatch(text string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
