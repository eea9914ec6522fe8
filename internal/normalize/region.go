package normalize

import "strings"

// RegionExtractor finds Uzbekistan region names in free text. The
// region list comes from configuration and covers both Cyrillic and
// Latin spellings.
type RegionExtractor struct {
	regions []string
	lowered []string
}

// NewRegionExtractor builds an extractor over the configured region list.
func NewRegionExtractor(regions []string) *RegionExtractor {
	lowered := make([]string, len(regions))
	for i, r := range regions {
		lowered[i] = strings.ToLower(r)
	}
	return &RegionExtractor{regions: regions, lowered: lowered}
}

// Extract returns the first configured region mentioned in any of the
// given texts, or "" when none matches.
func (e *RegionExtractor) Extract(texts ...string) string {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for i, r := range e.lowered {
			if strings.Contains(lower, r) {
				return e.regions[i]
			}
		}
	}
	return ""
}
