// Package normalize turns raw scraped values into validated,
// strongly-typed staging values. It performs no persistence.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Legal form tokens stripped when deriving a canonical company name.
// Both Cyrillic and Latin spellings occur in the feeds. Matched per
// token; \b in RE2 is ASCII-only and misses the Cyrillic spellings.
var legalForms = map[string]bool{
	"ooo": true, "mchj": true, "мчж": true, "ооо": true,
	"оао": true, "ао": true, "аж": true, "aj": true,
	"qk": true, "qmj": true, "хк": true, "xk": true,
	"gmbh": true, "llc": true, "ятт": true, "yatt": true,
	"чп": true, "xp": true,
}

var (
	quoteRe      = regexp.MustCompile(`[«»""'']`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// CleanCompanyName derives the canonical display form of a raw company
// name: NFC-normalized, quotes and legal-form tokens stripped, spaces
// collapsed, uppercased.
func CleanCompanyName(raw string) string {
	name := norm.NFC.String(raw)
	name = quoteRe.ReplaceAllString(name, " ")

	kept := make([]string, 0, 4)
	for _, tok := range strings.Fields(name) {
		if legalForms[strings.ToLower(tok)] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.ToUpper(strings.Join(kept, " "))
}

// SlugFromName derives a stable identifier code from a display name,
// for feed indicators published without a key. Lowercased, spaces to
// underscores, capped at 100 bytes.
func SlugFromName(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "_")
	if len(slug) > 100 {
		slug = slug[:100]
	}
	return slug
}

// SameName reports whether two raw name variants are the same after
// NFC normalization and space collapsing. Reporting uses it to fold
// whitespace variants of a company's raw_names before display.
func SameName(a, b string) bool {
	na := multiSpaceRe.ReplaceAllString(norm.NFC.String(strings.TrimSpace(a)), " ")
	nb := multiSpaceRe.ReplaceAllString(norm.NFC.String(strings.TrimSpace(b)), " ")
	return na == nb
}
