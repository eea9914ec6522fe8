package normalize

import (
	"strings"

	"github.com/rotisserie/eris"
)

// STIRLength is the fixed length of an Uzbek tax identifier.
const STIRLength = 9

// ErrInvalidSTIR marks a malformed tax identifier. Records carrying one
// are counted as validation failures, never persisted as companies.
var ErrInvalidSTIR = eris.New("normalize: invalid STIR")

// ValidateSTIR checks that s is exactly nine ASCII digits and returns
// the trimmed identifier. Longer identifiers (foreign companies) and
// anything non-numeric fail validation.
func ValidateSTIR(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != STIRLength {
		return "", eris.Wrapf(ErrInvalidSTIR, "length %d", len(s))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", eris.Wrapf(ErrInvalidSTIR, "non-digit %q", r)
		}
	}
	return s, nil
}

// IsValidSTIR reports whether s passes ValidateSTIR.
func IsValidSTIR(s string) bool {
	_, err := ValidateSTIR(s)
	return err == nil
}
