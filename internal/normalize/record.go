package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RawRecord is one unparsed key/value record as produced by a feed page,
// before any normalization.
type RawRecord map[string]any

// TenderRecord is the strongly-typed staging value for one tender deal.
type TenderRecord struct {
	DealID            int64
	StartCost         float64
	DealCost          float64
	CustomerName      string
	ProviderSTIR      string // unvalidated, may be empty or foreign
	ProviderName      string
	DealDate          *time.Time
	Description       string
	ParticipantsCount int
	Region            string
	Raw               []byte // original payload for forensic replay
}

// RatingListingRecord is the staging value for one company row from the
// rating feed's paginated listing.
type RatingListingRecord struct {
	STIR   string // unvalidated
	Name   string
	Letter string
	Score  *float64
	Region string
}

// NormalizeTender converts a raw deal record into a TenderRecord.
// A missing or unparseable deal identifier is a malformed record.
func NormalizeTender(rec RawRecord, regions *RegionExtractor) (*TenderRecord, error) {
	dealID, ok := asInt64(rec["deal_id"])
	if !ok {
		return nil, eris.New("normalize: tender record missing deal_id")
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "normalize: marshal raw tender payload")
	}

	t := &TenderRecord{
		DealID:            dealID,
		StartCost:         asFloat(rec["start_cost"]),
		DealCost:          asFloat(rec["deal_cost"]),
		CustomerName:      asString(rec["customer_name"]),
		ProviderSTIR:      strings.TrimSpace(asString(rec["provider_inn"])),
		ProviderName:      asString(rec["provider_name"]),
		Description:       asString(rec["category_name"]),
		ParticipantsCount: asInt(rec["participants_count"]),
		Raw:               raw,
	}

	if d, ok := ParseDealDate(asString(rec["deal_date"])); ok {
		t.DealDate = &d
	}

	if regions != nil {
		t.Region = regions.Extract(t.CustomerName, t.Description)
	}

	return t, nil
}

// NormalizeRatingListing converts a raw listing record into a
// RatingListingRecord. A record without an identifier is malformed.
func NormalizeRatingListing(rec RawRecord) (*RatingListingRecord, error) {
	stir := strings.TrimSpace(asString(rec["inn"]))
	if stir == "" {
		return nil, eris.New("normalize: rating record missing inn")
	}

	r := &RatingListingRecord{
		STIR:   stir,
		Name:   asString(rec["name"]),
		Letter: asString(rec["rating"]),
		Region: asString(rec["viloyat_name"]),
	}
	if f, ok := asFloatOK(rec["sumbal"]); ok {
		r.Score = &f
	}
	return r, nil
}

// ParseDealDate parses the feed's "2006-01-02T15:04:05" timestamps,
// keeping the date part only.
func ParseDealDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	datePart, _, _ := strings.Cut(s, "T")
	d, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func asFloat(v any) float64 {
	f, _ := asFloatOK(v)
	return f
}

func asFloatOK(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(v any) int {
	f, ok := asFloatOK(v)
	if !ok {
		return 0
	}
	return int(f)
}

func asInt64(v any) (int64, bool) {
	f, ok := asFloatOK(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
