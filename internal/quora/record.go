// Package quora implements the Quora Ads API client and the hierarchical
// metrics harvest: accounts resolve to campaigns, campaigns to ads, and
// each ad to its daily performance records.
package quora

// RawRecord is a single API record as returned inside a response
// envelope's data list. Values keep their decoded JSON types (float64 for
// numbers, string, bool, nested maps).
type RawRecord map[string]any

// FlatRecord is a RawRecord after nested sub-objects have been promoted
// to top-level fields. The composite-key fields accountId, adId, adSetId,
// campaignId and startDate are always present on harvested records.
type FlatRecord = RawRecord

// Int64Field returns the named field as an int64. JSON numbers decode as
// float64, so both representations are accepted.
func Int64Field(rec RawRecord, key string) (int64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// Float64Field returns the named field as a float64.
func Float64Field(rec RawRecord, key string) (float64, bool) {
	switch v := rec[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
