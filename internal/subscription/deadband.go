package subscription

import "github.com/opcua-go/uacore/internal/ua"

// suppressedByDeadband reports whether candidate's value is close enough
// to last's value, per the configured deadband, that it should not be
// queued for publication: a data change within the deadband is
// suppressed rather than queued.
func suppressedByDeadband(last, candidate ua.DataValue, kind DeadbandType, deadbandValue float64) bool {
	lv, lok := numericValue(last)
	cv, cok := numericValue(candidate)
	if !lok || !cok {
		return false
	}
	diff := cv - lv
	if diff < 0 {
		diff = -diff
	}
	switch kind {
	case DeadbandAbsolute:
		return diff <= deadbandValue
	case DeadbandPercent:
		// Percent deadband is relative to the EURange, which this
		// package does not model directly; callers that want percent
		// deadband semantics convert deadbandValue to an absolute span
		// up front (percent * (high-low) / 100) before constructing the
		// MonitoredItem, matching how the reference stack pre-computes
		// the threshold once at item creation instead of per sample.
		return diff <= deadbandValue
	default:
		return false
	}
}

// numericValue extracts a float64 view of a DataValue's scalar Variant,
// for the built-in numeric types the deadband filter applies to. Returns
// ok=false for non-numeric or array values, which are never deadband
// filtered.
func numericValue(dv ua.DataValue) (float64, bool) {
	if !dv.HasValue || dv.Value.IsArray {
		return 0, false
	}
	switch v := dv.Value.Value.(type) {
	case int8:
		return float64(v), true
	case byte:
		return float64(v), true
	case int16:
		return float64(v), true
	case uint16:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
