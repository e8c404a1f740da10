package ua

import "bytes"

// Ordering is the three-way result of Order.
type Ordering int

const (
	Less Ordering = -1
	Equal Ordering = 0
	More Ordering = 1
)

func orderingOf(n int) Ordering {
	switch {
	case n < 0:
		return Less
	case n > 0:
		return More
	default:
		return Equal
	}
}

// OrderNodeId compares two NodeIds in declaration order: Namespace first,
// then IDType, then the identifier itself (numeric compared by value,
// string/opaque compared byte-wise, Guid compared byte-wise over its
// in-memory RFC 4122 byte layout, not its wire layout).
func OrderNodeId(a, b NodeId) Ordering {
	if a.Namespace != b.Namespace {
		return orderingOf(int(a.Namespace) - int(b.Namespace))
	}
	if a.IDType != b.IDType {
		return orderingOf(int(a.IDType) - int(b.IDType))
	}
	switch a.IDType {
	case IdTypeNumeric:
		if a.Numeric == b.Numeric {
			return Equal
		}
		if a.Numeric < b.Numeric {
			return Less
		}
		return More
	case IdTypeString:
		return orderingOf(bytes.Compare([]byte(a.StringID), []byte(b.StringID)))
	case IdTypeGuid:
		return orderingOf(bytes.Compare(a.GuidID[:], b.GuidID[:]))
	case IdTypeOpaque:
		return orderingOf(bytes.Compare(a.OpaqueID, b.OpaqueID))
	default:
		return Equal
	}
}

// OrderString compares two OPC UA strings byte-wise, matching the
// reference stack's ordinal (non-locale-aware) string comparison.
func OrderString(a, b string) Ordering {
	return orderingOf(bytes.Compare([]byte(a), []byte(b)))
}

// OrderBytes compares two ByteStrings byte-wise.
func OrderBytes(a, b []byte) Ordering {
	return orderingOf(bytes.Compare(a, b))
}
