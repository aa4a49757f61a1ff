// Package numeric converts loosely typed JSON-ish values to integers.
package numeric

import (
	"encoding/json"
	"math"
)

// maxInt64Float is 2^63, the first float64 beyond the int64 range.
// float64(math.MaxInt64) rounds up to it.
const maxInt64Float = float64(1 << 63)

// NonNegativeInt converts v to a non-negative int64. It accepts every Go
// integer kind, integral float32/float64 values below 2^63 and json.Number.
// Anything else, including negative, fractional and out-of-range values,
// reports false.
func NonNegativeInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), n >= 0
	case int8:
		return int64(n), n >= 0
	case int16:
		return int64(n), n >= 0
	case int32:
		return int64(n), n >= 0
	case int64:
		return n, n >= 0
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		i, err := n.Int64()
		return i, err == nil && i >= 0
	default:
		return 0, false
	}
}

func fromFloat(f float64) (int64, bool) {
	if f < 0 || f >= maxInt64Float || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
