package pagination

// Clamp bounds v to [lo, hi]. Adapters use it to keep caller-supplied page
// limits within what both client and server handle comfortably.
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
