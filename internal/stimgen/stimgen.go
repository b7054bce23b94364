// Package stimgen provides small closure-based generators for driving
// test stimulus sequences (byte streams, input-bus values) across many
// cycles without spelling out each value by hand.
package stimgen

// Const returns a generator that always produces the same value.
func Const(v int) func() int {
	return func() int {
		return v
	}
}

// Counting returns a generator producing start, start+1, start+2, ...
func Counting(start int) func() int {
	current := start - 1
	return func() int {
		current++
		return current
	}
}

// Bytes drains n values from gen, truncated to a byte each.
func Bytes(gen func() int, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(gen())
	}
	return out
}
