package ctph

// rollingWindow is the width, in bytes, of the sliding window used by the
// rolling hash. It also doubles as the minimum common-substring length
// required by the pre-filter in substring.go.
const rollingWindow = 7

// rollState is a rolling checksum over the last rollingWindow bytes fed to
// it, derived from the Adler checksum. h1 is the sum of the bytes
// currently in the window, h2 accumulates h1 over time so recently added
// bytes carry more weight, and h3 is a shift/xor mix that keeps the hash
// useful for large block sizes. Because it only looks at the trailing
// window, the hash resynchronises automatically after an insertion or
// deletion elsewhere in the stream.
type rollState struct {
	window [rollingWindow]byte
	h1, h2, h3 uint32
	n          uint32
}

// feed mixes one byte into the rolling state.
func (r *rollState) feed(c byte) {
	u := uint32(c)

	r.h2 -= r.h1
	r.h2 += rollingWindow * u

	r.h1 += u
	r.h1 -= uint32(r.window[r.n])

	r.window[r.n] = c
	r.n++
	if r.n == rollingWindow {
		r.n = 0
	}

	r.h3 <<= 5
	r.h3 ^= u
}

// sum returns the current rolling hash value.
func (r *rollState) sum() uint32 {
	return r.h1 + r.h2 + r.h3
}

// reset clears the rolling state back to its zero value.
func (r *rollState) reset() {
	*r = rollState{}
}
