package convcode

import "fmt"

// MaxPolynomials is the largest number of generator polynomials a codec
// will accept, matching CONVCODE_MAX_POLYNOMIALS in the reference library.
const MaxPolynomials = 16

// MaxConstraintLength is the largest constraint length k a codec will
// accept.
const MaxConstraintLength = 16

// tables holds the precomputed (nextState, convert) pair for one encoder
// variant, indexed [bit][state]. Immutable once built; safe to share
// across an encoder and decoder using the same codec.
type tables struct {
	k         uint
	numStates uint
	numPolys  uint
	recursive bool
	polys     []uint32 // bit-reversed over k bits

	nextState [2][]uint32
	convert   [2][]uint32
}

// buildTables validates parameters and precomputes the next-state and
// output-symbol tables for the given constraint length and polynomial
// set. polys are given high-bit-first, as is conventional (Voyager
// 0o171/0o133, LTE 0o117/0o127/0o155); they are bit-reversed over k bits
// once here so the shift register can be processed low-bit-first.
func buildTables(k uint, polys []uint32, recursive bool) (*tables, error) {
	if k < 1 || k > MaxConstraintLength {
		return nil, fmt.Errorf("%w: k=%d must be in [1,%d]", ErrConfig, k, MaxConstraintLength)
	}
	if len(polys) < 1 || len(polys) > MaxPolynomials {
		return nil, fmt.Errorf("%w: num_polys=%d must be in [1,%d]", ErrConfig, len(polys), MaxPolynomials)
	}

	numStates := uint(1) << (k - 1)
	stateMask := numStates - 1
	numPolys := uint(len(polys))

	reversed := make([]uint32, numPolys)
	for i, p := range polys {
		reversed[i] = reverseBits(k, p)
	}

	t := &tables{
		k:         k,
		numStates: numStates,
		numPolys:  numPolys,
		recursive: recursive,
		polys:     reversed,
	}
	for bit := 0; bit < 2; bit++ {
		t.nextState[bit] = make([]uint32, numStates)
		t.convert[bit] = make([]uint32, numStates)
	}

	for s := uint(0); s < numStates; s++ {
		for bit := uint32(0); bit < 2; bit++ {
			shifted := ((s << 1) | uint(bit))

			if !recursive {
				next := uint32(shifted) & uint32(stateMask)
				t.nextState[bit][s] = next

				var sym uint32
				for j, poly := range reversed {
					if parityOdd(uint32(shifted) & poly) {
						sym |= 1 << uint(j)
					}
				}
				t.convert[bit][s] = sym
				continue
			}

			// Recursive systematic: polynomial 0 is feedback.
			feedback := parityOddBit(uint32(shifted) & reversed[0])
			next := ((s << 1) | uint(feedback)) & stateMask
			t.nextState[bit][s] = uint32(next)

			var sym uint32
			sym |= bit // bit 0 is systematic: the raw input bit.
			fbShifted := (s << 1) | uint(feedback)
			for j := 1; j < len(reversed); j++ {
				if parityOdd(uint32(fbShifted) & reversed[j]) {
					sym |= 1 << uint(j)
				}
			}
			t.convert[bit][s] = sym
		}
	}

	return t, nil
}

func reverseBits(k uint, val uint32) uint32 {
	var rv uint32
	for i := uint(0); i < k; i++ {
		rv <<= 1
		rv |= val & 1
		val >>= 1
	}
	return rv
}

func parityOdd(v uint32) bool {
	var odd bool
	for v != 0 {
		odd = odd != (v&1 != 0)
		v >>= 1
	}
	return odd
}

func parityOddBit(v uint32) uint32 {
	if parityOdd(v) {
		return 1
	}
	return 0
}
