package convcode

import "math/bits"

// DefaultUncertainty100 is the conventional upper bound for a soft
// reliability value: 0 means certain-correct, this value (divided by 2)
// means no information, and the full range up to this value is accepted
// without clamping (see the reliability-semantics note in the decoder
// design).
const DefaultUncertainty100 = 100

// branchDistance returns the distance between a candidate emitted symbol
// and a received symbol. With reliability == nil it is the Hamming
// distance (popcount of the XOR). With reliability present it accumulates,
// per polynomial bit j, reliability[j] when the bits agree and
// uncertainty100-reliability[j] when they don't -- the full [0,
// uncertainty100] range is honored, never silently clamped.
func branchDistance(cand, rcv uint32, reliability []uint8, numPolys uint, uncertainty100 uint32) uint32 {
	if reliability == nil {
		return uint32(bits.OnesCount32(cand ^ rcv))
	}

	var dist uint32
	for j := uint(0); j < numPolys; j++ {
		candBit := (cand >> j) & 1
		rcvBit := (rcv >> j) & 1
		rel := uint32(reliability[j])
		if candBit == rcvBit {
			dist += rel
		} else {
			dist += uncertainty100 - rel
		}
	}
	return dist
}
