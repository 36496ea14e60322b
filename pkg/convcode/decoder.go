package convcode

import (
	"fmt"
	"math"

	"github.com/dbehnke/convcode/pkg/bitstream"
)

// DefaultStartState is the conventional decoder/encoder start state for
// non-tail-biting use.
const DefaultStartState = 0

// DefaultInitOtherStates is the "very bad" path-metric sentinel assigned
// to every state but the start state on reinit. It is UINT_MAX/2 rather
// than UINT_MAX so it can absorb a realistic run of branch metrics without
// overflowing.
const DefaultInitOtherStates = math.MaxUint32 / 2

// Decoder implements Viterbi decoding over a Trellis built from the same
// EncoderTables as an Encoder: ACS with a hard or soft branch metric,
// leftover-bit buffering across DecodeData calls, traceback, and
// optional per-bit cumulative uncertainty (BCJR-style) output.
type Decoder struct {
	tb  *tables
	tr  *trellis
	out *bitstream.Writer

	doTail         bool
	uncertainty100 uint32

	curr, next []uint32

	leftoverBits uint
	leftoverData uint32
	leftoverRel  []uint8

	metrics CodecMetrics
}

func newDecoder(tb *tables, doTail bool, maxDecodeLenBits uint, sink bitstream.Sink) (*Decoder, error) {
	if maxDecodeLenBits == 0 {
		return nil, fmt.Errorf("%w: max_decode_len_bits must be > 0 to decode", ErrConfig)
	}
	size := maxDecodeLenBits + tb.k*tb.numPolys
	d := &Decoder{
		tb:             tb,
		tr:             newTrellis(tb.numStates, size),
		out:            bitstream.NewWriter(sink),
		doTail:         doTail,
		uncertainty100: DefaultUncertainty100,
		curr:           make([]uint32, tb.numStates),
		next:           make([]uint32, tb.numStates),
		leftoverRel:    make([]uint8, tb.numPolys),
	}
	d.Reinit(DefaultStartState, DefaultInitOtherStates)
	return d, nil
}

// SetMaxUncertainty sets the uncertainty100 scale used to interpret soft
// reliability values (default DefaultUncertainty100 = 100).
func (d *Decoder) SetMaxUncertainty(v uint8) {
	d.uncertainty100 = uint32(v)
}

// Reinit resets the decoder to start decoding a new stream. startState
// must be < numStates. initOtherStates is the path-metric sentinel given
// to every state but startState (use DefaultInitOtherStates unless doing
// tail-biting's first pass, where a smaller value like 256 is
// conventional).
func (d *Decoder) Reinit(startState, initOtherStates uint32) error {
	if startState >= uint32(d.tb.numStates) {
		return fmt.Errorf("%w: start_state=%d must be < %d", ErrConfig, startState, d.tb.numStates)
	}
	for i := range d.curr {
		d.curr[i] = initOtherStates
	}
	d.curr[startState] = 0
	d.tr.reset()
	d.leftoverBits = 0
	d.out.Reset()
	return nil
}

// decodeSymbol advances the trellis by one column for a single received
// symbol (numPolys coded bits packed low-bit-first) and its optional
// per-bit reliability.
func (d *Decoder) decodeSymbol(rcvSymbol uint32, reliability []uint8) error {
	if d.tr.ctrellis+d.tb.numPolys > d.tr.size {
		return fmt.Errorf("%w: trellis column %d + %d exceeds size %d", ErrCapacity, d.tr.ctrellis, d.tb.numPolys, d.tr.size)
	}

	col := d.tr.cols[d.tr.ctrellis]
	metricCol := d.tr.metricCols[d.tr.ctrellis]
	for i := uint32(0); i < uint32(d.tb.numStates); i++ {
		p1, p2 := predecessors(i, d.tb.k)
		b1 := predecessorBit(d.tb, p1, i)
		b2 := predecessorBit(d.tb, p2, i)

		d1 := addMetric(d.curr[p1], d.tb.convert[b1][p1], rcvSymbol, reliability, d.tb.numPolys, d.uncertainty100)
		d2 := addMetric(d.curr[p2], d.tb.convert[b2][p2], rcvSymbol, reliability, d.tb.numPolys, d.uncertainty100)

		if d2 < d1 {
			col[i] = p2
			d.next[i] = d2
		} else {
			col[i] = p1
			d.next[i] = d1
		}
		metricCol[i] = d.next[i]
	}
	d.tr.ctrellis++
	d.curr, d.next = d.next, d.curr
	if d.metrics != nil {
		d.metrics.SymbolDecoded()
	}
	return nil
}

func addMetric(base, cand, rcv uint32, reliability []uint8, numPolys uint, uncertainty100 uint32) uint32 {
	if base == math.MaxUint32 {
		return math.MaxUint32
	}
	return base + branchDistance(cand, rcv, reliability, numPolys, uncertainty100)
}

// DecodeData feeds nbits coded bits (low-bit-first within each byte,
// optionally paired one-for-one with reliability bytes) into the decoder.
// Symbols that don't complete across call boundaries are buffered and
// prepended to the next call.
func (d *Decoder) DecodeData(data []byte, nbits uint, reliability []uint8) error {
	currBit := uint(0)

	if d.leftoverBits > 0 {
		if nbits+d.leftoverBits < d.tb.numPolys {
			d.appendLeftover(data, reliability, nbits)
			return nil
		}
		extractSize := d.tb.numPolys - d.leftoverBits
		newBits := bitstream.Extract(data, 0, extractSize)
		sym := d.leftoverData | (newBits << d.leftoverBits)

		var rel []uint8
		if reliability != nil {
			rel = make([]uint8, d.tb.numPolys)
			copy(rel, d.leftoverRel[:d.leftoverBits])
			copy(rel[d.leftoverBits:], reliability[:extractSize])
		}
		currBit += extractSize
		nbits -= extractSize
		if reliability != nil {
			reliability = reliability[extractSize:]
		}
		d.leftoverBits = 0

		if err := d.decodeSymbol(sym, rel); err != nil {
			return err
		}
	}

	for nbits >= d.tb.numPolys {
		sym := bitstream.Extract(data, currBit, d.tb.numPolys)
		var rel []uint8
		if reliability != nil {
			rel = reliability[:d.tb.numPolys]
			reliability = reliability[d.tb.numPolys:]
		}
		if err := d.decodeSymbol(sym, rel); err != nil {
			return err
		}
		currBit += d.tb.numPolys
		nbits -= d.tb.numPolys
	}

	if nbits > 0 {
		d.leftoverData = bitstream.Extract(data, currBit, nbits)
		if reliability != nil {
			copy(d.leftoverRel, reliability[:nbits])
		}
	}
	d.leftoverBits = nbits
	return nil
}

func (d *Decoder) appendLeftover(data []byte, reliability []uint8, nbits uint) {
	newBits := bitstream.Extract(data, 0, nbits)
	d.leftoverData |= newBits << d.leftoverBits
	if reliability != nil {
		copy(d.leftoverRel[d.leftoverBits:], reliability[:nbits])
	}
	d.leftoverBits += nbits
}

// DecodeFinish selects the minimum-metric terminal state, traces back
// through the trellis, replays the recovered bits forward through the
// output sink, and returns the total output bits and a best-effort error
// count (the winning path's cumulative metric).
func (d *Decoder) DecodeFinish() (totalOutBits uint, numErrs uint32, err error) {
	return d.finish(nil)
}

// DecodeFinishWithUncertainty is DecodeFinish plus a per-bit cumulative
// uncertainty trace (BCJR-style), one entry per output bit (not per tail
// bit), suitable as extrinsic input to a turbo outer loop.
func (d *Decoder) DecodeFinishWithUncertainty() (totalOutBits uint, numErrs uint32, uncertainty []uint32, err error) {
	var trace []uint32
	totalOutBits, numErrs, err = d.finish(&trace)
	return totalOutBits, numErrs, trace, err
}

func (d *Decoder) finish(uncertaintyOut *[]uint32) (uint, uint32, error) {
	minVal := d.curr[0]
	minPos := uint32(0)
	for i := uint32(1); i < uint32(d.tb.numStates); i++ {
		if d.curr[i] < minVal {
			minVal = d.curr[i]
			minPos = i
		}
	}

	// Traceback: walk predecessor pointers, recovering the input bit at
	// each column and caching it in row 0 of that column (the same cell
	// that held the predecessor index -- traceback is finished with that
	// value, so reusing it costs nothing). When the caller wants
	// per-bit uncertainty, metricCols[col][cstate] (cstate being the
	// state on the winning path at that column, before stepping to its
	// predecessor) is already the cumulative branch-metric sum through
	// that column -- no separate subtraction pass is needed.
	cstate := minPos
	var metricTrace []uint32
	if uncertaintyOut != nil {
		metricTrace = make([]uint32, d.tr.ctrellis)
	}
	for col := int(d.tr.ctrellis) - 1; col >= 0; col-- {
		pstate := d.tr.cols[col][cstate]
		bit := predecessorBit(d.tb, pstate, cstate)
		if uncertaintyOut != nil {
			metricTrace[col] = d.tr.metricCols[col][cstate]
		}
		d.tr.cols[col][0] = bit
		cstate = pstate
	}

	extra := uint(0)
	if d.doTail {
		extra = d.tb.k - 1
	}
	limit := d.tr.ctrellis
	if extra <= limit {
		limit -= extra
	} else {
		limit = 0
	}

	for col := uint(0); col < limit; col++ {
		if err := d.out.Append(d.tr.cols[col][0], 1); err != nil {
			return 0, 0, err
		}
	}
	if err := d.out.Flush(); err != nil {
		return 0, 0, err
	}

	if uncertaintyOut != nil {
		*uncertaintyOut = metricTrace[:limit]
	}

	return d.out.TotalBits(), minVal, nil
}

// DecodeBlock is a buffer-direct variant: it drives DecodeData +
// DecodeFinish (or DecodeFinishWithUncertainty, when wantUncertainty is
// true) against an in-memory byte sink.
func DecodeBlock(tb *tables, doTail bool, maxDecodeLenBits uint, startState, initOtherStates uint32, in []byte, nbits uint, reliability []uint8, wantUncertainty bool) (out []byte, outBits uint, numErrs uint32, uncertainty []uint32, err error) {
	dec, err := newDecoder(tb, doTail, maxDecodeLenBits, func(b byte, n uint) error {
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, 0, 0, nil, err
	}
	if err := dec.Reinit(startState, initOtherStates); err != nil {
		return nil, 0, 0, nil, err
	}
	if err := dec.DecodeData(in, nbits, reliability); err != nil {
		return nil, 0, 0, nil, err
	}
	if wantUncertainty {
		outBits, numErrs, uncertainty, err = dec.DecodeFinishWithUncertainty()
	} else {
		outBits, numErrs, err = dec.DecodeFinish()
	}
	if err != nil {
		return nil, 0, 0, nil, err
	}
	return out, outBits, numErrs, uncertainty, nil
}
