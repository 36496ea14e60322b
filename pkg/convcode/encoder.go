package convcode

import (
	"github.com/dbehnke/convcode/pkg/bitstream"
)

// outputSink abstracts the two encoder output modes: packed-byte (the
// default, accumulating into 8-bit chunks via a bitstream.Writer) and
// per-symbol (each call emits exactly numPolys bits straight to the
// sink, useful for splitting per-polynomial streams for turbo
// constituents).
type outputSink interface {
	append(val uint32, width uint) error
	flush() error
	totalBits() uint
}

type packedByteSink struct {
	w *bitstream.Writer
}

func (s *packedByteSink) append(val uint32, width uint) error { return s.w.Append(val, width) }
func (s *packedByteSink) flush() error                        { return s.w.Flush() }
func (s *packedByteSink) totalBits() uint                     { return s.w.TotalBits() }

type perSymbolSink struct {
	sink  bitstream.Sink
	total uint
}

func (s *perSymbolSink) append(val uint32, width uint) error {
	if err := s.sink(byte(val), width); err != nil {
		return err
	}
	s.total += width
	return nil
}
func (s *perSymbolSink) flush() error    { return nil }
func (s *perSymbolSink) totalBits() uint { return s.total }

// Encoder applies a set of EncoderTables to an input bit stream, keeping
// current encoder state across calls and optionally appending a
// zero-flush tail. It is one half of a Codec; see NewCodec.
type Encoder struct {
	tb        *tables
	doTail    bool
	perSymbol bool
	rawSink   bitstream.Sink
	state     uint32
	out       outputSink
	metrics   CodecMetrics
}

func newEncoder(tb *tables, doTail bool, sink bitstream.Sink) *Encoder {
	e := &Encoder{
		tb:      tb,
		doTail:  doTail,
		rawSink: sink,
	}
	e.out = &packedByteSink{w: bitstream.NewWriter(sink)}
	return e
}

// SetOutputPerSymbol selects whether encoded output is emitted a full
// symbol (numPolys bits) at a time instead of packed into bytes. Useful
// when splitting per-polynomial output streams for a recursive/turbo
// constituent code.
func (e *Encoder) SetOutputPerSymbol(val bool) {
	e.perSymbol = val
	if val {
		e.out = &perSymbolSink{sink: e.rawSink}
	} else {
		e.out = &packedByteSink{w: bitstream.NewWriter(e.rawSink)}
	}
}

// Reinit sets the encoder's starting state (for tail-biting, the caller
// passes the last k-1 bits of the message) and resets the output bit
// position and running total.
func (e *Encoder) Reinit(startState uint32) {
	e.state = startState & uint32(e.tb.numStates-1)
	e.SetOutputPerSymbol(e.perSymbol)
}

// EncodeData feeds nbits input bits (low-bit-first within each byte) from
// bytes through the encoder, emitting output via the configured sink.
func (e *Encoder) EncodeData(data []byte, nbits uint) error {
	bitIdx := uint(0)
	for byteIdx := 0; bitIdx < nbits; byteIdx++ {
		b := data[byteIdx]
		for j := 0; j < 8 && bitIdx < nbits; j++ {
			bit := uint32(b) & 1
			b >>= 1
			if err := e.encodeBit(bit); err != nil {
				return err
			}
			bitIdx++
		}
	}
	return nil
}

func (e *Encoder) encodeBit(bit uint32) error {
	sym := e.tb.convert[bit][e.state]
	e.state = e.tb.nextState[bit][e.state]
	if e.metrics != nil {
		e.metrics.SymbolEncoded()
	}
	return e.out.append(sym, e.tb.numPolys)
}

// EncodeFinish flushes the zero-bit tail (if enabled) and any trailing
// partial byte, and returns the total number of output bits generated
// over the encoder's lifetime since the last Reinit.
func (e *Encoder) EncodeFinish() (uint, error) {
	if e.doTail {
		for i := uint(0); i < e.tb.k-1; i++ {
			if err := e.encodeBit(0); err != nil {
				return 0, err
			}
		}
	}
	if err := e.out.flush(); err != nil {
		return 0, err
	}
	return e.out.totalBits(), nil
}

// EncodeBlock is a buffer-direct variant: it drives EncodeData +
// EncodeFinish against an in-memory byte sink and returns the encoded
// output along with its length in bits.
func EncodeBlock(tb *tables, doTail bool, startState uint32, perSymbol bool, in []byte, nbits uint) (out []byte, outBits uint, err error) {
	enc := newEncoder(tb, doTail, func(b byte, n uint) error {
		out = append(out, b)
		return nil
	})
	enc.SetOutputPerSymbol(perSymbol)
	enc.Reinit(startState)
	if err := enc.EncodeData(in, nbits); err != nil {
		return nil, 0, err
	}
	total, err := enc.EncodeFinish()
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
