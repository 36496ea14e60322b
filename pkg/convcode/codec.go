package convcode

import (
	"fmt"

	"github.com/dbehnke/convcode/pkg/bitstream"
	"github.com/dbehnke/convcode/pkg/logger"
)

// Config describes how to build a Codec.
type Config struct {
	// K is the constraint length, in [1, MaxConstraintLength].
	K uint

	// Polys are the generator polynomials, high-bit-first (the
	// conventional engineering form, e.g. Voyager 0o171, 0o133). Up to
	// MaxPolynomials entries.
	Polys []uint32

	// MaxDecodeLenBits sizes the trellis. 0 means the codec can only be
	// used for encoding.
	MaxDecodeLenBits uint

	// DoTail appends a k-1 zero-bit tail on encode and accounts for it
	// on decode. Disable for tail-biting (see Encoder.Reinit /
	// Decoder.Reinit two-pass protocol).
	DoTail bool

	// Recursive selects the recursive-systematic encoder variant, where
	// Polys[0] is the feedback polynomial and bit 0 of every symbol is
	// the raw systematic input bit.
	Recursive bool

	// EncSink receives encoder output bytes. May be nil if the codec is
	// only used for decoding.
	EncSink bitstream.Sink

	// DecSink receives decoder output bytes. May be nil if the codec is
	// only used for encoding.
	DecSink bitstream.Sink

	// Metrics, if non-nil, is notified of every symbol encoded/decoded.
	Metrics CodecMetrics

	// Log, if non-nil, receives a line at codec construction and a debug
	// line on every ReinitDecoder call. A Codec built without one logs
	// nothing.
	Log *logger.Logger
}

// Codec owns one EncoderTables, and the Encoder and/or Decoder built from
// it, for the codec's entire lifetime. Encoding and decoding share only
// the immutable tables and may be driven in any interleaving of calls
// from a single goroutine; a Codec has no internal locking and must not
// be shared across goroutines without external synchronization.
type Codec struct {
	tb  *tables
	Enc *Encoder
	Dec *Decoder
	log *logger.Logger
}

// NewCodec validates cfg and builds a Codec. It returns ErrConfig for an
// invalid k or polynomial count, or when MaxDecodeLenBits > 0 is given
// without a DecSink.
func NewCodec(cfg Config) (*Codec, error) {
	tb, err := buildTables(cfg.K, cfg.Polys, cfg.Recursive)
	if err != nil {
		return nil, err
	}

	c := &Codec{tb: tb, log: cfg.Log}
	if c.log != nil {
		c.log.Info("codec built",
			logger.Uint("k", cfg.K),
			logger.Int("num_polys", len(cfg.Polys)),
			logger.Bool("do_tail", cfg.DoTail),
			logger.Bool("recursive", cfg.Recursive))
	}

	if cfg.EncSink != nil {
		enc := newEncoder(tb, cfg.DoTail, wrapSinkErr(cfg.EncSink))
		enc.metrics = cfg.Metrics
		c.Enc = enc
	}

	if cfg.MaxDecodeLenBits > 0 {
		if cfg.DecSink == nil {
			return nil, fmt.Errorf("%w: MaxDecodeLenBits > 0 requires a DecSink", ErrConfig)
		}
		dec, err := newDecoder(tb, cfg.DoTail, cfg.MaxDecodeLenBits, wrapSinkErr(cfg.DecSink))
		if err != nil {
			return nil, err
		}
		dec.metrics = cfg.Metrics
		c.Dec = dec
	}

	return c, nil
}

// wrapSinkErr wraps any error returned by sink with ErrSink.
func wrapSinkErr(sink bitstream.Sink) bitstream.Sink {
	return func(b byte, nbits uint) error {
		if err := sink(b, nbits); err != nil {
			return fmt.Errorf("%w: %w", ErrSink, err)
		}
		return nil
	}
}

// NumStates returns 2^(k-1), the number of encoder/decoder states.
func (c *Codec) NumStates() uint { return c.tb.numStates }

// NumPolys returns the number of generator polynomials (and thus the bit
// width of one symbol).
func (c *Codec) NumPolys() uint { return c.tb.numPolys }

// ReinitEncoder is a convenience for c.Enc.Reinit(startState).
func (c *Codec) ReinitEncoder(startState uint32) {
	c.Enc.Reinit(startState)
}

// ReinitDecoder is a convenience for c.Dec.Reinit(startState, initOtherStates).
func (c *Codec) ReinitDecoder(startState, initOtherStates uint32) error {
	if c.log != nil {
		c.log.Debug("decoder reinit", logger.Uint32("start_state", startState), logger.Uint32("init_other_states", initOtherStates))
	}
	return c.Dec.Reinit(startState, initOtherStates)
}

// Reinit resets both the encoder and decoder (if present) to their
// default start states.
func (c *Codec) Reinit() error {
	if c.Enc != nil {
		c.Enc.Reinit(DefaultStartState)
	}
	if c.Dec != nil {
		return c.Dec.Reinit(DefaultStartState, DefaultInitOtherStates)
	}
	return nil
}

// SetEncodeOutputPerSymbol toggles the encoder's packed-byte vs
// per-symbol output mode.
func (c *Codec) SetEncodeOutputPerSymbol(val bool) {
	c.Enc.SetOutputPerSymbol(val)
}

// SetDecodeMaxUncertainty sets the decoder's uncertainty100 scale.
func (c *Codec) SetDecodeMaxUncertainty(v uint8) {
	c.Dec.SetMaxUncertainty(v)
}
