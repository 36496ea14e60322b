package convcode

import "errors"

// Sentinel errors for the codec's error taxonomy. Wrap these with
// fmt.Errorf("...: %w", ErrX) at the call site so callers can match with
// errors.Is while still getting a useful message.
var (
	// ErrConfig is returned when k, the polynomial count, or a start
	// state is out of range. No state is mutated on this error.
	ErrConfig = errors.New("convcode: invalid configuration")

	// ErrAlloc is the allocation-failure member of the taxonomy. No
	// function in this package returns it: a failed allocation in Go
	// panics rather than returning an error.
	ErrAlloc = errors.New("convcode: allocation failed")

	// ErrCapacity is returned when decoding would write past the
	// trellis's allocated column count.
	ErrCapacity = errors.New("convcode: trellis capacity exceeded")

	// ErrSink wraps the error of a Config.EncSink or Config.DecSink that
	// returns non-nil; it is propagated from the call in progress.
	ErrSink = errors.New("convcode: output sink failed")
)
