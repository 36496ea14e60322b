package convcode

import (
	"errors"
	"testing"
)

func TestNewCodecRejectsBadConfig(t *testing.T) {
	_, err := NewCodec(Config{K: 0, Polys: []uint32{5, 7}})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func TestNewCodecRequiresDecSinkWhenDecodingEnabled(t *testing.T) {
	_, err := NewCodec(Config{K: 3, Polys: []uint32{5, 7}, MaxDecodeLenBits: 64})
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("got %v, want ErrConfig", err)
	}
}

func TestCodecEncodeThenDecodeRoundTrips(t *testing.T) {
	var coded []byte
	var decoded []byte

	c, err := NewCodec(Config{
		K:                3,
		Polys:            []uint32{5, 7},
		DoTail:           true,
		MaxDecodeLenBits: 64,
		EncSink: func(b byte, n uint) error {
			coded = append(coded, b)
			return nil
		},
		DecSink: func(b byte, n uint) error {
			decoded = append(decoded, b)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	in, nbits := bitsToBytes("010111001010001")
	if err := c.Enc.EncodeData(in, nbits); err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	codedBits, err := c.Enc.EncodeFinish()
	if err != nil {
		t.Fatalf("EncodeFinish: %v", err)
	}

	if err := c.Dec.DecodeData(coded, codedBits, nil); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	outBits, numErrs, err := c.Dec.DecodeFinish()
	if err != nil {
		t.Fatalf("DecodeFinish: %v", err)
	}
	if numErrs != 0 {
		t.Errorf("num_errs = %d, want 0", numErrs)
	}
	if got := bytesToBits(decoded, outBits); got != "010111001010001" {
		t.Fatalf("decoded = %q, want %q", got, "010111001010001")
	}
}

func TestCodecReinitResetsBothSessions(t *testing.T) {
	c, err := NewCodec(Config{
		K:                3,
		Polys:            []uint32{5, 7},
		DoTail:           true,
		MaxDecodeLenBits: 64,
		EncSink:          func(b byte, n uint) error { return nil },
		DecSink:          func(b byte, n uint) error { return nil },
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if err := c.Enc.EncodeData([]byte{0xFF}, 8); err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	if err := c.Reinit(); err != nil {
		t.Fatalf("Reinit: %v", err)
	}
	if c.Enc.out.totalBits() != 0 {
		t.Errorf("encoder totalBits after Reinit = %d, want 0", c.Enc.out.totalBits())
	}
	if c.Dec.tr.ctrellis != 0 {
		t.Errorf("decoder ctrellis after Reinit = %d, want 0", c.Dec.tr.ctrellis)
	}
}
