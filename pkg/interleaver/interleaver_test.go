package interleaver

import (
	"math/rand"
	"testing"
)

// TestScenarioS6OutputOrder is spec scenario S6: interleave=3,
// total_bits=8 puts the bits in order b0,b3,b6, b1,b4,b7, b2,b5.
func TestScenarioS6OutputOrder(t *testing.T) {
	data := []byte{0b10101010} // b0=0,b1=1,b2=0,b3=1,b4=0,b5=1,b6=0,b7=1
	di := Init(data, 3, 8)
	want := []uint{0, 3, 6, 1, 4, 7, 2, 5}
	for i, w := range want {
		got := di.pos()
		if got != w {
			t.Errorf("step %d: visited bit index %d, want %d", i, got, w)
		}
		di.advance()
	}
}

func TestInterleaveDeinterleaveRoundTripS6Shape(t *testing.T) {
	var bits []uint32
	data := []byte{0b10110010} // arbitrary 8-bit pattern
	Interleave(3, data, 8, func(bit uint32) {
		bits = append(bits, bit)
	})
	out := Deinterleave(3, bits, 8)
	if out[0] != data[0] {
		t.Fatalf("deinterleaved = %08b, want %08b", out[0], data[0])
	}
}

// TestPropertyInterleaveInvolution is P6: for random buffers and
// interleave widths, deinterleave(interleave(x)) == x, and every bit
// position is visited exactly once.
func TestPropertyInterleaveInvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 64; trial++ {
		n := uint(rng.Intn(256) + 1)
		il := uint(rng.Intn(32) + 1)

		orig := make([]byte, (n+7)/8)
		rng.Read(orig)
		// Clear any bits beyond n so equality comparisons aren't
		// polluted by don't-care padding bits.
		if n%8 != 0 {
			orig[len(orig)-1] &= (1 << (n % 8)) - 1
		}

		var bits []uint32
		visited := make(map[uint]bool)
		di := Init(orig, il, n)
		for i := uint(0); i < n; i++ {
			p := di.pos()
			if visited[p] {
				t.Fatalf("n=%d il=%d: position %d visited twice", n, il, p)
			}
			visited[p] = true
			bits = append(bits, di.InterleaveBit())
		}
		if len(visited) != int(n) {
			t.Fatalf("n=%d il=%d: visited %d positions, want %d", n, il, len(visited), n)
		}

		out := Deinterleave(il, bits, n)
		for i := uint(0); i < n; i++ {
			got := (out[i/8] >> (i % 8)) & 1
			want := (orig[i/8] >> (i % 8)) & 1
			if got != want {
				t.Fatalf("n=%d il=%d: bit %d = %d, want %d", n, il, i, got, want)
			}
		}
	}
}
