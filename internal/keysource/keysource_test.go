package keysource

import (
	"io"
	"os"
	"testing"

	"keysearch/internal/curve"
)

func TestSeededRandomDeterministic(t *testing.T) {
	a := NewSeededRandom("a", 42)
	b := NewSeededRandom("b", 42)

	for i := 0; i < 8; i++ {
		va, err := a.NextBase()
		if err != nil {
			t.Fatalf("a.NextBase: %v", err)
		}
		vb, err := b.NextBase()
		if err != nil {
			t.Fatalf("b.NextBase: %v", err)
		}
		if va != vb {
			t.Fatalf("draw %d diverged: %x != %x", i, va, vb)
		}
	}
}

func TestSeededRandomDifferentSeeds(t *testing.T) {
	a := NewSeededRandom("a", 1)
	b := NewSeededRandom("b", 2)

	va, _ := a.NextBase()
	vb, _ := b.NextBase()
	if va == vb {
		t.Fatalf("different seeds produced identical first draw")
	}
}

func TestBitMaskedRestrictsRange(t *testing.T) {
	seeded := NewSeededRandom("inner", 7)
	masked := NewBitMasked("masked", seeded, 20)

	for i := 0; i < 16; i++ {
		v, err := masked.NextBase()
		if err != nil {
			t.Fatalf("NextBase: %v", err)
		}
		if v.BigInt().BitLen() > 20 {
			t.Fatalf("scalar %x exceeds 20-bit range", v)
		}
	}
}

func TestSecureRandomInRange(t *testing.T) {
	s := NewSecureRandom("secure")
	defer s.Close()

	for i := 0; i < 4; i++ {
		v, err := s.NextBase()
		if err != nil {
			t.Fatalf("NextBase: %v", err)
		}
		big := v.BigInt()
		if big.Sign() <= 0 || big.Cmp(curve.N) >= 0 {
			t.Fatalf("scalar %x outside [1, N-1]", v)
		}
	}
}

func TestFileReplayDecimal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "replay-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("1\n2\n3\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := NewFileReplay("replay", f.Name(), FormatDecimal)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	want := []uint64{1, 2, 3}
	for _, w := range want {
		v, err := src.NextBase()
		if err != nil {
			t.Fatalf("NextBase: %v", err)
		}
		if v.BigInt().Uint64() != w {
			t.Fatalf("got %d, want %d", v.BigInt().Uint64(), w)
		}
	}

	if _, err := src.NextBase(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of file, got %v", err)
	}
}

func TestFileReplayHex(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "replay-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("0xff\ndeadbeef\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := NewFileReplay("replay", f.Name(), FormatHex)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	v, err := src.NextBase()
	if err != nil {
		t.Fatalf("NextBase: %v", err)
	}
	if v.BigInt().Uint64() != 0xff {
		t.Fatalf("got %x, want 0xff", v)
	}

	v, err = src.NextBase()
	if err != nil {
		t.Fatalf("NextBase: %v", err)
	}
	if v.BigInt().Uint64() != 0xdeadbeef {
		t.Fatalf("got %x, want 0xdeadbeef", v)
	}
}

func TestFileReplayMnemonic(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "replay-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	if _, err := f.WriteString(mnemonic + "\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := NewFileReplay("replay", f.Name(), FormatMnemonic)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	v, err := src.NextBase()
	if err != nil {
		t.Fatalf("NextBase: %v", err)
	}
	if v.BigInt().Sign() == 0 {
		t.Fatalf("derived a zero scalar from a valid mnemonic")
	}
}

func TestFileReplayInvalidLineErrors(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "replay-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("not-a-number\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	src, err := NewFileReplay("replay", f.Name(), FormatDecimal)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if _, err := src.NextBase(); err == nil {
		t.Fatal("expected a parse error, got nil")
	}
}
