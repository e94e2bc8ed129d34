package derive

import (
	"bytes"
	"testing"
)

func TestCoordCompressedUncompressedAgreeOnXY(t *testing.T) {
	var c Coord
	for i := range c {
		c[i] = byte(i)
	}
	c[63] = 0x04 // even Y, tag 0x02

	uncompressed := c.Uncompressed()
	compressed := c.Compressed()

	if uncompressed[0] != 0x04 {
		t.Fatalf("uncompressed tag = %x, want 0x04", uncompressed[0])
	}
	if compressed[0] != 0x02 {
		t.Fatalf("compressed tag = %x, want 0x02 for even Y", compressed[0])
	}
	if !bytes.Equal(uncompressed[1:33], compressed[1:33]) {
		t.Fatal("X coordinate differs between serialization forms")
	}
	if !bytes.Equal(uncompressed[1:33], c.X()) {
		t.Fatal("X() disagrees with Uncompressed()'s X field")
	}
	if !bytes.Equal(uncompressed[33:65], c.Y()) {
		t.Fatal("Y() disagrees with Uncompressed()'s Y field")
	}
}

func TestCoordCompressedTagOddY(t *testing.T) {
	var c Coord
	c[63] = 0x05 // odd Y, tag 0x03
	if got := c.Compressed()[0]; got != 0x03 {
		t.Fatalf("compressed tag = %x, want 0x03 for odd Y", got)
	}
}

func TestBatchSize(t *testing.T) {
	b := Batch{GridBits: 5}
	if got, want := b.Size(), 32; got != want {
		t.Fatalf("Size() = %d, want %d", got, want)
	}
}

func TestValidateGridBitsRejectsOutOfRange(t *testing.T) {
	if err := ValidateGridBits(-1); err == nil {
		t.Fatal("expected error for negative grid bits")
	}
	if err := ValidateGridBits(MaxGridBits + 1); err == nil {
		t.Fatal("expected error above MaxGridBits")
	}
	if err := ValidateGridBits(0); err != nil {
		t.Fatalf("expected 0 to be valid: %v", err)
	}
	if err := ValidateGridBits(MaxGridBits); err != nil {
		t.Fatalf("expected MaxGridBits to be valid: %v", err)
	}
}
