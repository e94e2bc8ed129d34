package gtable

import (
	"math/big"
	"testing"

	"keysearch/internal/curve"
)

func TestGIsTheGenerator(t *testing.T) {
	g := G()
	if g.X.Cmp(curve.Gx) != 0 || g.Y.Cmp(curve.Gy) != 0 {
		t.Fatal("G() does not match curve.Gx/Gy")
	}
}

func TestDoubleMatchesSelfAddition(t *testing.T) {
	g := G()
	doubled := Double(g)
	added := Add(g, g)
	if doubled.X.Cmp(added.X) != 0 || doubled.Y.Cmp(added.Y) != 0 {
		t.Fatal("Double(G) != Add(G, G)")
	}

	wantX, _ := new(big.Int).SetString("C6047F9441ED7D6D3045406E95C07CD85C778E4B8CEF3CA7ABAC09B95C709EE5", 16)
	if doubled.X.Cmp(wantX) != 0 {
		t.Fatalf("2G.X = %s, want %s", doubled.X.Text(16), wantX.Text(16))
	}
}

func TestAddThirdMultiple(t *testing.T) {
	g := G()
	threeG := Add(g, Double(g))

	wantX, _ := new(big.Int).SetString("F9308A019258C31049344F85F89D5229B531C845836F99B08601F113BCE036F9", 16)
	wantY, _ := new(big.Int).SetString("388F7B0F632DE8140FE337E62A37F3566500A99934C2231B6CB9FD7584B8E672", 16)
	if threeG.X.Cmp(wantX) != 0 || threeG.Y.Cmp(wantY) != 0 {
		t.Fatalf("3G = (%s, %s), want (%s, %s)", threeG.X.Text(16), threeG.Y.Text(16), wantX.Text(16), wantY.Text(16))
	}
}

func TestAddWithInfinityIsIdentity(t *testing.T) {
	g := G()
	if got := Add(g, Infinity()); got.X.Cmp(g.X) != 0 || got.Y.Cmp(g.Y) != 0 {
		t.Fatal("G + infinity != G")
	}
	if got := Add(Infinity(), g); got.X.Cmp(g.X) != 0 || got.Y.Cmp(g.Y) != 0 {
		t.Fatal("infinity + G != G")
	}
}

func TestPointBytesRoundTrip(t *testing.T) {
	g := G()
	xBytes, yBytes := g.ToBytes()
	got := &Point{X: bigIntFromLE(xBytes[:]), Y: bigIntFromLE(yBytes[:])}
	if got.X.Cmp(curve.Gx) != 0 || got.Y.Cmp(curve.Gy) != 0 {
		t.Fatal("ToBytes/bigIntFromLE round trip does not reproduce G")
	}
}

func TestGenerateFirstThreePoints(t *testing.T) {
	table, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := table.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	twoG := Double(G())
	p1, err := table.PointAt(1)
	if err != nil {
		t.Fatalf("PointAt(1): %v", err)
	}
	if p1.X.Cmp(twoG.X) != 0 || p1.Y.Cmp(twoG.Y) != 0 {
		t.Fatal("table point 1 should be 2G")
	}

	threeG := Add(G(), twoG)
	p2, err := table.PointAt(2)
	if err != nil {
		t.Fatalf("PointAt(2): %v", err)
	}
	if p2.X.Cmp(threeG.X) != 0 || p2.Y.Cmp(threeG.Y) != 0 {
		t.Fatal("table point 2 should be 3G")
	}
}

func TestPointAtRejectsOutOfRange(t *testing.T) {
	table, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := table.PointAt(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
	if _, err := table.PointAt(ChunkCount * ChunkSize); err == nil {
		t.Fatal("expected error for index at table size")
	}
}

func TestFifthMultipleMatchesTableEntry(t *testing.T) {
	table, err := Generate(nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	fiveG, err := table.PointAt(4)
	if err != nil {
		t.Fatalf("PointAt(4): %v", err)
	}

	g := G()
	want := g
	for i := 0; i < 4; i++ {
		want = Add(want, g)
	}

	if fiveG.X.Cmp(want.X) != 0 || fiveG.Y.Cmp(want.Y) != 0 {
		t.Fatalf("table[4] = (%s, %s), want 5G = (%s, %s)",
			fiveG.X.Text(16), fiveG.Y.Text(16), want.X.Text(16), want.Y.Text(16))
	}
}
