package clearing

import (
	"sync"
	"testing"

	"github.com/openalpha/etf-service/market"
)

// TestSimpleBuyFill pins the folding of a single buy: position up, negative
// raw pnl, volume counted
func TestSimpleBuyFill(t *testing.T) {
	s := NewStore()
	s.ApplyFill(7, 1, 10, 100, market.SideBuy)

	got := s.Tally(7, 1)
	if got.Position != 10 {
		t.Errorf("position = %d, want 10", got.Position)
	}
	if got.RawPnl != -1000 {
		t.Errorf("raw pnl = %d, want -1000", got.RawPnl)
	}
	if got.Volume != 10 {
		t.Errorf("volume = %d, want 10", got.Volume)
	}
	if got.BuyNotional != 1000 || got.SellNotional != 0 {
		t.Errorf("notionals = %d/%d, want 1000/0", got.BuyNotional, got.SellNotional)
	}
}

// TestFillFolding checks position, pnl and volume over a mixed fill sequence
func TestFillFolding(t *testing.T) {
	s := NewStore()

	fills := []struct {
		qty  uint32
		px   int32
		side market.Side
	}{
		{10, 100, market.SideBuy},
		{4, 110, market.SideSell},
		{6, 95, market.SideBuy},
		{12, 105, market.SideSell},
	}
	for _, f := range fills {
		s.ApplyFill(9, 3, f.qty, f.px, f.side)
	}

	got := s.Tally(9, 3)
	// buys: 10+6=16, sells: 4+12=16
	if got.Position != 0 {
		t.Errorf("position = %d, want 0", got.Position)
	}
	wantBuy := int64(10*100 + 6*95)
	wantSell := int64(4*110 + 12*105)
	if got.BuyNotional != wantBuy || got.SellNotional != wantSell {
		t.Errorf("notionals = %d/%d, want %d/%d", got.BuyNotional, got.SellNotional, wantBuy, wantSell)
	}
	if got.RawPnl != wantSell-wantBuy {
		t.Errorf("raw pnl = %d, want %d", got.RawPnl, wantSell-wantBuy)
	}
	if got.Volume != 32 {
		t.Errorf("volume = %d, want 32", got.Volume)
	}
}

// TestReadsDoNotMaterializeRows verifies reads on untouched keys return
// zeros without creating phantom tallies
func TestReadsDoNotMaterializeRows(t *testing.T) {
	s := NewStore()
	if got := s.Position(1, 1); got != 0 {
		t.Errorf("position = %d, want 0", got)
	}
	if n := len(s.TalliesAll()); n != 0 {
		t.Errorf("tallies after read = %d, want 0", n)
	}
	if n := len(s.ClientIDs()); n != 0 {
		t.Errorf("clients after read = %d, want 0", n)
	}
}

// TestTalliesIsolatedPerKey verifies fills on one key never leak into another
func TestTalliesIsolatedPerKey(t *testing.T) {
	s := NewStore()
	s.ApplyFill(1, 1, 5, 10, market.SideBuy)
	s.ApplyFill(1, 2, 7, 10, market.SideBuy)
	s.ApplyFill(2, 1, 9, 10, market.SideSell)

	if got := s.Position(1, 1); got != 5 {
		t.Errorf("position(1,1) = %d, want 5", got)
	}
	if got := s.Position(1, 2); got != 7 {
		t.Errorf("position(1,2) = %d, want 7", got)
	}
	if got := s.Position(2, 1); got != -9 {
		t.Errorf("position(2,1) = %d, want -9", got)
	}

	clients := s.ClientIDs()
	if len(clients) != 2 {
		t.Errorf("clients = %v, want 2 ids", clients)
	}
}

// TestSnapshotCopiesAreStable verifies snapshots do not alias live tallies
func TestSnapshotCopiesAreStable(t *testing.T) {
	s := NewStore()
	s.ApplyFill(7, 1, 10, 100, market.SideBuy)

	snap := s.TalliesAll()
	s.ApplyFill(7, 1, 10, 100, market.SideBuy)

	if got := snap[Key{ClientID: 7, Symbol: 1}].Position; got != 10 {
		t.Errorf("snapshot position mutated to %d, want 10", got)
	}
	if got := s.Position(7, 1); got != 20 {
		t.Errorf("live position = %d, want 20", got)
	}
}

// TestConcurrentReadersSingleWriter exercises the lock under a writer and
// several readers; run with -race
func TestConcurrentReadersSingleWriter(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.ApplyFill(7, uint32(i%4+1), 1, 100, market.SideBuy)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = s.Position(7, 1)
				_ = s.TalliesAll()
				_ = s.ClientIDs()
			}
		}()
	}
	wg.Wait()

	total := int64(0)
	for _, tl := range s.TalliesAll() {
		total += tl.Volume
	}
	if total != 1000 {
		t.Errorf("total volume = %d, want 1000", total)
	}
}
