package book

import (
	"testing"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/market"
)

func newTestBook(t *testing.T, engine string) *Book {
	t.Helper()
	b, err := New(engine, log.NewNopLogger())
	if err != nil {
		t.Fatalf("New(%q): %v", engine, err)
	}
	return b
}

// TestBookLifecycle walks one order through new, modify and delete and
// checks the top of book after every step
func TestBookLifecycle(t *testing.T) {
	for _, engine := range Engines() {
		b := newTestBook(t, engine)

		b.ApplyNew(1, 3, market.SideBuy, 5, 50)
		b.ApplyNew(2, 3, market.SideBuy, 3, 52)
		if px, qty := b.BestBid(3); px != 52 || qty != 3 {
			t.Errorf("%s: best bid = (%d, %d), want (52, 3)", engine, px, qty)
		}

		// order 1 moves up to join the best level
		b.ApplyModify(1, market.SideBuy, 4, 52)
		if px, qty := b.BestBid(3); px != 52 || qty != 7 {
			t.Errorf("%s: best bid after modify = (%d, %d), want (52, 7)", engine, px, qty)
		}

		b.ApplyDelete(2)
		if px, qty := b.BestBid(3); px != 52 || qty != 4 {
			t.Errorf("%s: best bid after delete = (%d, %d), want (52, 4)", engine, px, qty)
		}
		if px, qty := b.BestAsk(3); px != 0 || qty != 0 {
			t.Errorf("%s: best ask = (%d, %d), want (0, 0)", engine, px, qty)
		}

		b.ApplyDelete(1)
		if px, qty := b.BestBid(3); px != 0 || qty != 0 {
			t.Errorf("%s: best bid after flush = (%d, %d), want (0, 0)", engine, px, qty)
		}
		if b.OrderCount() != 0 {
			t.Errorf("%s: order count = %d, want 0", engine, b.OrderCount())
		}
	}
}

// TestBookIgnoresDuplicatesAndUnknowns pins the tolerance rules: duplicate
// new keeps the first order, delete and modify of unknown ids do nothing
func TestBookIgnoresDuplicatesAndUnknowns(t *testing.T) {
	b := newTestBook(t, EngineMap)

	b.ApplyNew(10, 1, market.SideSell, 2, 200)
	b.ApplyNew(10, 1, market.SideSell, 99, 150) // duplicate id, must not replace
	if px, qty := b.BestAsk(1); px != 200 || qty != 2 {
		t.Errorf("best ask = (%d, %d), want (200, 2)", px, qty)
	}
	if b.OrderCount() != 1 {
		t.Errorf("order count = %d, want 1", b.OrderCount())
	}

	b.ApplyDelete(777)
	b.ApplyModify(777, market.SideBuy, 1, 1)
	if px, qty := b.BestAsk(1); px != 200 || qty != 2 {
		t.Errorf("book changed by unknown ids: best ask = (%d, %d)", px, qty)
	}
}

// TestBookModifyAcrossSides moves an order from bid to ask and checks both
// sides reflect the move
func TestBookModifyAcrossSides(t *testing.T) {
	b := newTestBook(t, EngineBTree)

	b.ApplyNew(5, 7, market.SideBuy, 6, 90)
	b.ApplyModify(5, market.SideSell, 6, 95)

	if px, qty := b.BestBid(7); px != 0 || qty != 0 {
		t.Errorf("bid side = (%d, %d), want empty", px, qty)
	}
	if px, qty := b.BestAsk(7); px != 95 || qty != 6 {
		t.Errorf("ask side = (%d, %d), want (95, 6)", px, qty)
	}

	o, ok := b.Order(5)
	if !ok || o.Side != market.SideSell || o.Price != 95 || o.Quantity != 6 {
		t.Errorf("order = %+v ok=%v, want sell 6@95", o, ok)
	}
}

// TestBookSymbolIsolation checks that symbols never bleed into each other
func TestBookSymbolIsolation(t *testing.T) {
	b := newTestBook(t, EngineSkiplist)

	b.ApplyNew(1, 3, market.SideBuy, 5, 50)
	b.ApplyNew(2, 4, market.SideBuy, 9, 60)

	if px, _ := b.BestBid(3); px != 50 {
		t.Errorf("symbol 3 best bid = %d, want 50", px)
	}
	if px, _ := b.BestBid(4); px != 60 {
		t.Errorf("symbol 4 best bid = %d, want 60", px)
	}
	if px, qty := b.BestBid(5); px != 0 || qty != 0 {
		t.Errorf("untouched symbol has a bid: (%d, %d)", px, qty)
	}
}

// TestBookDepth checks per-side level ordering and truncation
func TestBookDepth(t *testing.T) {
	b := newTestBook(t, EngineMap)

	b.ApplyNew(1, 2, market.SideBuy, 1, 10)
	b.ApplyNew(2, 2, market.SideBuy, 2, 12)
	b.ApplyNew(3, 2, market.SideBuy, 3, 11)
	b.ApplyNew(4, 2, market.SideSell, 4, 20)
	b.ApplyNew(5, 2, market.SideSell, 5, 18)

	bids, asks := b.Depth(2, -1)
	if len(bids) != 3 || bids[0].Price != 12 || bids[1].Price != 11 || bids[2].Price != 10 {
		t.Errorf("bids = %+v, want prices [12 11 10]", bids)
	}
	if len(asks) != 2 || asks[0].Price != 18 || asks[1].Price != 20 {
		t.Errorf("asks = %+v, want prices [18 20]", asks)
	}

	bids, _ = b.Depth(2, 1)
	if len(bids) != 1 || bids[0].Price != 12 {
		t.Errorf("bids(1) = %+v, want just 12", bids)
	}
}
