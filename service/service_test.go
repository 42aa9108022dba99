package service

import (
	"testing"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/book"
	"github.com/openalpha/etf-service/clearing"
	"github.com/openalpha/etf-service/feed"
	"github.com/openalpha/etf-service/market"
)

// TestNewWiresComponents verifies construction succeeds on defaults and
// exposes the wired state
func TestNewWiresComponents(t *testing.T) {
	svc, err := New(DefaultConfig(), log.NewNopLogger())
	if err != nil {
		t.Fatalf("New() error = %v, want nil", err)
	}
	if svc.Store() == nil || svc.Book() == nil || svc.Ledger() == nil {
		t.Fatal("service exposes nil components")
	}
}

// TestNewRejectsUnknownEngine verifies the engine name is checked at
// construction
func TestNewRejectsUnknownEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "rope"
	if _, err := New(cfg, log.NewNopLogger()); err == nil {
		t.Fatal("New() = nil error, want unknown engine failure")
	}
}

// TestNewRejectsInvalidConfig verifies Validate gates construction
func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fee = "free"
	if _, err := New(cfg, log.NewNopLogger()); err == nil {
		t.Fatal("New() = nil error, want invalid config failure")
	}
}

// TestBookEventRouting verifies decoded order events land in the book
func TestBookEventRouting(t *testing.T) {
	bk, err := book.New("map", log.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	h := bookEvents{book: bk}

	h.HandleNewOrder(feed.NewOrder{OrderID: 1, Symbol: 3, Side: market.SideBuy, Quantity: 5, Price: 50})
	h.HandleNewOrder(feed.NewOrder{OrderID: 2, Symbol: 3, Side: market.SideBuy, Quantity: 3, Price: 52})
	if price, qty := bk.BestBid(3); price != 52 || qty != 3 {
		t.Errorf("best bid = (%d, %d), want (52, 3)", price, qty)
	}

	h.HandleModifyOrder(feed.ModifyOrder{OrderID: 1, Side: market.SideBuy, Quantity: 4, Price: 52})
	if price, qty := bk.BestBid(3); price != 52 || qty != 7 {
		t.Errorf("best bid after modify = (%d, %d), want (52, 7)", price, qty)
	}

	h.HandleDeleteOrder(feed.DeleteOrder{OrderID: 2})
	if price, qty := bk.BestBid(3); price != 52 || qty != 4 {
		t.Errorf("best bid after delete = (%d, %d), want (52, 4)", price, qty)
	}
}

// TestFillEventRouting verifies decoded fills land in the position store
func TestFillEventRouting(t *testing.T) {
	store := clearing.NewStore()
	h := storeEvents{store: store}

	h.HandleFill(feed.Fill{ClientID: 7, Symbol: 1, Quantity: 10, Price: 100, Side: market.SideBuy})

	if got := store.Position(7, 1); got != 10 {
		t.Errorf("position = %d, want 10", got)
	}
	tally := store.Tally(7, 1)
	if tally.RawPnl != -1000 {
		t.Errorf("raw pnl = %d, want -1000", tally.RawPnl)
	}
	if tally.Volume != 10 {
		t.Errorf("volume = %d, want 10", tally.Volume)
	}
}
