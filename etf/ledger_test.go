package etf

import (
	"errors"
	"strings"
	"testing"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/clearing"
	"github.com/openalpha/etf-service/market"
)

// seedUnderlyings gives a client a cleared long position in every basket
// symbol via buy fills
func seedUnderlyings(s *clearing.Store, clientID uint32, qty uint32) {
	for _, sym := range market.Underlyings {
		s.ApplyFill(clientID, sym, qty, 100, market.SideBuy)
	}
}

// TestCreateRedeemRoundTrip converts basket units to ETF units and back,
// checking effective positions at every step
func TestCreateRedeemRoundTrip(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 5, 10)

	msg, err := ledger.Create(5, 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if msg != "Created 3 UNDY from underlying positions" {
		t.Errorf("create message = %q", msg)
	}
	for _, sym := range market.Underlyings {
		if got := ledger.EffectivePosition(5, sym); got != 7 {
			t.Errorf("%s effective = %d, want 7", market.Ticker(sym), got)
		}
	}
	if got := ledger.EffectivePosition(5, market.ETFSymbol); got != 3 {
		t.Errorf("UNDY effective = %d, want 3", got)
	}

	msg, err = ledger.Redeem(5, 3)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if msg != "Redeemed 3 UNDY to underlying positions" {
		t.Errorf("redeem message = %q", msg)
	}
	for _, sym := range market.Underlyings {
		if got := ledger.EffectivePosition(5, sym); got != 10 {
			t.Errorf("%s effective after redeem = %d, want 10", market.Ticker(sym), got)
		}
	}
	if got := ledger.EffectivePosition(5, market.ETFSymbol); got != 0 {
		t.Errorf("UNDY effective after redeem = %d, want 0", got)
	}

	hist := ledger.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0] != (Record{Type: TypeCreate, ClientID: 5, Amount: 3}) {
		t.Errorf("history[0] = %+v", hist[0])
	}
	if hist[1] != (Record{Type: TypeRedeem, ClientID: 5, Amount: 3}) {
		t.Errorf("history[1] = %+v", hist[1])
	}
}

// TestCreateInsufficientIsAtomic drains one basket symbol and checks that a
// failed create names the deficit and moves nothing
func TestCreateInsufficientIsAtomic(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 7, 10)
	// short exactly one symbol: 10 bought, 9 sold leaves 1
	store.ApplyFill(7, market.Underlyings[0], 9, 100, market.SideSell)

	_, err := ledger.Create(7, 3)
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
	deficient := market.Ticker(market.Underlyings[0])
	if !strings.Contains(err.Error(), deficient+": have 1, need 3") {
		t.Errorf("error %q does not enumerate %s deficit", err.Error(), deficient)
	}
	for _, sym := range market.Underlyings[1:] {
		if strings.Contains(err.Error(), market.Ticker(sym)) {
			t.Errorf("error %q names sufficient symbol %s", err.Error(), market.Ticker(sym))
		}
	}

	// nothing moved
	if got := ledger.EffectivePosition(7, market.ETFSymbol); got != 0 {
		t.Errorf("UNDY effective = %d, want 0", got)
	}
	if got := ledger.EffectivePosition(7, market.Underlyings[1]); got != 10 {
		t.Errorf("untouched symbol effective = %d, want 10", got)
	}
	if len(ledger.History()) != 0 {
		t.Error("failed create reached history")
	}
}

// TestDeficitEnumerationOrder checks deficits list in basket order
func TestDeficitEnumerationOrder(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	// client has nothing at all
	_, err := ledger.Create(1, 2)
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}

	msg := err.Error()
	last := -1
	for _, sym := range market.Underlyings {
		idx := strings.Index(msg, market.Ticker(sym))
		if idx < 0 {
			t.Fatalf("error %q missing %s", msg, market.Ticker(sym))
		}
		if idx < last {
			t.Fatalf("deficits out of basket order in %q", msg)
		}
		last = idx
	}
}

// TestInvalidAmounts rejects zero and negative conversion amounts
func TestInvalidAmounts(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 2, 10)

	for _, amount := range []int64{0, -1} {
		if _, err := ledger.Create(2, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("create(%d) err = %v, want ErrInvalidAmount", amount, err)
		}
		if _, err := ledger.Redeem(2, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("redeem(%d) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if len(ledger.History()) != 0 {
		t.Error("invalid conversions reached history")
	}
}

// TestRedeemInsufficient rejects redeeming more ETF units than held
func TestRedeemInsufficient(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 3, 5)

	if _, err := ledger.Create(3, 2); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := ledger.Redeem(3, 5)
	if !errors.Is(err, ErrInsufficient) {
		t.Fatalf("err = %v, want ErrInsufficient", err)
	}
	if !strings.Contains(err.Error(), "UNDY: have 2, need 5") {
		t.Errorf("error %q does not state the UNDY deficit", err.Error())
	}
	if got := ledger.EffectivePosition(3, market.ETFSymbol); got != 2 {
		t.Errorf("UNDY effective = %d, want 2", got)
	}
}

// TestFillsFoldUnderAdjustments checks that cleared fills arriving after a
// conversion shift the effective position while the adjustment stands
func TestFillsFoldUnderAdjustments(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 9, 10)

	if _, err := ledger.Create(9, 4); err != nil {
		t.Fatalf("create: %v", err)
	}
	sym := market.Underlyings[2]
	if got := ledger.EffectivePosition(9, sym); got != 6 {
		t.Fatalf("effective = %d, want 6", got)
	}

	// more fills keep folding underneath the committed conversion
	store.ApplyFill(9, sym, 5, 120, market.SideBuy)
	if got := ledger.EffectivePosition(9, sym); got != 11 {
		t.Errorf("effective after fill = %d, want 11", got)
	}
	store.ApplyFill(9, sym, 11, 120, market.SideSell)
	if got := ledger.EffectivePosition(9, sym); got != 0 {
		t.Errorf("effective after flatten = %d, want 0", got)
	}
}

// TestPositionsNonZeroOnly checks the per-client position map carries only
// non-zero effective entries
func TestPositionsNonZeroOnly(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())

	store.ApplyFill(4, 1, 10, 50, market.SideBuy)
	store.ApplyFill(4, 2, 10, 50, market.SideBuy)
	store.ApplyFill(4, 2, 10, 60, market.SideSell) // flattens symbol 2

	got := ledger.Positions(4)
	if len(got) != 1 || got[1] != 10 {
		t.Errorf("positions = %v, want map[1:10]", got)
	}
}

// TestAdjustmentsAllCopies checks the adjustment snapshot is detached from
// the live map
func TestAdjustmentsAllCopies(t *testing.T) {
	store := clearing.NewStore()
	ledger := NewLedger(store, log.NewNopLogger())
	seedUnderlyings(store, 6, 10)

	if _, err := ledger.Create(6, 1); err != nil {
		t.Fatalf("create: %v", err)
	}
	snap := ledger.AdjustmentsAll()
	key := clearing.Key{ClientID: 6, Symbol: market.ETFSymbol}
	if snap[key] != 1 {
		t.Fatalf("snapshot adjustment = %d, want 1", snap[key])
	}
	snap[key] = 99
	if got := ledger.EffectivePosition(6, market.ETFSymbol); got != 1 {
		t.Errorf("live ledger mutated through snapshot copy: %d", got)
	}
}
