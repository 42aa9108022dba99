package etf

import (
	"fmt"
	"strings"
	"sync"

	"cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/clearing"
	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// Conversion kinds recorded in the ledger history.
const (
	TypeCreate = "create"
	TypeRedeem = "redeem"
)

// Record is one committed conversion.
type Record struct {
	Type     string `json:"type"`
	ClientID uint32 `json:"client_id"`
	Amount   int64  `json:"amount"`
}

// Ledger overlays synthetic adjustments from ETF create/redeem on top of
// the cleared positions. The effective position of a (client, symbol) is
// the cleared position plus the adjustment; fills keep folding into the
// clearing store underneath committed conversions.
//
// Lock order: the ledger mutex is always taken before the clearing store's
// lock, never the reverse. The store has no path back into the ledger.
type Ledger struct {
	mu          sync.Mutex
	store       *clearing.Store
	adjustments map[clearing.Key]int64
	history     []Record

	logger  log.Logger
	metrics *metrics.Collector
}

// NewLedger creates an empty ledger over the given clearing store.
func NewLedger(store *clearing.Store, logger log.Logger) *Ledger {
	return &Ledger{
		store:       store,
		adjustments: make(map[clearing.Key]int64),
		logger:      logger.With("module", "etf"),
		metrics:     metrics.GetCollector(),
	}
}

// effective reads the composite position with l.mu held.
func (l *Ledger) effective(clientID, symbol uint32) int64 {
	return l.store.Position(clientID, symbol) + l.adjustments[clearing.Key{ClientID: clientID, Symbol: symbol}]
}

// EffectivePosition returns the cleared position plus conversion
// adjustments for one (client, symbol).
func (l *Ledger) EffectivePosition(clientID, symbol uint32) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effective(clientID, symbol)
}

// Positions returns every non-zero effective position for a client,
// keyed by symbol id.
func (l *Ledger) Positions(clientID uint32) map[uint32]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[uint32]int64)
	for _, sym := range market.All {
		if pos := l.effective(clientID, sym.ID); pos != 0 {
			out[sym.ID] = pos
		}
	}
	return out
}

// Create exchanges amount units of every underlying for amount ETF units.
// The whole basket is checked against effective positions first; on any
// deficit nothing moves. The returned message is the human-readable
// outcome for the API surface.
func (l *Ledger) Create(clientID uint32, amount int64) (string, error) {
	if amount <= 0 {
		l.metrics.RecordConversion(TypeCreate, "rejected")
		return "", ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var deficits []string
	for _, sym := range market.Underlyings {
		if have := l.effective(clientID, sym); have < amount {
			deficits = append(deficits, fmt.Sprintf("%s: have %d, need %d", market.Ticker(sym), have, amount))
		}
	}
	if len(deficits) > 0 {
		l.metrics.RecordConversion(TypeCreate, "rejected")
		return "", errors.Wrap(ErrInsufficient, strings.Join(deficits, ", "))
	}

	for _, sym := range market.Underlyings {
		l.adjust(clientID, sym, -amount)
	}
	l.adjust(clientID, market.ETFSymbol, amount)
	l.commit(Record{Type: TypeCreate, ClientID: clientID, Amount: amount})

	return fmt.Sprintf("Created %d %s from underlying positions", amount, market.Ticker(market.ETFSymbol)), nil
}

// Redeem exchanges amount ETF units back into amount units of every
// underlying. Permanent once committed, like Create.
func (l *Ledger) Redeem(clientID uint32, amount int64) (string, error) {
	if amount <= 0 {
		l.metrics.RecordConversion(TypeRedeem, "rejected")
		return "", ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	etfTicker := market.Ticker(market.ETFSymbol)
	if have := l.effective(clientID, market.ETFSymbol); have < amount {
		l.metrics.RecordConversion(TypeRedeem, "rejected")
		return "", errors.Wrapf(ErrInsufficient, "%s: have %d, need %d", etfTicker, have, amount)
	}

	l.adjust(clientID, market.ETFSymbol, -amount)
	for _, sym := range market.Underlyings {
		l.adjust(clientID, sym, amount)
	}
	l.commit(Record{Type: TypeRedeem, ClientID: clientID, Amount: amount})

	return fmt.Sprintf("Redeemed %d %s to underlying positions", amount, etfTicker), nil
}

// adjust moves one (client, symbol) adjustment, dropping zero entries so
// the map only carries live overlays. Callers must hold l.mu.
func (l *Ledger) adjust(clientID, symbol uint32, delta int64) {
	key := clearing.Key{ClientID: clientID, Symbol: symbol}
	next := l.adjustments[key] + delta
	if next == 0 {
		delete(l.adjustments, key)
		return
	}
	l.adjustments[key] = next
}

// commit appends a history record. Callers must hold l.mu.
func (l *Ledger) commit(rec Record) {
	l.history = append(l.history, rec)
	l.metrics.RecordConversion(rec.Type, "ok")
	l.metrics.HistoryLength.Set(float64(len(l.history)))
	l.logger.Info("conversion committed",
		"type", rec.Type,
		"client_id", rec.ClientID,
		"amount", rec.Amount,
	)
}

// History returns every committed conversion in commit order.
func (l *Ledger) History() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.history))
	copy(out, l.history)
	return out
}

// AdjustmentsAll returns a copy of every non-zero adjustment. Snapshot
// composition reads this after the clearing tallies; the ledger lock is
// held only for the copy.
func (l *Ledger) AdjustmentsAll() map[clearing.Key]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[clearing.Key]int64, len(l.adjustments))
	for k, v := range l.adjustments {
		out[k] = v
	}
	return out
}
