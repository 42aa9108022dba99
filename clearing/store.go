package clearing

import (
	"sync"

	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// Key identifies one (client, symbol) tally.
type Key struct {
	ClientID uint32
	Symbol   uint32
}

// Tally is the folded clearing state for one (client, symbol). RawPnl is
// derived from the notionals but stored so readers get all five fields from
// one lock acquisition.
type Tally struct {
	Position     int64
	BuyNotional  int64
	SellNotional int64
	Volume       int64
	RawPnl       int64
}

// Store folds fills into per-(client, symbol) tallies. Single writer (the
// clearing receiver), many readers. Notionals are int64; the sum of
// price*quantity saturating that is beyond any session this service sees.
type Store struct {
	mu      sync.RWMutex
	tallies map[Key]*Tally
	clients map[uint32]struct{}
	metrics *metrics.Collector
}

// NewStore creates an empty position store.
func NewStore() *Store {
	return &Store{
		tallies: make(map[Key]*Tally),
		clients: make(map[uint32]struct{}),
		metrics: metrics.GetCollector(),
	}
}

// ApplyFill folds one fill into its tally. Buys raise the position and buy
// notional; anything else is a sell.
func (s *Store) ApplyFill(clientID, symbol, quantity uint32, price int32, side market.Side) {
	qty := int64(quantity)
	notional := int64(price) * qty

	s.mu.Lock()
	defer s.mu.Unlock()

	k := Key{ClientID: clientID, Symbol: symbol}
	t, ok := s.tallies[k]
	if !ok {
		t = &Tally{}
		s.tallies[k] = t
		if _, seen := s.clients[clientID]; !seen {
			s.clients[clientID] = struct{}{}
			s.metrics.ActiveClients.Set(float64(len(s.clients)))
		}
	}

	if side == market.SideBuy {
		t.Position += qty
		t.BuyNotional += notional
	} else {
		t.Position -= qty
		t.SellNotional += notional
	}
	t.Volume += qty
	t.RawPnl = t.SellNotional - t.BuyNotional
}

// Position returns the net position for one (client, symbol). Reads never
// materialize empty tallies.
func (s *Store) Position(clientID, symbol uint32) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tallies[Key{ClientID: clientID, Symbol: symbol}]; ok {
		return t.Position
	}
	return 0
}

// Tally returns a copy of one (client, symbol) tally.
func (s *Store) Tally(clientID, symbol uint32) Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tallies[Key{ClientID: clientID, Symbol: symbol}]; ok {
		return *t
	}
	return Tally{}
}

// TalliesAll returns a copy of every tally. Per-tuple consistent; the caller
// composes wider consistency if it needs it.
func (s *Store) TalliesAll() map[Key]Tally {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]Tally, len(s.tallies))
	for k, t := range s.tallies {
		out[k] = *t
	}
	return out
}

// PositionsAll returns every net position.
func (s *Store) PositionsAll() map[Key]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]int64, len(s.tallies))
	for k, t := range s.tallies {
		out[k] = t.Position
	}
	return out
}

// RawPnlAll returns every raw pnl.
func (s *Store) RawPnlAll() map[Key]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]int64, len(s.tallies))
	for k, t := range s.tallies {
		out[k] = t.RawPnl
	}
	return out
}

// VolumeAll returns every volume tally.
func (s *Store) VolumeAll() map[Key]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Key]int64, len(s.tallies))
	for k, t := range s.tallies {
		out[k] = t.Volume
	}
	return out
}

// ClientIDs returns the set of clients with any cleared activity.
func (s *Store) ClientIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint32, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	return out
}
