package book

import (
	"sync"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// Order is a resting order currently on the book.
type Order struct {
	OrderID  uint64
	Symbol   uint32
	Side     market.Side
	Quantity uint32
	Price    int32
}

// Book tracks every resting order across all symbols and maintains
// aggregated price levels per (symbol, side). All mutations and queries
// are safe for concurrent use; the market data receiver writes while
// the REST and snapshot paths read.
type Book struct {
	mu      sync.RWMutex
	orders  map[uint64]*Order
	bids    map[uint32]Engine
	asks    map[uint32]Engine
	newSide func(desc bool) Engine

	logger  log.Logger
	metrics *metrics.Collector
}

// New builds an empty book using the named level engine.
func New(engine string, logger log.Logger) (*Book, error) {
	factory, err := engineFactory(engine)
	if err != nil {
		return nil, err
	}
	return &Book{
		orders:  make(map[uint64]*Order),
		bids:    make(map[uint32]Engine),
		asks:    make(map[uint32]Engine),
		newSide: factory,
		logger:  logger.With("module", "book"),
		metrics: metrics.GetCollector(),
	}, nil
}

// side returns the level engine for one side of a symbol, creating it
// on first use. Callers must hold b.mu.
func (b *Book) side(symbol uint32, side market.Side) Engine {
	m := b.asks
	desc := false
	if side == market.SideBuy {
		m = b.bids
		desc = true
	}
	e, ok := m[symbol]
	if !ok {
		e = b.newSide(desc)
		m[symbol] = e
	}
	return e
}

// ApplyNew admits a resting order. A duplicate order id is ignored; the
// first sighting wins.
func (b *Book) ApplyNew(orderID uint64, symbol uint32, side market.Side, quantity uint32, price int32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[orderID]; ok {
		b.metrics.RecordBookOp("duplicate_new")
		b.logger.Debug("duplicate order id ignored", "order_id", orderID)
		return
	}
	b.orders[orderID] = &Order{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	}
	b.side(symbol, side).Add(price, int64(quantity))
	b.metrics.RecordBookOp("new")
	b.metrics.BookOrders.Set(float64(len(b.orders)))
}

// ApplyDelete removes a resting order. Unknown ids are ignored.
func (b *Book) ApplyDelete(orderID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		b.metrics.RecordBookOp("delete_unknown")
		b.logger.Debug("delete for unknown order id", "order_id", orderID)
		return
	}
	b.side(o.Symbol, o.Side).Reduce(o.Price, int64(o.Quantity))
	delete(b.orders, orderID)
	b.metrics.RecordBookOp("delete")
	b.metrics.BookOrders.Set(float64(len(b.orders)))
}

// ApplyModify rewrites a resting order's side, quantity and price. The
// order keeps its id but loses queue position: the old contribution is
// removed and the new one added. Unknown ids are ignored.
func (b *Book) ApplyModify(orderID uint64, side market.Side, quantity uint32, price int32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		b.metrics.RecordBookOp("modify_unknown")
		b.logger.Debug("modify for unknown order id", "order_id", orderID)
		return
	}
	b.side(o.Symbol, o.Side).Reduce(o.Price, int64(o.Quantity))
	o.Side = side
	o.Quantity = quantity
	o.Price = price
	b.side(o.Symbol, o.Side).Add(o.Price, int64(o.Quantity))
	b.metrics.RecordBookOp("modify")
}

// BestBid returns the highest bid level for a symbol, or (0, 0) when
// the side is empty.
func (b *Book) BestBid(symbol uint32) (int32, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e, ok := b.bids[symbol]; ok {
		if lvl, ok := e.Best(); ok {
			return lvl.Price, lvl.Quantity
		}
	}
	return 0, 0
}

// BestAsk returns the lowest ask level for a symbol, or (0, 0) when the
// side is empty.
func (b *Book) BestAsk(symbol uint32) (int32, int64) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e, ok := b.asks[symbol]; ok {
		if lvl, ok := e.Best(); ok {
			return lvl.Price, lvl.Quantity
		}
	}
	return 0, 0
}

// Depth returns up to n aggregated levels per side, best first. n < 0
// returns every level.
func (b *Book) Depth(symbol uint32, n int) (bids, asks []Level) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e, ok := b.bids[symbol]; ok {
		bids = e.Levels(n)
	}
	if e, ok := b.asks[symbol]; ok {
		asks = e.Levels(n)
	}
	return bids, asks
}

// Order returns a copy of the resting order with the given id.
func (b *Book) Order(orderID uint64) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// OrderCount returns the number of resting orders across all symbols.
func (b *Book) OrderCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
