package websocket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"

	"github.com/openalpha/etf-service/clearing"
	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// DefaultFrameInterval is how often state frames go out.
const DefaultFrameInterval = 100 * time.Millisecond

// SymbolQuote is the top of book for one symbol. Zero means that side is
// empty.
type SymbolQuote struct {
	Symbol  uint32 `json:"symbol"`
	BestBid int32  `json:"best_bid"`
	BestAsk int32  `json:"best_ask"`
}

// PositionRow is one (client, symbol) line of the frame.
type PositionRow struct {
	ClientID uint32  `json:"client_id"`
	Symbol   uint32  `json:"symbol"`
	Position int64   `json:"position"`
	Pnl      float64 `json:"pnl"`
	Volume   int64   `json:"volume"`
}

// Frame is the state snapshot subscribers receive. Snapshot always carries
// every known symbol; Positions carries only rows with any activity.
type Frame struct {
	Timestamp uint64        `json:"timestamp"`
	Snapshot  []SymbolQuote `json:"snapshot"`
	Positions []PositionRow `json:"positions"`
}

// BookSource supplies top-of-book quotes.
type BookSource interface {
	BestBid(symbol uint32) (int32, int64)
	BestAsk(symbol uint32) (int32, int64)
}

// TallySource supplies folded clearing tallies.
type TallySource interface {
	TalliesAll() map[clearing.Key]clearing.Tally
}

// AdjustmentSource supplies conversion adjustments keyed like tallies.
type AdjustmentSource interface {
	AdjustmentsAll() map[clearing.Key]int64
}

// Broadcaster assembles a frame on a fixed cadence and hands it to the
// hub. Frame assembly reads quotes, then tallies, then adjustments; each
// source locks internally and nothing here holds two sources at once, so
// a frame can interleave with concurrent fills. Subscribers converge on
// the next tick.
type Broadcaster struct {
	hub         *Hub
	book        BookSource
	tallies     TallySource
	adjustments AdjustmentSource

	interval time.Duration
	fee      math.LegacyDec

	stopCh chan struct{}
	wg     sync.WaitGroup

	logger  log.Logger
	metrics *metrics.Collector
}

// NewBroadcaster creates a broadcaster. fee is the per-unit volume charge
// applied to every row's pnl.
func NewBroadcaster(hub *Hub, book BookSource, tallies TallySource, adjustments AdjustmentSource, interval time.Duration, fee math.LegacyDec, logger log.Logger) *Broadcaster {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	if fee.IsNil() {
		fee = math.LegacyZeroDec()
	}
	return &Broadcaster{
		hub:         hub,
		book:        book,
		tallies:     tallies,
		adjustments: adjustments,
		interval:    interval,
		fee:         fee,
		stopCh:      make(chan struct{}),
		logger:      logger.With("module", "broadcaster"),
		metrics:     metrics.GetCollector(),
	}
}

// Start launches the frame loop.
func (b *Broadcaster) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.run(ctx)
}

// Stop terminates the frame loop and waits for it to exit.
func (b *Broadcaster) Stop() {
	close(b.stopCh)
	b.wg.Wait()
}

func (b *Broadcaster) run(ctx context.Context) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("frame loop starting", "interval", b.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.publish()
		}
	}
}

// publish builds one frame and broadcasts it.
func (b *Broadcaster) publish() {
	timer := metrics.NewTimer()

	frame := b.BuildFrame()
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("frame marshal failed", "err", err)
		return
	}

	b.hub.Broadcast(data)
	b.metrics.RecordFrame(timer.ElapsedMs())
}

// BuildFrame assembles the current state snapshot.
func (b *Broadcaster) BuildFrame() Frame {
	// Quotes for every symbol, kept for marking positions below.
	quotes := make([]SymbolQuote, 0, len(market.All))
	bids := make(map[uint32]int32, len(market.All))
	asks := make(map[uint32]int32, len(market.All))
	for _, sym := range market.All {
		bid, _ := b.book.BestBid(sym.ID)
		ask, _ := b.book.BestAsk(sym.ID)
		quotes = append(quotes, SymbolQuote{Symbol: sym.ID, BestBid: bid, BestAsk: ask})
		bids[sym.ID] = bid
		asks[sym.ID] = ask
		b.metrics.SetBBO(sym.Ticker, bid, ask)
	}

	tallies := b.tallies.TalliesAll()
	adjustments := b.adjustments.AdjustmentsAll()

	// Row set is the union: a client whose only activity is a conversion
	// has no tally yet still owes the frame its ETF position.
	keys := make(map[clearing.Key]struct{}, len(tallies)+len(adjustments))
	for k := range tallies {
		keys[k] = struct{}{}
	}
	for k := range adjustments {
		keys[k] = struct{}{}
	}

	rows := make([]PositionRow, 0, len(keys))
	for k := range keys {
		t := tallies[k]
		position := t.Position + adjustments[k]
		pnl := b.rowPnl(t, position, bids[k.Symbol], asks[k.Symbol])

		if position == 0 && pnl == 0 && t.Volume == 0 {
			continue
		}

		rows = append(rows, PositionRow{
			ClientID: k.ClientID,
			Symbol:   k.Symbol,
			Position: position,
			Pnl:      pnl,
			Volume:   t.Volume,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ClientID != rows[j].ClientID {
			return rows[i].ClientID < rows[j].ClientID
		}
		return rows[i].Symbol < rows[j].Symbol
	})

	return Frame{
		Timestamp: uint64(time.Now().UnixNano()),
		Snapshot:  quotes,
		Positions: rows,
	}
}

// rowPnl marks a position against the book and charges the volume fee.
// Longs mark against the bid, shorts against the ask; an empty side leaves
// the position unmarked. The fee applies whether or not a mark exists.
func (b *Broadcaster) rowPnl(t clearing.Tally, position int64, bid, ask int32) float64 {
	pnl := math.LegacyNewDec(t.RawPnl)

	switch {
	case position > 0 && bid > 0:
		pnl = pnl.Add(math.LegacyNewDec(int64(bid)).MulInt64(position))
	case position < 0 && ask > 0:
		pnl = pnl.Add(math.LegacyNewDec(int64(ask)).MulInt64(position))
	}

	pnl = pnl.Sub(b.fee.MulInt64(t.Volume))

	f, _ := pnl.Float64()
	return f
}
