package feed

import (
	"reflect"
	"testing"

	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/market"
)

type recordingHandler struct {
	news    []NewOrder
	deletes []DeleteOrder
	mods    []ModifyOrder
	fills   []Fill
}

func (h *recordingHandler) HandleNewOrder(m NewOrder)       { h.news = append(h.news, m) }
func (h *recordingHandler) HandleDeleteOrder(m DeleteOrder) { h.deletes = append(h.deletes, m) }
func (h *recordingHandler) HandleModifyOrder(m ModifyOrder) { h.mods = append(h.mods, m) }
func (h *recordingHandler) HandleFill(m Fill)               { h.fills = append(h.fills, m) }

// TestMDDecoderDispatch verifies each order event type reaches the handler
// with decoded fields intact
func TestMDDecoderDispatch(t *testing.T) {
	h := &recordingHandler{}
	d := NewMDDecoder(h, log.NewNopLogger())

	d.Process((&NewOrder{OrderID: 1, Symbol: 3, Side: market.SideBuy, Quantity: 5, Price: 50}).Encode(1, 100))
	d.Process((&ModifyOrder{OrderID: 1, Side: market.SideBuy, Quantity: 4, Price: 52}).Encode(2, 101))
	d.Process((&DeleteOrder{OrderID: 1}).Encode(3, 102))

	if len(h.news) != 1 || len(h.mods) != 1 || len(h.deletes) != 1 {
		t.Fatalf("dispatch counts = %d/%d/%d, want 1/1/1", len(h.news), len(h.mods), len(h.deletes))
	}
	if h.news[0].Quantity != 5 || h.mods[0].Price != 52 || h.deletes[0].OrderID != 1 {
		t.Errorf("decoded events: new=%+v mod=%+v del=%+v", h.news[0], h.mods[0], h.deletes[0])
	}
	if got := d.Stats().Packets.Load(); got != 3 {
		t.Errorf("packets = %d, want 3", got)
	}
	if got := d.Stats().Dropped.Load(); got != 0 {
		t.Errorf("dropped = %d, want 0", got)
	}
}

// TestMDDecoderNonBookTypes verifies heartbeats, trades, trade summaries and
// snapshot info are consumed without reaching the handler
func TestMDDecoderNonBookTypes(t *testing.T) {
	h := &recordingHandler{}
	d := NewMDDecoder(h, log.NewNopLogger())

	d.Process(EncodeMDHeartbeat(1, 100))
	d.Process((&Trade{OrderID: 4, Quantity: 2, Price: 55}).Encode(2, 101))
	d.Process((&TradeSummary{Symbol: 3, AggressorSide: market.SideBuy, TotalQuantity: 9, LastPrice: 55}).Encode(3, 102))
	d.Process((&SnapshotInfo{Symbol: 3, BidCount: 1, AskCount: 2, LastMDSeqNum: 3}).Encode(4, 103))

	if len(h.news)+len(h.deletes)+len(h.mods) != 0 {
		t.Errorf("non-book types reached the handler: %+v", h)
	}
	if got := d.Stats().Dropped.Load(); got != 0 {
		t.Errorf("dropped = %d, want 0", got)
	}
}

// TestMDDecoderDropsMalformed verifies bad magic, short headers and short
// bodies are dropped without dispatch
func TestMDDecoderDropsMalformed(t *testing.T) {
	h := &recordingHandler{}
	d := NewMDDecoder(h, log.NewNopLogger())

	// Bad magic
	bad := (&NewOrder{OrderID: 1, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 1}).Encode(1, 1)
	bad[0] ^= 0xFF
	d.Process(bad)

	// Short header
	d.Process(make([]byte, MDHeaderSize-5))

	// Valid header, truncated body
	short := (&NewOrder{OrderID: 2, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 1}).Encode(2, 2)
	d.Process(short[:NewOrderSize-3])

	if len(h.news) != 0 {
		t.Errorf("malformed datagrams dispatched: %+v", h.news)
	}
	if got := d.Stats().Dropped.Load(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}
}

// TestMDDecoderUnknownTypeSkipped verifies unknown message types are skipped
// without counting as drops
func TestMDDecoderUnknownTypeSkipped(t *testing.T) {
	h := &recordingHandler{}
	d := NewMDDecoder(h, log.NewNopLogger())

	b := EncodeMDHeartbeat(1, 100)
	b[22] = 250
	d.Process(b)

	if got := d.Stats().Dropped.Load(); got != 0 {
		t.Errorf("dropped = %d, want 0", got)
	}
	if got := d.Stats().Packets.Load(); got != 1 {
		t.Errorf("packets = %d, want 1", got)
	}
}

// TestSequenceGapObservedAndTolerated verifies a gap is counted but the
// gapped message is still processed and the cursor advances
func TestSequenceGapObservedAndTolerated(t *testing.T) {
	h := &recordingHandler{}
	d := NewMDDecoder(h, log.NewNopLogger())

	d.Process((&NewOrder{OrderID: 1, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 10}).Encode(1, 1))
	d.Process((&NewOrder{OrderID: 2, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 11}).Encode(2, 2))
	// seq 3 and 4 lost
	d.Process((&NewOrder{OrderID: 3, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 12}).Encode(5, 5))
	// next in sequence after the gap: no second gap
	d.Process((&NewOrder{OrderID: 4, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 13}).Encode(6, 6))

	if got := d.Stats().Gaps.Load(); got != 1 {
		t.Errorf("gaps = %d, want 1", got)
	}
	if len(h.news) != 4 {
		t.Errorf("dispatched = %d, want 4 (gapped message still processed)", len(h.news))
	}
}

// TestFirstSequenceIsBaseline verifies the first observed sequence sets the
// baseline without counting a gap
func TestFirstSequenceIsBaseline(t *testing.T) {
	d := NewMDDecoder(&recordingHandler{}, log.NewNopLogger())
	d.Process(EncodeMDHeartbeat(1000, 1))
	if got := d.Stats().Gaps.Load(); got != 0 {
		t.Errorf("gaps = %d, want 0 on first message", got)
	}
}

// TestGapReplayEquivalence verifies the dispatched events for a gapped feed
// equal those of an ungapped replay of the surviving messages
func TestGapReplayEquivalence(t *testing.T) {
	msgs := []NewOrder{
		{OrderID: 1, Symbol: 1, Side: market.SideBuy, Quantity: 1, Price: 10},
		{OrderID: 2, Symbol: 1, Side: market.SideSell, Quantity: 2, Price: 20},
		{OrderID: 3, Symbol: 2, Side: market.SideBuy, Quantity: 3, Price: 30},
	}

	gapped := &recordingHandler{}
	d1 := NewMDDecoder(gapped, log.NewNopLogger())
	seqs := []uint32{1, 7, 20}
	for i := range msgs {
		d1.Process(msgs[i].Encode(seqs[i], uint64(i)))
	}

	contiguous := &recordingHandler{}
	d2 := NewMDDecoder(contiguous, log.NewNopLogger())
	for i := range msgs {
		d2.Process(msgs[i].Encode(uint32(i+1), uint64(i)))
	}

	if !reflect.DeepEqual(gapped.news, contiguous.news) {
		t.Errorf("gapped dispatch %+v != contiguous dispatch %+v", gapped.news, contiguous.news)
	}
	if d1.Stats().Gaps.Load() != 2 {
		t.Errorf("gapped decoder gaps = %d, want 2", d1.Stats().Gaps.Load())
	}
}

// TestClearingDecoderFill verifies fills are dispatched and malformed
// clearing datagrams are dropped
func TestClearingDecoderFill(t *testing.T) {
	h := &recordingHandler{}
	d := NewClearingDecoder(h, log.NewNopLogger())

	d.Process((&Fill{ClientID: 7, Symbol: 1, Quantity: 10, Price: 100, Side: market.SideBuy}).Encode(1))
	d.Process(EncodeClearingHeartbeat(2))

	bad := (&Fill{ClientID: 8, Symbol: 1, Quantity: 1, Price: 1, Side: market.SideSell}).Encode(3)
	bad[3] ^= 0x1 // corrupt magic
	d.Process(bad)

	if len(h.fills) != 1 {
		t.Fatalf("fills dispatched = %d, want 1", len(h.fills))
	}
	f := h.fills[0]
	if f.ClientID != 7 || f.Symbol != 1 || f.Quantity != 10 || f.Price != 100 || f.Side != market.SideBuy {
		t.Errorf("fill = %+v", f)
	}
	if got := d.Stats().Dropped.Load(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
}
