package feed

import (
	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// MDHandler consumes decoded order events. Trades, trade summaries and
// snapshot info never reach the handler; they are decoded for telemetry.
type MDHandler interface {
	HandleNewOrder(NewOrder)
	HandleDeleteOrder(DeleteOrder)
	HandleModifyOrder(ModifyOrder)
}

// MDDecoder validates and dispatches market data datagrams. Process must be
// called from a single goroutine; the sequence cursor is not synchronized.
type MDDecoder struct {
	handler MDHandler
	logger  log.Logger
	metrics *metrics.Collector

	lastSeq uint32
	stats   Stats
}

// NewMDDecoder creates a decoder dispatching into handler.
func NewMDDecoder(handler MDHandler, logger log.Logger) *MDDecoder {
	return &MDDecoder{
		handler: handler,
		logger:  logger.With("module", "feed/md"),
		metrics: metrics.GetCollector(),
	}
}

// Stats exposes the decoder's datagram accounting.
func (d *MDDecoder) Stats() *Stats {
	return &d.stats
}

// Process decodes one datagram. Malformed datagrams are counted and dropped;
// nothing propagates to the handler unless it decoded cleanly.
func (d *MDDecoder) Process(b []byte) {
	d.stats.Packets.Add(1)
	d.stats.Bytes.Add(uint64(len(b)))
	d.metrics.RecordPacket(FeedMD, len(b))

	var hdr MDHeader
	if err := hdr.Decode(b); err != nil {
		d.drop(dropShortHeader)
		return
	}
	if hdr.Magic != MDMagic {
		d.drop(dropBadMagic)
		return
	}
	d.observeSeq(hdr.SeqNum)

	switch hdr.MsgType {
	case MDTypeHeartbeat:
		d.metrics.RecordMessage(FeedMD, "heartbeat")

	case MDTypeNewOrder:
		var m NewOrder
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "new_order")
		d.handler.HandleNewOrder(m)

	case MDTypeDeleteOrder:
		var m DeleteOrder
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "delete_order")
		d.handler.HandleDeleteOrder(m)

	case MDTypeModifyOrder:
		var m ModifyOrder
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "modify_order")
		d.handler.HandleModifyOrder(m)

	case MDTypeTrade:
		var m Trade
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "trade")

	case MDTypeTradeSummary:
		var m TradeSummary
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "trade_summary")
		d.metrics.RecordTradeSummary(market.Ticker(m.Symbol), m.TotalQuantity, m.LastPrice)

	case MDTypeSnapshotInfo:
		var m SnapshotInfo
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedMD, "snapshot_info")

	default:
		// Unknown types are skipped, not dropped: the feed may grow.
		d.metrics.RecordMessage(FeedMD, "unknown")
	}
}

func (d *MDDecoder) observeSeq(seq uint32) {
	if d.lastSeq != 0 && seq != d.lastSeq+1 {
		d.stats.Gaps.Add(1)
		d.metrics.RecordSequenceGap(FeedMD)
		d.logger.Warn("sequence gap", "expected", d.lastSeq+1, "received", seq)
	}
	d.lastSeq = seq
}

func (d *MDDecoder) drop(reason string) {
	d.stats.Dropped.Add(1)
	d.metrics.RecordDrop(FeedMD, reason)
}
