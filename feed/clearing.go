package feed

import (
	"cosmossdk.io/log"

	"github.com/openalpha/etf-service/market"
	"github.com/openalpha/etf-service/metrics"
)

// ClearingHandler consumes decoded fills.
type ClearingHandler interface {
	HandleFill(Fill)
}

// ClearingDecoder validates and dispatches clearing datagrams. Process must
// be called from a single goroutine.
type ClearingDecoder struct {
	handler ClearingHandler
	logger  log.Logger
	metrics *metrics.Collector

	lastSeq uint32
	stats   Stats
}

// NewClearingDecoder creates a decoder dispatching into handler.
func NewClearingDecoder(handler ClearingHandler, logger log.Logger) *ClearingDecoder {
	return &ClearingDecoder{
		handler: handler,
		logger:  logger.With("module", "feed/clearing"),
		metrics: metrics.GetCollector(),
	}
}

// Stats exposes the decoder's datagram accounting.
func (d *ClearingDecoder) Stats() *Stats {
	return &d.stats
}

// Process decodes one datagram. Malformed datagrams are counted and dropped.
func (d *ClearingDecoder) Process(b []byte) {
	d.stats.Packets.Add(1)
	d.stats.Bytes.Add(uint64(len(b)))
	d.metrics.RecordPacket(FeedClearing, len(b))

	var hdr ClearingHeader
	if err := hdr.Decode(b); err != nil {
		d.drop(dropShortHeader)
		return
	}
	if hdr.Magic != ClearingMagic {
		d.drop(dropBadMagic)
		return
	}
	d.observeSeq(hdr.SeqNum)

	switch hdr.MsgType {
	case ClearingTypeHeartbeat:
		d.metrics.RecordMessage(FeedClearing, "heartbeat")

	case ClearingTypeFill:
		var m Fill
		if m.Decode(b) != nil {
			d.drop(dropShortBody)
			return
		}
		d.metrics.RecordMessage(FeedClearing, "fill")
		d.metrics.RecordFill(m.Side.String(), market.Ticker(m.Symbol), m.Quantity)
		d.handler.HandleFill(m)

	default:
		d.metrics.RecordMessage(FeedClearing, "unknown")
	}
}

func (d *ClearingDecoder) observeSeq(seq uint32) {
	if d.lastSeq != 0 && seq != d.lastSeq+1 {
		d.stats.Gaps.Add(1)
		d.metrics.RecordSequenceGap(FeedClearing)
		d.logger.Warn("sequence gap", "expected", d.lastSeq+1, "received", seq)
	}
	d.lastSeq = seq
}

func (d *ClearingDecoder) drop(reason string) {
	d.stats.Dropped.Add(1)
	d.metrics.RecordDrop(FeedClearing, reason)
}
