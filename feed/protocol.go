package feed

import (
	"encoding/binary"

	"github.com/openalpha/etf-service/market"
)

// Wire magic numbers. Both are stable contracts with the exchange.
const (
	// MDMagic is the ASCII bytes "GOIRISH!" read as a little-endian u64.
	MDMagic uint64 = 0x2148534952494F47

	ClearingMagic uint64 = 0x12345678
)

// Market data message types.
const (
	MDTypeHeartbeat    uint8 = 0
	MDTypeNewOrder     uint8 = 1
	MDTypeDeleteOrder  uint8 = 2
	MDTypeModifyOrder  uint8 = 3
	MDTypeTrade        uint8 = 4
	MDTypeTradeSummary uint8 = 5
	MDTypeSnapshotInfo uint8 = 6
)

// Clearing message types.
const (
	ClearingTypeHeartbeat uint8 = 0
	ClearingTypeFill      uint8 = 1
)

// Full message sizes in bytes, header included. Fields are packed with no
// padding on the wire.
const (
	MDHeaderSize     = 23
	NewOrderSize     = MDHeaderSize + 22
	DeleteOrderSize  = MDHeaderSize + 8
	ModifyOrderSize  = MDHeaderSize + 17
	TradeSize        = MDHeaderSize + 16
	TradeSummarySize = MDHeaderSize + 13
	SnapshotInfoSize = MDHeaderSize + 16

	ClearingHeaderSize = 15
	FillSize           = ClearingHeaderSize + 17
)

// MDHeader is the outer frame of every market data message.
type MDHeader struct {
	Magic     uint64
	Length    uint16
	SeqNum    uint32
	Timestamp uint64
	MsgType   uint8
}

// Decode reads the header from the front of a datagram.
func (h *MDHeader) Decode(b []byte) error {
	if len(b) < MDHeaderSize {
		return ErrShortBuffer
	}
	h.Magic = binary.LittleEndian.Uint64(b[0:8])
	h.Length = binary.LittleEndian.Uint16(b[8:10])
	h.SeqNum = binary.LittleEndian.Uint32(b[10:14])
	h.Timestamp = binary.LittleEndian.Uint64(b[14:22])
	h.MsgType = b[22]
	return nil
}

func putMDHeader(b []byte, length uint16, seq uint32, timestamp uint64, msgType uint8) {
	binary.LittleEndian.PutUint64(b[0:8], MDMagic)
	binary.LittleEndian.PutUint16(b[8:10], length)
	binary.LittleEndian.PutUint32(b[10:14], seq)
	binary.LittleEndian.PutUint64(b[14:22], timestamp)
	b[22] = msgType
}

// NewOrder announces a resting order entering the book.
type NewOrder struct {
	OrderID  uint64
	Symbol   uint32
	Side     market.Side
	Quantity uint32
	Price    int32
	Flags    uint8
}

// Decode reads the message body from a full datagram.
func (m *NewOrder) Decode(b []byte) error {
	if len(b) < NewOrderSize {
		return ErrShortBuffer
	}
	b = b[MDHeaderSize:]
	m.OrderID = binary.LittleEndian.Uint64(b[0:8])
	m.Symbol = binary.LittleEndian.Uint32(b[8:12])
	m.Side = market.Side(b[12])
	m.Quantity = binary.LittleEndian.Uint32(b[13:17])
	m.Price = int32(binary.LittleEndian.Uint32(b[17:21]))
	m.Flags = b[21]
	return nil
}

// Encode builds a full datagram. Used by tests and replay tooling.
func (m *NewOrder) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, NewOrderSize)
	putMDHeader(b, NewOrderSize, seq, timestamp, MDTypeNewOrder)
	p := b[MDHeaderSize:]
	binary.LittleEndian.PutUint64(p[0:8], m.OrderID)
	binary.LittleEndian.PutUint32(p[8:12], m.Symbol)
	p[12] = uint8(m.Side)
	binary.LittleEndian.PutUint32(p[13:17], m.Quantity)
	binary.LittleEndian.PutUint32(p[17:21], uint32(m.Price))
	p[21] = m.Flags
	return b
}

// DeleteOrder removes a resting order.
type DeleteOrder struct {
	OrderID uint64
}

func (m *DeleteOrder) Decode(b []byte) error {
	if len(b) < DeleteOrderSize {
		return ErrShortBuffer
	}
	m.OrderID = binary.LittleEndian.Uint64(b[MDHeaderSize : MDHeaderSize+8])
	return nil
}

func (m *DeleteOrder) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, DeleteOrderSize)
	putMDHeader(b, DeleteOrderSize, seq, timestamp, MDTypeDeleteOrder)
	binary.LittleEndian.PutUint64(b[MDHeaderSize:MDHeaderSize+8], m.OrderID)
	return b
}

// ModifyOrder rewrites a resting order's side, quantity and price.
type ModifyOrder struct {
	OrderID  uint64
	Side     market.Side
	Quantity uint32
	Price    int32
}

func (m *ModifyOrder) Decode(b []byte) error {
	if len(b) < ModifyOrderSize {
		return ErrShortBuffer
	}
	b = b[MDHeaderSize:]
	m.OrderID = binary.LittleEndian.Uint64(b[0:8])
	m.Side = market.Side(b[8])
	m.Quantity = binary.LittleEndian.Uint32(b[9:13])
	m.Price = int32(binary.LittleEndian.Uint32(b[13:17]))
	return nil
}

func (m *ModifyOrder) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, ModifyOrderSize)
	putMDHeader(b, ModifyOrderSize, seq, timestamp, MDTypeModifyOrder)
	p := b[MDHeaderSize:]
	binary.LittleEndian.PutUint64(p[0:8], m.OrderID)
	p[8] = uint8(m.Side)
	binary.LittleEndian.PutUint32(p[9:13], m.Quantity)
	binary.LittleEndian.PutUint32(p[13:17], uint32(m.Price))
	return b
}

// Trade reports a single execution against a resting order. Not used for
// top-of-book; decoded for the tape metrics only.
type Trade struct {
	OrderID  uint64
	Quantity uint32
	Price    int32
}

func (m *Trade) Decode(b []byte) error {
	if len(b) < TradeSize {
		return ErrShortBuffer
	}
	b = b[MDHeaderSize:]
	m.OrderID = binary.LittleEndian.Uint64(b[0:8])
	m.Quantity = binary.LittleEndian.Uint32(b[8:12])
	m.Price = int32(binary.LittleEndian.Uint32(b[12:16]))
	return nil
}

func (m *Trade) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, TradeSize)
	putMDHeader(b, TradeSize, seq, timestamp, MDTypeTrade)
	p := b[MDHeaderSize:]
	binary.LittleEndian.PutUint64(p[0:8], m.OrderID)
	binary.LittleEndian.PutUint32(p[8:12], m.Quantity)
	binary.LittleEndian.PutUint32(p[12:16], uint32(m.Price))
	return b
}

// TradeSummary aggregates one sweep: total quantity and last price.
type TradeSummary struct {
	Symbol        uint32
	AggressorSide market.Side
	TotalQuantity uint32
	LastPrice     int32
}

func (m *TradeSummary) Decode(b []byte) error {
	if len(b) < TradeSummarySize {
		return ErrShortBuffer
	}
	b = b[MDHeaderSize:]
	m.Symbol = binary.LittleEndian.Uint32(b[0:4])
	m.AggressorSide = market.Side(b[4])
	m.TotalQuantity = binary.LittleEndian.Uint32(b[5:9])
	m.LastPrice = int32(binary.LittleEndian.Uint32(b[9:13]))
	return nil
}

func (m *TradeSummary) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, TradeSummarySize)
	putMDHeader(b, TradeSummarySize, seq, timestamp, MDTypeTradeSummary)
	p := b[MDHeaderSize:]
	binary.LittleEndian.PutUint32(p[0:4], m.Symbol)
	p[4] = uint8(m.AggressorSide)
	binary.LittleEndian.PutUint32(p[5:9], m.TotalQuantity)
	binary.LittleEndian.PutUint32(p[9:13], uint32(m.LastPrice))
	return b
}

// SnapshotInfo carries recovery-feed bookkeeping. The service does not
// recover from snapshots; the message is decoded for telemetry only.
type SnapshotInfo struct {
	Symbol       uint32
	BidCount     uint32
	AskCount     uint32
	LastMDSeqNum uint32
}

func (m *SnapshotInfo) Decode(b []byte) error {
	if len(b) < SnapshotInfoSize {
		return ErrShortBuffer
	}
	b = b[MDHeaderSize:]
	m.Symbol = binary.LittleEndian.Uint32(b[0:4])
	m.BidCount = binary.LittleEndian.Uint32(b[4:8])
	m.AskCount = binary.LittleEndian.Uint32(b[8:12])
	m.LastMDSeqNum = binary.LittleEndian.Uint32(b[12:16])
	return nil
}

func (m *SnapshotInfo) Encode(seq uint32, timestamp uint64) []byte {
	b := make([]byte, SnapshotInfoSize)
	putMDHeader(b, SnapshotInfoSize, seq, timestamp, MDTypeSnapshotInfo)
	p := b[MDHeaderSize:]
	binary.LittleEndian.PutUint32(p[0:4], m.Symbol)
	binary.LittleEndian.PutUint32(p[4:8], m.BidCount)
	binary.LittleEndian.PutUint32(p[8:12], m.AskCount)
	binary.LittleEndian.PutUint32(p[12:16], m.LastMDSeqNum)
	return b
}

// EncodeMDHeartbeat builds a heartbeat datagram for the market data feed.
func EncodeMDHeartbeat(seq uint32, timestamp uint64) []byte {
	b := make([]byte, MDHeaderSize)
	putMDHeader(b, MDHeaderSize, seq, timestamp, MDTypeHeartbeat)
	return b
}

// ClearingHeader is the outer frame of every clearing message.
type ClearingHeader struct {
	Magic   uint64
	Length  uint16
	SeqNum  uint32
	MsgType uint8
}

func (h *ClearingHeader) Decode(b []byte) error {
	if len(b) < ClearingHeaderSize {
		return ErrShortBuffer
	}
	h.Magic = binary.LittleEndian.Uint64(b[0:8])
	h.Length = binary.LittleEndian.Uint16(b[8:10])
	h.SeqNum = binary.LittleEndian.Uint32(b[10:14])
	h.MsgType = b[14]
	return nil
}

func putClearingHeader(b []byte, length uint16, seq uint32, msgType uint8) {
	binary.LittleEndian.PutUint64(b[0:8], ClearingMagic)
	binary.LittleEndian.PutUint16(b[8:10], length)
	binary.LittleEndian.PutUint32(b[10:14], seq)
	b[14] = msgType
}

// Fill is a consummated trade credited to a client by the clearing house.
type Fill struct {
	ClientID uint32
	Symbol   uint32
	Quantity uint32
	Price    int32
	Side     market.Side
}

func (m *Fill) Decode(b []byte) error {
	if len(b) < FillSize {
		return ErrShortBuffer
	}
	b = b[ClearingHeaderSize:]
	m.ClientID = binary.LittleEndian.Uint32(b[0:4])
	m.Symbol = binary.LittleEndian.Uint32(b[4:8])
	m.Quantity = binary.LittleEndian.Uint32(b[8:12])
	m.Price = int32(binary.LittleEndian.Uint32(b[12:16]))
	m.Side = market.Side(b[16])
	return nil
}

func (m *Fill) Encode(seq uint32) []byte {
	b := make([]byte, FillSize)
	putClearingHeader(b, FillSize, seq, ClearingTypeFill)
	p := b[ClearingHeaderSize:]
	binary.LittleEndian.PutUint32(p[0:4], m.ClientID)
	binary.LittleEndian.PutUint32(p[4:8], m.Symbol)
	binary.LittleEndian.PutUint32(p[8:12], m.Quantity)
	binary.LittleEndian.PutUint32(p[12:16], uint32(m.Price))
	p[16] = uint8(m.Side)
	return b
}

// EncodeClearingHeartbeat builds a heartbeat datagram for the clearing feed.
func EncodeClearingHeartbeat(seq uint32) []byte {
	b := make([]byte, ClearingHeaderSize)
	putClearingHeader(b, ClearingHeaderSize, seq, ClearingTypeHeartbeat)
	return b
}
