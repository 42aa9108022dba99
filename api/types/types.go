package types

import (
	"github.com/openalpha/etf-service/book"
	"github.com/openalpha/etf-service/etf"
	"github.com/openalpha/etf-service/market"
)

// ConversionRequest is the body for POST /create and POST /redeem.
// Pointer fields distinguish absent keys from zero values.
type ConversionRequest struct {
	ClientID *int64 `json:"client_id"`
	Amount   *int64 `json:"amount"`
}

// ConversionResponse reports the outcome of a create/redeem attempt. The
// ETF balance is the effective position after the attempt, whether or not
// it succeeded.
type ConversionResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	UndyBalance int64  `json:"undy_balance"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// SymbolsResponse lists the tradeable universe and the ETF structure.
type SymbolsResponse struct {
	Symbols           []market.Symbol `json:"symbols"`
	ETFSymbol         uint32          `json:"etf_symbol"`
	UnderlyingSymbols []uint32        `json:"underlying_symbols"`
}

// ClientPositionsResponse carries every non-zero effective position for a
// client, keyed by ticker.
type ClientPositionsResponse struct {
	ClientID  uint32           `json:"client_id"`
	Positions map[string]int64 `json:"positions"`
}

// ClientPositionResponse carries one (client, symbol) effective position.
type ClientPositionResponse struct {
	ClientID uint32 `json:"client_id"`
	Symbol   uint32 `json:"symbol"`
	Ticker   string `json:"ticker"`
	Position int64  `json:"position"`
}

// HistoryResponse lists committed conversions in commit order.
type HistoryResponse struct {
	History []etf.Record `json:"history"`
}

// BookResponse is the aggregated depth view of one symbol.
type BookResponse struct {
	Symbol uint32       `json:"symbol"`
	Ticker string       `json:"ticker"`
	Bids   []book.Level `json:"bids"`
	Asks   []book.Level `json:"asks"`
}

// LedgerService defines the interface for position and conversion operations
type LedgerService interface {
	EffectivePosition(clientID, symbol uint32) int64
	Positions(clientID uint32) map[uint32]int64
	Create(clientID uint32, amount int64) (string, error)
	Redeem(clientID uint32, amount int64) (string, error)
	History() []etf.Record
}

// BookService defines the interface for order book queries
type BookService interface {
	BestBid(symbol uint32) (price int32, quantity int64)
	BestAsk(symbol uint32) (price int32, quantity int64)
	Depth(symbol uint32, n int) (bids, asks []book.Level)
	OrderCount() int
}
