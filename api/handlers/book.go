package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/etf-service/api/types"
	"github.com/openalpha/etf-service/book"
	"github.com/openalpha/etf-service/market"
)

// defaultDepth caps /book responses unless the caller asks otherwise.
const defaultDepth = 20

// BookHandler handles order book query HTTP requests
type BookHandler struct {
	service types.BookService
}

// NewBookHandler creates a new book handler
func NewBookHandler(service types.BookService) *BookHandler {
	return &BookHandler{service: service}
}

// HandleBook handles /book/{symbol} endpoint (GET). The symbol segment
// accepts an id or a ticker; ?depth=N bounds the levels per side.
func (h *BookHandler) HandleBook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	part := strings.TrimPrefix(r.URL.Path, "/book/")
	if part == "" {
		writeError(w, http.StatusBadRequest, "missing_symbol", "Symbol is required")
		return
	}

	var symbol uint32
	if id, err := strconv.ParseUint(part, 10, 32); err == nil {
		symbol = uint32(id)
	} else if id, ok := market.ByTicker(part); ok {
		symbol = id
	} else {
		writeError(w, http.StatusBadRequest, "invalid_symbol", "Symbol must be an id or a known ticker")
		return
	}

	depth := defaultDepth
	if d := r.URL.Query().Get("depth"); d != "" {
		fmt.Sscanf(d, "%d", &depth)
	}

	bids, asks := h.service.Depth(symbol, depth)
	if bids == nil {
		bids = []book.Level{}
	}
	if asks == nil {
		asks = []book.Level{}
	}
	writeJSON(w, http.StatusOK, types.BookResponse{
		Symbol: symbol,
		Ticker: market.Ticker(symbol),
		Bids:   bids,
		Asks:   asks,
	})
}
