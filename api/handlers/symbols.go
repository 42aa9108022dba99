package handlers

import (
	"net/http"

	"github.com/openalpha/etf-service/api/types"
	"github.com/openalpha/etf-service/market"
)

// SymbolHandler serves the static symbol table
type SymbolHandler struct{}

// NewSymbolHandler creates a new symbol handler
func NewSymbolHandler() *SymbolHandler {
	return &SymbolHandler{}
}

// HandleSymbols handles GET /symbols
func (h *SymbolHandler) HandleSymbols(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, types.SymbolsResponse{
		Symbols:           market.All,
		ETFSymbol:         market.ETFSymbol,
		UnderlyingSymbols: market.Underlyings,
	})
}
