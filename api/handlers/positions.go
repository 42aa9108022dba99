package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/openalpha/etf-service/api/types"
	"github.com/openalpha/etf-service/market"
)

// PositionHandler handles position query HTTP requests
type PositionHandler struct {
	service types.LedgerService
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(service types.LedgerService) *PositionHandler {
	return &PositionHandler{service: service}
}

// HandlePositions handles /positions/{clientID} and
// /positions/{clientID}/{symbol} endpoints (GET)
func (h *PositionHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	// Parse path: /positions/{clientID} or /positions/{clientID}/{symbol}
	path := strings.TrimPrefix(r.URL.Path, "/positions/")
	clientPart := path
	symbolPart := ""
	for i, c := range path {
		if c == '/' {
			clientPart = path[:i]
			symbolPart = path[i+1:]
			break
		}
	}

	if clientPart == "" {
		writeError(w, http.StatusBadRequest, "missing_client_id", "Client ID is required")
		return
	}
	clientID, err := strconv.ParseUint(clientPart, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_client_id", "Client ID must be an integer")
		return
	}

	if symbolPart == "" {
		h.getPositions(w, uint32(clientID))
		return
	}
	symbol, err := strconv.ParseUint(symbolPart, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_symbol", "Symbol must be an integer")
		return
	}
	h.getPosition(w, uint32(clientID), uint32(symbol))
}

// getPositions returns every non-zero effective position for a client
func (h *PositionHandler) getPositions(w http.ResponseWriter, clientID uint32) {
	positions := h.service.Positions(clientID)

	byTicker := make(map[string]int64, len(positions))
	for sym, qty := range positions {
		byTicker[market.Ticker(sym)] = qty
	}
	writeJSON(w, http.StatusOK, types.ClientPositionsResponse{
		ClientID:  clientID,
		Positions: byTicker,
	})
}

// getPosition returns one (client, symbol) effective position
func (h *PositionHandler) getPosition(w http.ResponseWriter, clientID, symbol uint32) {
	writeJSON(w, http.StatusOK, types.ClientPositionResponse{
		ClientID: clientID,
		Symbol:   symbol,
		Ticker:   market.Ticker(symbol),
		Position: h.service.EffectivePosition(clientID, symbol),
	})
}
