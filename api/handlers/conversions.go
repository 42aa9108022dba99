package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/openalpha/etf-service/api/types"
	"github.com/openalpha/etf-service/etf"
	"github.com/openalpha/etf-service/market"
)

// ConversionHandler handles ETF create/redeem HTTP requests
type ConversionHandler struct {
	service types.LedgerService
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(service types.LedgerService) *ConversionHandler {
	return &ConversionHandler{service: service}
}

// HandleCreate handles POST /create
func (h *ConversionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, h.service.Create)
}

// HandleRedeem handles POST /redeem
func (h *ConversionHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	h.convert(w, r, h.service.Redeem)
}

// HandleHistory handles GET /history
func (h *ConversionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	history := h.service.History()
	if history == nil {
		history = []etf.Record{}
	}
	writeJSON(w, http.StatusOK, types.HistoryResponse{History: history})
}

// convert runs the shared request parsing for both conversion directions.
// Validation failures answer with success=false and a reason; the ETF
// balance is only reported once a well-formed request reached the ledger.
func (h *ConversionHandler) convert(w http.ResponseWriter, r *http.Request, op func(uint32, int64) (string, error)) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	var req types.ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeReject(w, "Invalid client_id or amount")
			return
		}
		writeReject(w, "Missing JSON body")
		return
	}
	if req.ClientID == nil || req.Amount == nil {
		writeReject(w, "Missing client_id or amount")
		return
	}
	if *req.ClientID < 0 || *req.ClientID > math.MaxUint32 {
		writeReject(w, "Invalid client_id or amount")
		return
	}
	clientID := uint32(*req.ClientID)

	message, err := op(clientID, *req.Amount)
	balance := h.service.EffectivePosition(clientID, market.ETFSymbol)

	status := http.StatusOK
	success := err == nil
	if err != nil {
		status = http.StatusBadRequest
		message = err.Error()
	}
	writeJSON(w, status, types.ConversionResponse{
		Success:     success,
		Message:     message,
		UndyBalance: balance,
	})
}

// writeReject answers a malformed conversion request.
func writeReject(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
	})
}
