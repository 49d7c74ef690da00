package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/lordwilsonDev/transparency-log/services"
)

// writeJSON serializes a response payload with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response with the given status code
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// Controllers holds all controller instances
type Controllers struct {
	Ledger *LedgerController
}

// NewControllers creates and initializes all controller instances
func NewControllers(services *services.Services) *Controllers {
	return &Controllers{
		Ledger: NewLedgerController(services),
	}
}
