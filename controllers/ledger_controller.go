package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lordwilsonDev/transparency-log/callerctx"
	"github.com/lordwilsonDev/transparency-log/models"
	"github.com/lordwilsonDev/transparency-log/repositories"
	"github.com/lordwilsonDev/transparency-log/services"
)

const defaultRecentLimit = 10
const maxRecentLimit = 500

// maxAppendBodyBytes caps the append request body. Validation bounds
// action_data at 1 MiB, so anything larger can be refused without
// buffering it.
const maxAppendBodyBytes = 2 << 20

// LedgerController handles transparency log requests
type LedgerController struct {
	services *services.Services
}

// NewLedgerController creates a new ledger controller
func NewLedgerController(services *services.Services) *LedgerController {
	return &LedgerController{
		services: services,
	}
}

// Append handles POST /api/v1/log
func (c *LedgerController) Append(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAppendBodyBytes)

	var form models.AppendForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := c.services.Ledger.Append(r.Context(), &form)
	if err != nil {
		var errs models.ValidationErrors
		if errors.As(err, &errs) {
			writeError(w, http.StatusBadRequest, errs.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to append entry: "+err.Error())
		return
	}

	log.Printf("appended entry %d (%s) for %s", result.SequenceID, form.ActionType, callerctx.Subject(r.Context()))
	writeJSON(w, http.StatusCreated, result)
}

// Recent handles GET /api/v1/log/recent
func (c *LedgerController) Recent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	entries, err := c.services.Ledger.GetRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load entries: "+err.Error())
		return
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// Entry handles GET /api/v1/log/entry/{hash}
func (c *LedgerController) Entry(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	entry, err := c.services.Ledger.GetEntry(r.Context(), hash)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no entry with that action hash")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entry: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// Root handles GET /api/v1/log/root
func (c *LedgerController) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"merkle_root": c.services.Ledger.MerkleRoot(),
	})
}

// Verify handles GET /api/v1/log/verify.
// A tampered chain is a 200 with valid=false, not an HTTP error.
func (c *LedgerController) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := c.services.Ledger.VerifyChain(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to verify chain: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Proof handles GET /api/v1/log/proof/{hash}
func (c *LedgerController) Proof(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	proof, err := c.services.Ledger.InclusionProof(r.Context(), hash)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no entry with that action hash")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build proof: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, proof)
}

// Stats handles GET /api/v1/log/stats
func (c *LedgerController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.services.Ledger.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load stats: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Checkpoint handles GET /api/v1/log/checkpoint
func (c *LedgerController) Checkpoint(w http.ResponseWriter, r *http.Request) {
	checkpoint, err := c.services.Ledger.Checkpoint(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build checkpoint: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, checkpoint)
}
