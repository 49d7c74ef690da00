package models

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// GenesisHash is the fixed previous_hash of the very first log entry.
// It is also the Merkle root of an empty log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// StateUnknown is the auxiliary state recorded when the caller supplies none.
const StateUnknown = -1

const (
	maxActionTypeLen = 128
	maxActionDataLen = 1 << 20 // 1 MiB
)

// LogEntry represents a single immutable record in the transparency log
type LogEntry struct {
	SequenceID     int64     `json:"sequence_id"`
	Timestamp      time.Time `json:"timestamp"`
	ActionType     string    `json:"action_type"`
	ActionData     string    `json:"action_data"`
	ActionHash     string    `json:"action_hash"`
	Signature      string    `json:"signature"`
	AuxiliaryState int       `json:"auxiliary_state"`
	PreviousHash   string    `json:"previous_hash"`
	MerkleRoot     string    `json:"merkle_root"`
}

// AppendForm holds the caller-supplied fields of an append request
type AppendForm struct {
	ActionType     string `json:"action_type"`
	ActionData     string `json:"action_data"`
	AuxiliaryState *int   `json:"auxiliary_state,omitempty"`
}

// Validate checks the form fields and returns any validation errors
func (f *AppendForm) Validate() ValidationErrors {
	var errs ValidationErrors

	if len(f.ActionType) > maxActionTypeLen {
		errs = append(errs, ValidationError{
			Field:   "action_type",
			Message: fmt.Sprintf("action_type exceeds %d bytes", maxActionTypeLen),
		})
	}
	if !utf8.ValidString(f.ActionType) {
		errs = append(errs, ValidationError{
			Field:   "action_type",
			Message: "action_type is not valid UTF-8",
		})
	}
	if len(f.ActionData) > maxActionDataLen {
		errs = append(errs, ValidationError{
			Field:   "action_data",
			Message: fmt.Sprintf("action_data exceeds %d bytes", maxActionDataLen),
		})
	}
	if !utf8.ValidString(f.ActionData) {
		errs = append(errs, ValidationError{
			Field:   "action_data",
			Message: "action_data is not valid UTF-8",
		})
	}

	return errs
}

// State returns the auxiliary state to record, defaulting to StateUnknown
func (f *AppendForm) State() int {
	if f.AuxiliaryState == nil {
		return StateUnknown
	}
	return *f.AuxiliaryState
}

// AppendResult is returned to the caller after a successful append
type AppendResult struct {
	SequenceID        int64  `json:"sequence_id"`
	ActionHash        string `json:"action_hash"`
	MerkleRoot        string `json:"merkle_root"`
	SignatureFallback bool   `json:"signature_fallback"`
}

// VerificationResult reports the outcome of a full chain walk.
// An invalid chain is a normal, reportable outcome, not an error.
type VerificationResult struct {
	Valid   bool   `json:"valid"`
	Detail  string `json:"detail"`
	Entries int64  `json:"entries"`
}

// InclusionProof carries the sibling path showing a leaf is part of the tree
type InclusionProof struct {
	LeafHash   string   `json:"leaf_hash"`
	Index      int64    `json:"index"`
	TreeSize   int64    `json:"tree_size"`
	Siblings   []string `json:"siblings"`
	MerkleRoot string   `json:"merkle_root"`
}

// LogStats summarizes the state of the log
type LogStats struct {
	Entries    int64      `json:"entries"`
	MerkleRoot string     `json:"merkle_root"`
	FirstEntry *time.Time `json:"first_entry,omitempty"`
	LastEntry  *time.Time `json:"last_entry,omitempty"`
	ChainValid bool       `json:"chain_valid"`
	SignerMode string     `json:"signer_mode"`
}
