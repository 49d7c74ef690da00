package models

import (
	"fmt"
	"time"
)

// Checkpoint is a signed announcement of the log's current root, suitable
// for out-of-band publication so external parties can later detect
// rollback or forked history.
type Checkpoint struct {
	ID         string    `json:"id"`
	MerkleRoot string    `json:"merkle_root"`
	EntryCount int64     `json:"entry_count"`
	Timestamp  time.Time `json:"timestamp"`
	Signature  string    `json:"signature"`
	SignerMode string    `json:"signer_mode"`
}

// CanonicalPayload returns the deterministic serialization of the
// checkpoint fields covered by its signature. Fields are length-prefixed
// so no value can be confused with a separator.
func (c *Checkpoint) CanonicalPayload() string {
	count := fmt.Sprintf("%d", c.EntryCount)
	ts := CanonicalTimestamp(c.Timestamp)

	payload := ""
	for _, field := range []string{c.ID, c.MerkleRoot, count, ts} {
		payload += fmt.Sprintf("%d:%s", len(field), field)
	}
	return payload
}
