package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lordwilsonDev/transparency-log/merkle"
	"github.com/lordwilsonDev/transparency-log/models"
	"github.com/lordwilsonDev/transparency-log/repositories"
	"github.com/lordwilsonDev/transparency-log/signer"
)

// LedgerService interface defines transparency log business logic
type LedgerService interface {
	Append(ctx context.Context, form *models.AppendForm) (*models.AppendResult, error)
	VerifyChain(ctx context.Context) (*models.VerificationResult, error)
	GetEntry(ctx context.Context, actionHash string) (*models.LogEntry, error)
	GetRecent(ctx context.Context, limit int) ([]models.LogEntry, error)
	MerkleRoot() string
	InclusionProof(ctx context.Context, actionHash string) (*models.InclusionProof, error)
	Stats(ctx context.Context) (*models.LogStats, error)
	Checkpoint(ctx context.Context) (*models.Checkpoint, error)
	SignerMode() string
}

// ledgerService implements LedgerService interface
type ledgerService struct {
	logRepo repositories.LogRepository
	signer  signer.Signer
	now     func() time.Time

	// The chain tail and current root are cached under mu. Appends are
	// serialized by the same lock: an interleaved read of the tail
	// across the write boundary would let two entries claim the same
	// predecessor.
	mu       sync.Mutex
	tailSeq  int64
	tailHash string
	root     string
}

// NewLedgerService creates a new ledger service, loading the chain tail
// from storage
func NewLedgerService(ctx context.Context, logRepo repositories.LogRepository, sgn signer.Signer) (LedgerService, error) {
	s := &ledgerService{
		logRepo:  logRepo,
		signer:   sgn,
		now:      time.Now,
		tailHash: models.GenesisHash,
		root:     models.GenesisHash,
	}

	tail, err := logRepo.Tail(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load chain tail: %w", err)
	}

	s.tailSeq = tail.SequenceID
	s.tailHash = tail.ActionHash
	s.root = tail.MerkleRoot

	return s, nil
}

// computeActionHash binds an entry to its content and chain position.
// Fields are length-prefixed so no value can masquerade as a separator.
func computeActionHash(actionType, actionData, timestamp, previousHash string) string {
	h := sha256.New()
	for _, field := range []string{actionType, actionData, timestamp, previousHash} {
		fmt.Fprintf(h, "%d:", len(field))
		io.WriteString(h, field)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Append records an action on the chain. The entry is durably persisted
// before this returns; on any failure the chain tail is unchanged.
func (s *ledgerService) Append(ctx context.Context, form *models.AppendForm) (*models.AppendResult, error) {
	if errs := form.Validate(); errs.HasErrors() {
		return nil, errs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := s.now()
	canonical := models.CanonicalTimestamp(timestamp)
	actionHash := computeActionHash(form.ActionType, form.ActionData, canonical, s.tailHash)

	// The signer is bounded-time by construction; a slow or absent
	// signer yields a marked placeholder rather than stalling the
	// writer lock.
	signature, err := s.signer.Sign(ctx, actionHash)
	if err != nil {
		signature = signer.Fallback(actionHash)
	}

	leaves, err := s.logRepo.GetAllHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merkle leaves: %w", err)
	}
	leaves = append(leaves, actionHash)
	root := merkle.Root(leaves)

	entry := &models.LogEntry{
		SequenceID:     s.tailSeq + 1,
		Timestamp:      timestamp,
		ActionType:     form.ActionType,
		ActionData:     form.ActionData,
		ActionHash:     actionHash,
		Signature:      signature,
		AuxiliaryState: form.State(),
		PreviousHash:   s.tailHash,
		MerkleRoot:     root,
	}

	if err := s.logRepo.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append log entry: %w", err)
	}

	// Cache moves only after the durable write succeeds
	s.tailSeq = entry.SequenceID
	s.tailHash = actionHash
	s.root = root

	return &models.AppendResult{
		SequenceID:        entry.SequenceID,
		ActionHash:        actionHash,
		MerkleRoot:        root,
		SignatureFallback: signer.IsFallback(signature),
	}, nil
}

// VerifyChain walks the full chain and reports the first inconsistency.
// Tampering is a returned result, never an error; errors here mean the
// store itself could not be read.
func (s *ledgerService) VerifyChain(ctx context.Context) (*models.VerificationResult, error) {
	entries, err := s.logRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain: %w", err)
	}

	invalid := func(format string, args ...interface{}) *models.VerificationResult {
		return &models.VerificationResult{
			Valid:   false,
			Detail:  fmt.Sprintf(format, args...),
			Entries: int64(len(entries)),
		}
	}

	leaves := make([]string, 0, len(entries))
	for i, entry := range entries {
		if i == 0 {
			if entry.SequenceID != 1 {
				return invalid("entry %d: chain does not start at sequence 1", entry.SequenceID), nil
			}
			if entry.PreviousHash != models.GenesisHash {
				return invalid("entry %d: previous hash %.8s is not the genesis sentinel", entry.SequenceID, entry.PreviousHash), nil
			}
		} else {
			if expected := int64(i) + 1; entry.SequenceID != expected {
				return invalid("entry %d: sequence gap, expected %d", entry.SequenceID, expected), nil
			}
			if entry.PreviousHash != entries[i-1].ActionHash {
				return invalid("entry %d: chain break, previous hash %.8s does not match %.8s", entry.SequenceID, entry.PreviousHash, entries[i-1].ActionHash), nil
			}
		}

		// Recompute the content hash so payload tampering is caught,
		// not just broken links
		recomputed := computeActionHash(
			entry.ActionType,
			entry.ActionData,
			models.CanonicalTimestamp(entry.Timestamp),
			entry.PreviousHash,
		)
		if recomputed != entry.ActionHash {
			return invalid("entry %d: action hash mismatch, stored %.8s, recomputed %.8s", entry.SequenceID, entry.ActionHash, recomputed), nil
		}

		leaves = append(leaves, entry.ActionHash)
		if root := merkle.Root(leaves); root != entry.MerkleRoot {
			return invalid("entry %d: merkle root mismatch, stored %.8s, recomputed %.8s", entry.SequenceID, entry.MerkleRoot, root), nil
		}
	}

	return &models.VerificationResult{
		Valid:   true,
		Detail:  fmt.Sprintf("chain of %d entries verified", len(entries)),
		Entries: int64(len(entries)),
	}, nil
}

// GetEntry retrieves a specific entry by its action hash
func (s *ledgerService) GetEntry(ctx context.Context, actionHash string) (*models.LogEntry, error) {
	return s.logRepo.GetByHash(ctx, actionHash)
}

// GetRecent retrieves up to limit entries, most recent first
func (s *ledgerService) GetRecent(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return s.logRepo.GetRecent(ctx, limit)
}

// MerkleRoot returns the current root without walking the chain
func (s *ledgerService) MerkleRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// InclusionProof builds the sibling path showing an entry belongs to
// the current tree
func (s *ledgerService) InclusionProof(ctx context.Context, actionHash string) (*models.InclusionProof, error) {
	entry, err := s.logRepo.GetByHash(ctx, actionHash)
	if err != nil {
		return nil, err
	}

	// One query yields a consistent leaf snapshot; the proof and the
	// root it verifies against come from the same list.
	leaves, err := s.logRepo.GetAllHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load merkle leaves: %w", err)
	}

	index := int(entry.SequenceID - 1)
	siblings, err := merkle.Proof(leaves, index)
	if err != nil {
		return nil, fmt.Errorf("failed to build inclusion proof: %w", err)
	}

	return &models.InclusionProof{
		LeafHash:   entry.ActionHash,
		Index:      entry.SequenceID - 1,
		TreeSize:   int64(len(leaves)),
		Siblings:   siblings,
		MerkleRoot: merkle.Root(leaves),
	}, nil
}

// Stats summarizes the log for dashboards and the CLI
func (s *ledgerService) Stats(ctx context.Context) (*models.LogStats, error) {
	// Count and root are one snapshot under the tail lock, so a summary
	// taken during an append never pairs a root with a stale count. The
	// sequence is gapless, so the tail sequence is the entry count.
	s.mu.Lock()
	count, root := s.tailSeq, s.root
	s.mu.Unlock()

	verification, err := s.VerifyChain(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.LogStats{
		Entries:    count,
		MerkleRoot: root,
		ChainValid: verification.Valid,
		SignerMode: s.signer.Mode(),
	}

	if count > 0 {
		first, last, err := s.logRepo.TimeBounds(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read time bounds: %w", err)
		}
		stats.FirstEntry = &first
		stats.LastEntry = &last
	}

	return stats, nil
}

// Checkpoint produces a signed announcement of the current root for
// out-of-band publication
func (s *ledgerService) Checkpoint(ctx context.Context) (*models.Checkpoint, error) {
	// Snapshot tail and root together; the sequence is gapless, so the
	// tail sequence is the entry count.
	s.mu.Lock()
	count, root := s.tailSeq, s.root
	s.mu.Unlock()

	checkpoint := &models.Checkpoint{
		ID:         uuid.NewString(),
		MerkleRoot: root,
		EntryCount: count,
		Timestamp:  s.now().UTC(),
		SignerMode: s.signer.Mode(),
	}

	signature, err := s.signer.Sign(ctx, checkpoint.CanonicalPayload())
	if err != nil {
		signature = signer.Fallback(checkpoint.CanonicalPayload())
	}
	checkpoint.Signature = signature

	return checkpoint, nil
}

// SignerMode reports which signing variant was selected at startup
func (s *ledgerService) SignerMode() string {
	return s.signer.Mode()
}
