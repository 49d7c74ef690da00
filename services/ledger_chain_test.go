package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lordwilsonDev/transparency-log/database"
	"github.com/lordwilsonDev/transparency-log/merkle"
	"github.com/lordwilsonDev/transparency-log/models"
	"github.com/lordwilsonDev/transparency-log/repositories"
	"github.com/lordwilsonDev/transparency-log/signer"
	_ "github.com/mattn/go-sqlite3"
)

// setupLedger spins up a service against a real temp SQLite store
func setupLedger(t *testing.T) LedgerService {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_log.db")
	t.Cleanup(func() {
		database.CloseDB()
	})

	if err := database.InitializeDatabase(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	repo := repositories.NewLogRepository(database.GetDB())
	service, err := NewLedgerService(context.Background(), repo, signer.NoSigner{})
	if err != nil {
		t.Fatalf("Failed to create ledger service: %v", err)
	}

	return service
}

// TestChainLifecycle walks the canonical two-entry scenario end to end:
// append, linkage, roots, verification, then tamper detection after a
// direct edit in storage.
func TestChainLifecycle(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	// Empty log: root is the genesis sentinel and the chain verifies
	if root := service.MerkleRoot(); root != models.GenesisHash {
		t.Fatalf("Expected genesis root for empty log, got %s", root)
	}

	first, err := service.Append(ctx, &models.AppendForm{ActionType: "boot", ActionData: "system initialized"})
	if err != nil {
		t.Fatalf("First append failed: %v", err)
	}

	// A single-leaf tree's root is the leaf itself
	if first.MerkleRoot != first.ActionHash {
		t.Errorf("Expected single-leaf root %s, got %s", first.ActionHash, first.MerkleRoot)
	}

	second, err := service.Append(ctx, &models.AppendForm{ActionType: "inference", ActionData: "hello world"})
	if err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	entry2, err := service.GetEntry(ctx, second.ActionHash)
	if err != nil {
		t.Fatalf("Failed to fetch second entry: %v", err)
	}
	if entry2.PreviousHash != first.ActionHash {
		t.Errorf("Expected previous hash %s, got %s", first.ActionHash, entry2.PreviousHash)
	}

	if expected := merkle.HashPair(first.ActionHash, second.ActionHash); second.MerkleRoot != expected {
		t.Errorf("Expected two-leaf root %s, got %s", expected, second.MerkleRoot)
	}
	if service.MerkleRoot() != second.MerkleRoot {
		t.Errorf("Cached root %s does not match last entry root %s", service.MerkleRoot(), second.MerkleRoot)
	}

	result, err := service.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected valid chain, got detail %q", result.Detail)
	}
	if result.Detail != "chain of 2 entries verified" {
		t.Errorf("Unexpected detail: %q", result.Detail)
	}

	// Verification is idempotent on an unmodified log
	again, err := service.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("Second VerifyChain failed: %v", err)
	}
	if *again != *result {
		t.Errorf("Expected identical verification results, got %+v and %+v", result, again)
	}

	// Corrupt entry 1 directly in storage
	_, err = database.GetDB().Exec(
		"UPDATE transparency_log SET action_data = 'TAMPERED' WHERE sequence_id = 1",
	)
	if err != nil {
		t.Fatalf("Failed to corrupt entry: %v", err)
	}

	tampered, err := service.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain after tamper failed: %v", err)
	}
	if tampered.Valid {
		t.Fatal("Expected tampered chain to be invalid")
	}
	if !strings.Contains(tampered.Detail, "entry 1") {
		t.Errorf("Expected detail mentioning entry 1, got %q", tampered.Detail)
	}
}

// TestTamperDetectionPerField mutates each covered field of a stored
// entry and checks verification pinpoints the first affected sequence
func TestTamperDetectionPerField(t *testing.T) {
	cases := []struct {
		name   string
		update string
	}{
		{"action_type", "UPDATE transparency_log SET action_type = 'forged' WHERE sequence_id = 2"},
		{"action_data", "UPDATE transparency_log SET action_data = 'forged' WHERE sequence_id = 2"},
		{"timestamp", "UPDATE transparency_log SET timestamp = '2001-01-01T00:00:00Z' WHERE sequence_id = 2"},
		{"action_hash", "UPDATE transparency_log SET action_hash = '" + models.GenesisHash + "' WHERE sequence_id = 2"},
		{"previous_hash", "UPDATE transparency_log SET previous_hash = '" + models.GenesisHash + "' WHERE sequence_id = 2"},
		{"merkle_root", "UPDATE transparency_log SET merkle_root = '" + models.GenesisHash + "' WHERE sequence_id = 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := setupLedger(t)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				if _, err := service.Append(ctx, &models.AppendForm{ActionType: "decision", ActionData: fmt.Sprintf("step %d", i)}); err != nil {
					t.Fatalf("Append %d failed: %v", i, err)
				}
			}

			if _, err := database.GetDB().Exec(tc.update); err != nil {
				t.Fatalf("Failed to mutate %s: %v", tc.name, err)
			}

			result, err := service.VerifyChain(ctx)
			if err != nil {
				t.Fatalf("VerifyChain failed: %v", err)
			}
			if result.Valid {
				t.Fatalf("Expected chain to be invalid after mutating %s", tc.name)
			}
			if !strings.Contains(result.Detail, "entry 2") {
				t.Errorf("Expected detail naming entry 2, got %q", result.Detail)
			}
		})
	}
}

// TestHashDependsOnTimeAndPosition tests that identical payloads do not
// produce identical hashes
func TestHashDependsOnTimeAndPosition(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	form := &models.AppendForm{ActionType: "inference", ActionData: "same payload"}

	first, err := service.Append(ctx, form)
	if err != nil {
		t.Fatalf("First append failed: %v", err)
	}
	second, err := service.Append(ctx, form)
	if err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	if first.ActionHash == second.ActionHash {
		t.Error("Expected distinct hashes for identical payloads at different chain positions")
	}
}

// TestMerkleRootStability recomputes the root independently from the
// stored leaves and compares it to the last entry's stored root
func TestMerkleRootStability(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	for n := 1; n <= 6; n++ {
		if _, err := service.Append(ctx, &models.AppendForm{ActionType: "tool_use", ActionData: fmt.Sprintf("call %d", n)}); err != nil {
			t.Fatalf("Append %d failed: %v", n, err)
		}

		entries, err := service.GetRecent(ctx, n)
		if err != nil {
			t.Fatalf("GetRecent failed: %v", err)
		}

		// Rebuild the leaf list oldest-first
		leaves := make([]string, len(entries))
		for i, entry := range entries {
			leaves[len(entries)-1-i] = entry.ActionHash
		}

		if independent := merkle.Root(leaves); independent != service.MerkleRoot() {
			t.Errorf("N=%d: independent root %s does not match cached root %s", n, independent, service.MerkleRoot())
		}
	}
}

// TestInclusionProofs proves every entry against the current root
func TestInclusionProofs(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	var hashes []string
	for n := 0; n < 5; n++ {
		result, err := service.Append(ctx, &models.AppendForm{ActionType: "decision", ActionData: fmt.Sprintf("d%d", n)})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		hashes = append(hashes, result.ActionHash)
	}

	for i, hash := range hashes {
		proof, err := service.InclusionProof(ctx, hash)
		if err != nil {
			t.Fatalf("InclusionProof for entry %d failed: %v", i+1, err)
		}

		if proof.TreeSize != 5 {
			t.Errorf("Expected tree size 5, got %d", proof.TreeSize)
		}
		if proof.MerkleRoot != service.MerkleRoot() {
			t.Errorf("Proof root %s does not match current root %s", proof.MerkleRoot, service.MerkleRoot())
		}
		if !merkle.VerifyProof(proof.LeafHash, int(proof.Index), proof.Siblings, proof.MerkleRoot) {
			t.Errorf("Proof for entry %d did not verify", i+1)
		}
	}

	if _, err := service.InclusionProof(ctx, "missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown hash, got %v", err)
	}
}

// TestStatsAndCheckpoint covers the summary surfaces
func TestStatsAndCheckpoint(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 0 || !stats.ChainValid || stats.MerkleRoot != models.GenesisHash {
		t.Errorf("Unexpected empty-log stats: %+v", stats)
	}
	if stats.FirstEntry != nil || stats.LastEntry != nil {
		t.Error("Expected no time bounds for empty log")
	}

	for i := 0; i < 3; i++ {
		if _, err := service.Append(ctx, &models.AppendForm{ActionType: "inference", ActionData: "x"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	stats, err = service.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Entries != 3 || !stats.ChainValid {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.FirstEntry == nil || stats.LastEntry == nil {
		t.Fatal("Expected time bounds for populated log")
	}
	if stats.SignerMode != "fallback" {
		t.Errorf("Expected signer mode fallback, got %s", stats.SignerMode)
	}

	checkpoint, err := service.Checkpoint(ctx)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if checkpoint.EntryCount != 3 {
		t.Errorf("Expected checkpoint count 3, got %d", checkpoint.EntryCount)
	}
	if checkpoint.MerkleRoot != service.MerkleRoot() {
		t.Errorf("Checkpoint root %s does not match current root %s", checkpoint.MerkleRoot, service.MerkleRoot())
	}
	if checkpoint.ID == "" || checkpoint.Signature == "" {
		t.Error("Expected checkpoint ID and signature to be set")
	}
	if checkpoint.SignerMode != "fallback" {
		t.Errorf("Expected checkpoint signer mode fallback, got %s", checkpoint.SignerMode)
	}
}

// TestStatsPairsRootWithCount reads summaries while a writer appends
// and checks every summary's root is exactly the root over its first
// Entries leaves, never a root paired with a stale count
func TestStatsPairsRootWithCount(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	const total = 20

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			if _, err := service.Append(ctx, &models.AppendForm{ActionType: "inference", ActionData: fmt.Sprintf("item %d", i)}); err != nil {
				t.Errorf("Append %d failed: %v", i, err)
				return
			}
		}
	}()

	var snapshots []*models.LogStats
	for i := 0; i < 10; i++ {
		stats, err := service.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		snapshots = append(snapshots, stats)
	}
	wg.Wait()

	entries, err := service.GetRecent(ctx, total)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	leaves := make([]string, len(entries))
	for i, entry := range entries {
		leaves[len(entries)-1-i] = entry.ActionHash
	}

	for _, st := range snapshots {
		if st.Entries == 0 {
			if st.MerkleRoot != models.GenesisHash {
				t.Errorf("Empty-log summary carries root %s", st.MerkleRoot)
			}
			continue
		}
		if independent := merkle.Root(leaves[:int(st.Entries)]); independent != st.MerkleRoot {
			t.Errorf("Summary of %d entries carries root %s, expected %s", st.Entries, st.MerkleRoot, independent)
		}
	}
}

// TestReopenContinuesChain simulates a restart against the same store
func TestReopenContinuesChain(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test_log.db")
	t.Cleanup(func() {
		database.CloseDB()
	})

	if err := database.InitializeDatabase(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	ctx := context.Background()

	repo := repositories.NewLogRepository(database.GetDB())
	service, err := NewLedgerService(ctx, repo, signer.NoSigner{})
	if err != nil {
		t.Fatalf("Failed to create ledger service: %v", err)
	}

	first, err := service.Append(ctx, &models.AppendForm{ActionType: "boot", ActionData: "before restart"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// A fresh service over the same store must pick up the tail
	reopened, err := NewLedgerService(ctx, repo, signer.NoSigner{})
	if err != nil {
		t.Fatalf("Failed to reopen ledger service: %v", err)
	}

	if reopened.MerkleRoot() != first.MerkleRoot {
		t.Errorf("Expected reopened root %s, got %s", first.MerkleRoot, reopened.MerkleRoot())
	}

	second, err := reopened.Append(ctx, &models.AppendForm{ActionType: "boot", ActionData: "after restart"})
	if err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}
	if second.SequenceID != 2 {
		t.Errorf("Expected sequence 2 after reopen, got %d", second.SequenceID)
	}

	result, err := reopened.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("Expected valid chain after reopen, got %q", result.Detail)
	}
}

// TestConcurrentAppends hammers the writer path from many goroutines
// and expects an intact, gapless chain
func TestConcurrentAppends(t *testing.T) {
	service := setupLedger(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	errCh := make(chan error, writers*perWriter)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := service.Append(ctx, &models.AppendForm{
					ActionType: "inference",
					ActionData: fmt.Sprintf("writer %d item %d", w, i),
				})
				if err != nil {
					errCh <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Concurrent append failed: %v", err)
	}

	result, err := service.VerifyChain(ctx)
	if err != nil {
		t.Fatalf("VerifyChain failed: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Expected valid chain after concurrent appends, got %q", result.Detail)
	}
	if result.Entries != writers*perWriter {
		t.Errorf("Expected %d entries, got %d", writers*perWriter, result.Entries)
	}
}
