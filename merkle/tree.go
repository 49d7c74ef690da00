// Package merkle computes the hash tree summarizing the ordered list of
// entry hashes in the transparency log. Leaves are hex-encoded SHA-256
// digests; parents hash the concatenation of their children's hex
// strings. A level with an odd node count duplicates its last node, and
// that rule applies at every level so recomputation is deterministic.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashPair combines two nodes into their parent hash
func HashPair(left, right string) string {
	sum := sha256.Sum256([]byte(left + right))
	return hex.EncodeToString(sum[:])
}

// Root computes the Merkle root over the ordered leaf hashes.
// A single leaf is its own root. The empty list has no root here; the
// log layer substitutes its genesis sentinel for an empty chain.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, HashPair(level[i], level[i+1]))
		}
		level = next
	}

	return level[0]
}

// Proof returns the bottom-up sibling path for the leaf at index. When
// the leaf (or an ancestor) is the duplicated last node of an odd level,
// its sibling is itself.
func Proof(leaves []string, index int) ([]string, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("leaf index %d out of range for tree of %d leaves", index, len(leaves))
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	var siblings []string
	i := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}

		if i%2 == 0 {
			siblings = append(siblings, level[i+1])
		} else {
			siblings = append(siblings, level[i-1])
		}

		next := make([]string, 0, len(level)/2)
		for j := 0; j < len(level); j += 2 {
			next = append(next, HashPair(level[j], level[j+1]))
		}
		level = next
		i /= 2
	}

	return siblings, nil
}

// VerifyProof recomputes the root from a leaf and its sibling path and
// compares it to the expected root
func VerifyProof(leaf string, index int, siblings []string, root string) bool {
	computed := leaf
	i := index
	for _, sibling := range siblings {
		if i%2 == 0 {
			computed = HashPair(computed, sibling)
		} else {
			computed = HashPair(sibling, computed)
		}
		i /= 2
	}
	return computed == root
}
