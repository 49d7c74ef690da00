// Package signer provides the external signing collaborator for the
// transparency log. The log stores signatures opaquely; which variant
// is active is decided once at startup so audits can tell trusted
// signatures from marked placeholders.
package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// FallbackPrefix marks signatures produced without a trusted signer
const FallbackPrefix = "FALLBACK_"

// Signer produces an opaque signature over log material
type Signer interface {
	Sign(ctx context.Context, data string) (string, error)
	Mode() string
}

// Fallback returns the marked placeholder recorded when no trusted
// signature could be obtained. It is hash-derived so it still commits
// to the signed material, but carries no key material.
func Fallback(data string) string {
	sum := sha256.Sum256([]byte(data))
	return FallbackPrefix + hex.EncodeToString(sum[:])[:32]
}

// IsFallback reports whether a stored signature is a marked placeholder
func IsFallback(signature string) bool {
	return len(signature) >= len(FallbackPrefix) && signature[:len(FallbackPrefix)] == FallbackPrefix
}

// NoSigner is the explicit no-trusted-signer variant. Every signature
// it produces is a marked placeholder.
type NoSigner struct{}

// Sign returns the fallback placeholder for the data
func (NoSigner) Sign(_ context.Context, data string) (string, error) {
	return Fallback(data), nil
}

// Mode identifies this variant for health and audit reporting
func (NoSigner) Mode() string {
	return "fallback"
}

// Ed25519Signer signs with a locally held private key
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer creates a signer from an ed25519 private key
func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: %d", len(key))
	}
	return &Ed25519Signer{key: key}, nil
}

// NewEd25519SignerFromSeed creates a signer from a hex-encoded 32-byte seed
func NewEd25519SignerFromSeed(hexSeed string) (*Ed25519Signer, error) {
	seed, err := hex.DecodeString(hexSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return NewEd25519Signer(ed25519.NewKeyFromSeed(seed))
}

// Sign returns an ed25519 signature over the data
func (s *Ed25519Signer) Sign(_ context.Context, data string) (string, error) {
	sig := ed25519.Sign(s.key, []byte(data))
	return "ed25519:" + hex.EncodeToString(sig), nil
}

// Mode identifies this variant for health and audit reporting
func (s *Ed25519Signer) Mode() string {
	return "ed25519"
}

// PublicKeyHex returns the hex-encoded public key for external verifiers
func (s *Ed25519Signer) PublicKeyHex() string {
	return hex.EncodeToString(s.key.Public().(ed25519.PublicKey))
}

// timeoutSigner bounds how long an append may wait on the wrapped
// signer. The writer lock must never be held hostage by a slow or
// unavailable collaborator, so on timeout or error the marked fallback
// placeholder is recorded instead.
type timeoutSigner struct {
	inner   Signer
	timeout time.Duration
}

// WithTimeout wraps a signer with a bounded-time contract
func WithTimeout(inner Signer, timeout time.Duration) Signer {
	return &timeoutSigner{inner: inner, timeout: timeout}
}

type signResult struct {
	signature string
	err       error
}

// Sign delegates to the wrapped signer, degrading to the fallback
// placeholder if it does not answer in time
func (s *timeoutSigner) Sign(ctx context.Context, data string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan signResult, 1)
	go func() {
		sig, err := s.inner.Sign(ctx, data)
		done <- signResult{signature: sig, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return Fallback(data), nil
		}
		return res.signature, nil
	case <-ctx.Done():
		return Fallback(data), nil
	}
}

// Mode identifies the wrapped variant
func (s *timeoutSigner) Mode() string {
	return s.inner.Mode()
}
