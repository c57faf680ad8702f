// Copyright (c) 2025 Web3Authn Labs
//
// This file is part of go-vrf-sdk.
//
// go-vrf-sdk is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@web3authn.dev for commercial licensing options.

// Package chacha20poly1305 wraps the ChaCha20-Poly1305 AEAD for sealing VRF
// keypairs at rest. Every key protecting a VRF keypair — whether derived from
// a WebAuthn PRF output or recovered through the Shamir three-pass protocol —
// goes through this package, so both unlock paths produce and consume the
// same ciphertext format: ciphertext||tag plus a random 12-byte nonce.
package chacha20poly1305

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length in bytes for ChaCha20-Poly1305.
const KeySize = chacha20poly1305.KeySize

// AEAD provides authenticated encryption for VRF keypair material.
type AEAD interface {
	// Seal encrypts plaintext under a fresh random nonce, binding the
	// optional additional data into the authentication tag.
	Seal(plaintext, additionalData []byte) (*types.EncryptedData, error)

	// Open verifies the authentication tag and decrypts. Returns an error
	// on any tag mismatch; the plaintext is never partially released.
	Open(data *types.EncryptedData, additionalData []byte) ([]byte, error)

	// NonceSize returns the nonce size in bytes (12 for ChaCha20-Poly1305).
	NonceSize() int
}

type aead struct {
	inner cipher.AEAD
}

// New creates a ChaCha20-Poly1305 AEAD. The key must be exactly 32 bytes.
func New(key []byte) (AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key size: %d bytes (must be %d bytes)", len(key), chacha20poly1305.KeySize)
	}
	inner, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}
	return &aead{inner: inner}, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (a *aead) Seal(plaintext, additionalData []byte) (*types.EncryptedData, error) {
	nonce := make([]byte, a.inner.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &types.EncryptedData{
		Ciphertext: a.inner.Seal(nil, nonce, plaintext, additionalData),
		Nonce:      nonce,
	}, nil
}

// Open verifies and decrypts previously sealed data.
func (a *aead) Open(data *types.EncryptedData, additionalData []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("encrypted data cannot be nil")
	}
	if len(data.Nonce) != a.inner.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size: %d bytes (must be %d bytes)", len(data.Nonce), a.inner.NonceSize())
	}

	plaintext, err := a.inner.Open(nil, data.Nonce, data.Ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (authentication error): %w", err)
	}
	return plaintext, nil
}

// NonceSize returns the nonce size for this cipher.
func (a *aead) NonceSize() int {
	return a.inner.NonceSize()
}

// GenerateKey generates a new random 256-bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
