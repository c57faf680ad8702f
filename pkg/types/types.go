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

// Package types contains shared type definitions used across the SDK,
// including the encrypted VRF keypair records, relay wire types, and
// base64url helpers. This package has no dependencies on other pkg/
// packages to prevent import cycles.
package types

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrInvalidAccountID is returned when an account ID is empty or malformed.
	ErrInvalidAccountID = errors.New("invalid account ID")

	// ErrInvalidBase64 is returned when a base64url field fails to decode.
	ErrInvalidBase64 = errors.New("invalid base64url encoding")

	// ErrMissingField is returned when a required record field is empty.
	ErrMissingField = errors.New("missing required field")
)

// =============================================================================
// Identity
// =============================================================================

// AccountID identifies a NEAR account (e.g. "alice.near"). The SDK treats
// account IDs as opaque strings; it never performs on-chain lookups.
type AccountID string

// Validate checks that the account ID is non-empty and contains no whitespace.
func (a AccountID) Validate() error {
	if a == "" {
		return ErrInvalidAccountID
	}
	if strings.ContainsAny(string(a), " \t\n") {
		return fmt.Errorf("%w: %q", ErrInvalidAccountID, string(a))
	}
	return nil
}

// String returns the account ID as a plain string.
func (a AccountID) String() string {
	return string(a)
}

// DeviceNumber distinguishes multiple authenticators registered to the same
// account. Device numbers start at 1.
type DeviceNumber int

// =============================================================================
// Encrypted keypair records
// =============================================================================

// EncryptedVrfKeypair is the at-rest form of a VRF keypair, sealed under a
// key derived from a WebAuthn PRF output. Both fields are base64url without
// padding. The ciphertext includes the Poly1305 authentication tag.
type EncryptedVrfKeypair struct {
	EncryptedVrfDataB64u string `json:"encryptedVrfDataB64u" yaml:"encrypted_vrf_data_b64u"`
	ChaCha20NonceB64u    string `json:"chacha20NonceB64u" yaml:"chacha20_nonce_b64u"`
}

// Validate checks that both record fields are present and decodable.
func (e *EncryptedVrfKeypair) Validate() error {
	if e.EncryptedVrfDataB64u == "" || e.ChaCha20NonceB64u == "" {
		return fmt.Errorf("%w: encrypted VRF keypair", ErrMissingField)
	}
	if _, err := DecodeB64u(e.EncryptedVrfDataB64u); err != nil {
		return err
	}
	_, err := DecodeB64u(e.ChaCha20NonceB64u)
	return err
}

// ServerEncryptedVrfKeypair is the Shamir-locked form of a VRF keypair: the
// AEAD ciphertext of the keypair plus the key-encryption-key blinded by the
// client's exponent and locked by the relay server's exponent (kek_s).
//
// kek_s is useless on its own: the server cannot strip the client's blinding
// factor, and the client cannot strip the server's lock without one more
// round trip to the relay. ServerKeyID names the relay-held exponent pair
// that produced the lock; after a server-side key rotation the stored record
// becomes undecryptable and the client must re-register the lock.
type ServerEncryptedVrfKeypair struct {
	CiphertextVrfB64u string    `json:"ciphertextVrfB64u" yaml:"ciphertext_vrf_b64u"`
	KekSB64u          string    `json:"kek_s_b64u" yaml:"kek_s_b64u"`
	ServerKeyID       string    `json:"serverKeyId" yaml:"server_key_id"`
	UpdatedAt         time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Validate checks that all record fields required for a silent unlock are
// present and decodable.
func (s *ServerEncryptedVrfKeypair) Validate() error {
	if s.CiphertextVrfB64u == "" || s.KekSB64u == "" || s.ServerKeyID == "" {
		return fmt.Errorf("%w: server-encrypted VRF keypair", ErrMissingField)
	}
	if _, err := DecodeB64u(s.CiphertextVrfB64u); err != nil {
		return err
	}
	_, err := DecodeB64u(s.KekSB64u)
	return err
}

// =============================================================================
// AEAD payloads
// =============================================================================

// EncryptedData is the result of an AEAD encryption operation. The ciphertext
// carries the authentication tag appended by the AEAD construction.
type EncryptedData struct {
	// Ciphertext is the encrypted data including the authentication tag
	Ciphertext []byte

	// Nonce is the nonce used for encryption (must be stored with ciphertext)
	Nonce []byte
}

// =============================================================================
// base64url helpers
// =============================================================================

// EncodeB64u encodes bytes as base64url without padding, the encoding used
// for every scalar and ciphertext field crossing the worker or relay
// boundary.
func EncodeB64u(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeB64u decodes a base64url string without padding.
// Returns ErrInvalidBase64 if the input is malformed.
func DecodeB64u(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	return b, nil
}
