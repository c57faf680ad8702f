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

// Package vrf implements the verifiable random function used to generate
// unpredictable WebAuthn challenges.
//
// The construction is the simple signature-based VRF: the proof is a
// deterministic Ed25519 signature over the input, and the output is a hash
// of the proof. Determinism of RFC 8032 signing gives output uniqueness per
// (key, input), and anyone holding the public key can verify the proof and
// recompute the output.
package vrf

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"golang.org/x/crypto/hkdf"
)

const (
	// PublicKeySize is the size of a VRF public key in bytes.
	PublicKeySize = ed25519.PublicKeySize

	// SeedSize is the size of the private seed in bytes.
	SeedSize = ed25519.SeedSize

	// ProofSize is the size of a VRF proof in bytes.
	ProofSize = ed25519.SignatureSize

	// OutputSize is the size of a VRF output in bytes.
	OutputSize = sha512.Size
)

// outputPrefix domain-separates VRF output hashing from other SHA-512 uses.
var outputPrefix = []byte("web3authn/vrf-output/v1")

// deriveInfo domain-separates PRF-based keypair derivation.
var deriveInfo = []byte("web3authn/vrf-keypair-from-prf/v1")

// Keypair is a VRF keypair. The private seed never leaves the process that
// created it; persistence goes through Marshal and an AEAD.
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// Generate creates a fresh random keypair. If rng is nil, crypto/rand is
// used.
func Generate(rng io.Reader) (*Keypair, error) {
	if rng == nil {
		rng = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(rng)
	if err != nil {
		return nil, fmt.Errorf("vrf: keypair generation: %w", err)
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// FromSeed reconstructs a keypair from a 32-byte seed.
func FromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("vrf: invalid seed size: %d bytes (must be %d)", len(seed), SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// DeriveFromPrf deterministically derives a keypair from a WebAuthn PRF
// output, bound to the account ID. The same authenticator and account always
// produce bit-identical keypairs, which is what makes passkey-based recovery
// possible: re-running the ceremony on a new device re-creates the same VRF
// key.
func DeriveFromPrf(prfOutput []byte, accountID types.AccountID) (*Keypair, error) {
	if len(prfOutput) == 0 {
		return nil, fmt.Errorf("vrf: empty PRF output")
	}
	if err := accountID.Validate(); err != nil {
		return nil, err
	}

	seed := make([]byte, SeedSize)
	kdf := hkdf.New(sha512.New, prfOutput, []byte(accountID), deriveInfo)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, fmt.Errorf("vrf: seed derivation: %w", err)
	}
	return FromSeed(seed)
}

// PublicKey returns the 32-byte VRF public key.
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, k.pub)
	return out
}

// PublicKeyB64u returns the public key in the SDK's wire encoding.
func (k *Keypair) PublicKeyB64u() string {
	return types.EncodeB64u(k.pub)
}

// Prove evaluates the VRF on input, returning the pseudorandom output and
// the proof verifying it. Deterministic: equal inputs yield equal outputs.
func (k *Keypair) Prove(input []byte) (output, proof []byte) {
	proof = ed25519.Sign(k.priv, input)
	h := sha512.New()
	h.Write(outputPrefix)
	h.Write(proof)
	return h.Sum(nil), proof
}

// Verify checks a VRF proof against a public key and recomputes the output.
// Returns false for any malformed or forged proof.
func Verify(pub, input, output, proof []byte) bool {
	if len(pub) != PublicKeySize || len(proof) != ProofSize || len(output) != OutputSize {
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), input, proof) {
		return false
	}
	h := sha512.New()
	h.Write(outputPrefix)
	h.Write(proof)
	return subtle.ConstantTimeCompare(h.Sum(nil), output) == 1
}

// Marshal serializes the keypair as seed || public key for AEAD sealing.
func (k *Keypair) Marshal() []byte {
	out := make([]byte, 0, SeedSize+PublicKeySize)
	out = append(out, k.priv.Seed()...)
	out = append(out, k.pub...)
	return out
}

// Unmarshal reverses Marshal, rejecting blobs whose public key does not
// match the seed (a sign of corruption or tampering that survived AEAD
// verification, which should not happen).
func Unmarshal(b []byte) (*Keypair, error) {
	if len(b) != SeedSize+PublicKeySize {
		return nil, fmt.Errorf("vrf: invalid keypair blob: %d bytes", len(b))
	}
	kp, err := FromSeed(b[:SeedSize])
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(kp.pub, b[SeedSize:]) != 1 {
		return nil, fmt.Errorf("vrf: keypair blob public key mismatch")
	}
	return kp, nil
}

// Zeroize overwrites the private key material. Best-effort: the Go runtime
// may have copied the backing arrays, but the canonical copies are cleared.
func (k *Keypair) Zeroize() {
	for i := range k.priv {
		k.priv[i] = 0
	}
}
