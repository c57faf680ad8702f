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

package vrf

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// inputPrefix domain-separates challenge input hashing.
var inputPrefix = []byte("web3authn/vrf-challenge-input/v1")

// ChallengeInput is the public, replay-resistant material a VRF challenge is
// derived from. Block height and hash anchor the challenge to recent chain
// state so a relying party can bound its age.
type ChallengeInput struct {
	AccountID   types.AccountID
	RpID        string
	BlockHeight uint64
	BlockHash   []byte
	Timestamp   int64
}

// Hash produces the canonical 32-byte VRF input: a SHA-256 over the
// length-prefixed fields. Length prefixes make the encoding injective, so
// distinct inputs cannot collide by field concatenation.
func (ci *ChallengeInput) Hash() []byte {
	h := sha256.New()
	h.Write(inputPrefix)
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField([]byte(ci.AccountID))
	writeField([]byte(ci.RpID))
	var height [8]byte
	binary.BigEndian.PutUint64(height[:], ci.BlockHeight)
	writeField(height[:])
	writeField(ci.BlockHash)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ci.Timestamp))
	writeField(ts[:])
	return h.Sum(nil)
}

// Challenge is an evaluated VRF challenge ready to hand to a WebAuthn
// ceremony. All byte fields are exposed b64u-encoded on the wire.
type Challenge struct {
	VrfInputB64u     string `json:"vrfInputB64u"`
	VrfOutputB64u    string `json:"vrfOutputB64u"`
	VrfProofB64u     string `json:"vrfProofB64u"`
	VrfPublicKeyB64u string `json:"vrfPublicKeyB64u"`
}

// NewChallenge evaluates the keypair's VRF on the canonical hash of ci.
func (k *Keypair) NewChallenge(ci *ChallengeInput) (*Challenge, error) {
	if err := ci.AccountID.Validate(); err != nil {
		return nil, err
	}
	input := ci.Hash()
	output, proof := k.Prove(input)
	return &Challenge{
		VrfInputB64u:     types.EncodeB64u(input),
		VrfOutputB64u:    types.EncodeB64u(output),
		VrfProofB64u:     types.EncodeB64u(proof),
		VrfPublicKeyB64u: k.PublicKeyB64u(),
	}, nil
}

// WebAuthnChallenge returns the first 32 bytes of the VRF output in the form
// the WebAuthn protocol layer expects as a ceremony challenge.
func (c *Challenge) WebAuthnChallenge() (protocol.URLEncodedBase64, error) {
	out, err := types.DecodeB64u(c.VrfOutputB64u)
	if err != nil {
		return nil, fmt.Errorf("vrf: challenge output: %w", err)
	}
	return protocol.URLEncodedBase64(out[:32]), nil
}

// VerifyChallenge checks that a challenge was produced by the holder of the
// embedded public key over the given input material.
func VerifyChallenge(c *Challenge, ci *ChallengeInput) (bool, error) {
	pub, err := types.DecodeB64u(c.VrfPublicKeyB64u)
	if err != nil {
		return false, err
	}
	output, err := types.DecodeB64u(c.VrfOutputB64u)
	if err != nil {
		return false, err
	}
	proof, err := types.DecodeB64u(c.VrfProofB64u)
	if err != nil {
		return false, err
	}
	input, err := types.DecodeB64u(c.VrfInputB64u)
	if err != nil {
		return false, err
	}

	// The input must match the claimed challenge material, not just verify
	// in isolation.
	expected := ci.Hash()
	if len(input) != len(expected) {
		return false, nil
	}
	for i := range input {
		if input[i] != expected[i] {
			return false, nil
		}
	}
	return Verify(pub, input, output, proof), nil
}
