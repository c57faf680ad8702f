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

// Package webauthn defines the SDK's interface to the WebAuthn ceremony
// collaborator. The ceremony itself — navigator.credentials in a browser, a
// platform authenticator elsewhere — is external; this package only models
// what the SDK consumes from it: the PRF extension outputs a successful
// ceremony yields for a given challenge.
package webauthn

import (
	"context"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// PrfOutputSize is the size in bytes of each PRF extension output.
const PrfOutputSize = 32

// DualPrfOutputs carries the two PRF evaluations the SDK derives key
// material from. The outputs are independent PRF salts on the same
// credential: one feeds the ChaCha20 at-rest encryption key, the other the
// deterministic Ed25519 VRF keypair derivation. Keeping them separate means
// compromising the at-rest key never reveals the VRF keypair seed.
type DualPrfOutputs struct {
	ChaCha20PrfOutput []byte
	Ed25519PrfOutput  []byte
}

// Validate checks both outputs are present and of the expected size.
func (d *DualPrfOutputs) Validate() error {
	if len(d.ChaCha20PrfOutput) != PrfOutputSize || len(d.Ed25519PrfOutput) != PrfOutputSize {
		return ErrInvalidPrfOutputs
	}
	return nil
}

// Zeroize overwrites both PRF outputs. Best-effort, like all in-memory key
// hygiene in this SDK.
func (d *DualPrfOutputs) Zeroize() {
	for i := range d.ChaCha20PrfOutput {
		d.ChaCha20PrfOutput[i] = 0
	}
	for i := range d.Ed25519PrfOutput {
		d.Ed25519PrfOutput[i] = 0
	}
}

// CeremonyResult is what the SDK consumes from a completed WebAuthn
// ceremony.
type CeremonyResult struct {
	// CredentialID identifies the credential that produced the assertion.
	CredentialID []byte

	// PrfOutputs are the PRF extension evaluations for this credential.
	PrfOutputs DualPrfOutputs
}

// Authenticator abstracts the WebAuthn ceremony collaborator. Both methods
// block for the duration of the user interaction and honor context
// cancellation; a user-cancelled ceremony returns ErrCeremonyCancelled.
type Authenticator interface {
	// Register runs a credential-creation ceremony with the PRF extension
	// enabled, using the given VRF-derived challenge.
	Register(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) (*CeremonyResult, error)

	// Authenticate runs an assertion ceremony against an existing
	// credential for the account, evaluating the PRF extension.
	Authenticate(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) (*CeremonyResult, error)
}
