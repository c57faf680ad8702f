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

package webauthn

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// MockAuthenticator simulates a PRF-capable authenticator for testing.
// PRF outputs are an HMAC over the account ID and salt label, so the mock
// behaves like a real authenticator: the same credential and account always
// evaluate to the same outputs, and different accounts diverge.
type MockAuthenticator struct {
	// Secret is the mock credential's PRF secret. Generated randomly by
	// NewMockAuthenticator; fix it to make outputs reproducible across
	// instances.
	Secret []byte

	// CredentialID identifies the mock credential.
	CredentialID []byte

	// CancelNext makes the next ceremony fail with ErrCeremonyCancelled,
	// simulating the user dismissing the prompt.
	CancelNext bool

	// FailNext makes the next ceremony fail with ErrCeremonyFailed.
	FailNext bool

	// registered tracks which accounts have completed Register.
	registered map[types.AccountID]bool
}

// NewMockAuthenticator creates a mock authenticator with a random PRF
// secret and credential ID.
func NewMockAuthenticator() (*MockAuthenticator, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("webauthn: mock secret: %w", err)
	}
	credID := make([]byte, 16)
	if _, err := rand.Read(credID); err != nil {
		return nil, fmt.Errorf("webauthn: mock credential ID: %w", err)
	}
	return &MockAuthenticator{
		Secret:       secret,
		CredentialID: credID,
		registered:   make(map[types.AccountID]bool),
	}, nil
}

// Register simulates a credential-creation ceremony.
func (m *MockAuthenticator) Register(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) (*CeremonyResult, error) {
	if err := m.ceremonyGate(ctx, accountID, challenge); err != nil {
		return nil, err
	}
	m.registered[accountID] = true
	return m.result(accountID), nil
}

// Authenticate simulates an assertion ceremony. Fails with ErrNoCredential
// if Register was never called for the account.
func (m *MockAuthenticator) Authenticate(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) (*CeremonyResult, error) {
	if err := m.ceremonyGate(ctx, accountID, challenge); err != nil {
		return nil, err
	}
	if !m.registered[accountID] {
		return nil, ErrNoCredential
	}
	return m.result(accountID), nil
}

func (m *MockAuthenticator) ceremonyGate(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCeremonyCancelled, err)
	}
	if m.CancelNext {
		m.CancelNext = false
		return ErrCeremonyCancelled
	}
	if m.FailNext {
		m.FailNext = false
		return ErrCeremonyFailed
	}
	if err := accountID.Validate(); err != nil {
		return err
	}
	if len(challenge) == 0 {
		return fmt.Errorf("%w: empty challenge", ErrCeremonyFailed)
	}
	return nil
}

func (m *MockAuthenticator) result(accountID types.AccountID) *CeremonyResult {
	return &CeremonyResult{
		CredentialID: append([]byte(nil), m.CredentialID...),
		PrfOutputs: DualPrfOutputs{
			ChaCha20PrfOutput: m.prf(accountID, "chacha20-key"),
			Ed25519PrfOutput:  m.prf(accountID, "ed25519-seed"),
		},
	}
}

func (m *MockAuthenticator) prf(accountID types.AccountID, salt string) []byte {
	mac := hmac.New(sha256.New, m.Secret)
	mac.Write([]byte(salt))
	mac.Write([]byte(accountID))
	return mac.Sum(nil)
}
