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
	"testing"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChallenge = protocol.URLEncodedBase64("0123456789abcdef0123456789abcdef")

func TestMockRegisterThenAuthenticate(t *testing.T) {
	m, err := NewMockAuthenticator()
	require.NoError(t, err)
	ctx := context.Background()

	reg, err := m.Register(ctx, "alice.near", testChallenge)
	require.NoError(t, err)
	require.NoError(t, reg.PrfOutputs.Validate())

	auth, err := m.Authenticate(ctx, "alice.near", testChallenge)
	require.NoError(t, err)

	assert.Equal(t, reg.PrfOutputs, auth.PrfOutputs,
		"same credential and account must evaluate to the same PRF outputs")
	assert.NotEqual(t, reg.PrfOutputs.ChaCha20PrfOutput, reg.PrfOutputs.Ed25519PrfOutput,
		"the two PRF salts must produce independent outputs")
}

func TestMockAuthenticateUnknownAccount(t *testing.T) {
	m, err := NewMockAuthenticator()
	require.NoError(t, err)

	_, err = m.Authenticate(context.Background(), "nobody.near", testChallenge)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestMockCancellation(t *testing.T) {
	m, err := NewMockAuthenticator()
	require.NoError(t, err)

	m.CancelNext = true
	_, err = m.Register(context.Background(), "alice.near", testChallenge)
	assert.ErrorIs(t, err, ErrCeremonyCancelled)

	// One-shot: the next ceremony succeeds.
	_, err = m.Register(context.Background(), "alice.near", testChallenge)
	assert.NoError(t, err)
}

func TestMockContextCancellation(t *testing.T) {
	m, err := NewMockAuthenticator()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Register(ctx, "alice.near", testChallenge)
	assert.ErrorIs(t, err, ErrCeremonyCancelled)
}

func TestMockEmptyChallenge(t *testing.T) {
	m, err := NewMockAuthenticator()
	require.NoError(t, err)

	_, err = m.Register(context.Background(), "alice.near", nil)
	assert.ErrorIs(t, err, ErrCeremonyFailed)
}

func TestDualPrfOutputsValidate(t *testing.T) {
	valid := DualPrfOutputs{
		ChaCha20PrfOutput: make([]byte, PrfOutputSize),
		Ed25519PrfOutput:  make([]byte, PrfOutputSize),
	}
	assert.NoError(t, valid.Validate())

	short := DualPrfOutputs{
		ChaCha20PrfOutput: make([]byte, 16),
		Ed25519PrfOutput:  make([]byte, PrfOutputSize),
	}
	assert.ErrorIs(t, short.Validate(), ErrInvalidPrfOutputs)
}

func TestDualPrfOutputsZeroize(t *testing.T) {
	d := DualPrfOutputs{
		ChaCha20PrfOutput: []byte{1, 2, 3},
		Ed25519PrfOutput:  []byte{4, 5, 6},
	}
	d.Zeroize()
	assert.Equal(t, []byte{0, 0, 0}, d.ChaCha20PrfOutput)
	assert.Equal(t, []byte{0, 0, 0}, d.Ed25519PrfOutput)
}
