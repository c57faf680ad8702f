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

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIDValidate(t *testing.T) {
	tests := []struct {
		name    string
		account AccountID
		wantErr bool
	}{
		{"valid", "alice.near", false},
		{"valid subaccount", "wallet.alice.near", false},
		{"empty", "", true},
		{"whitespace", "alice near", true},
		{"tab", "alice\tnear", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestB64uRoundTrip(t *testing.T) {
	data := []byte{0x00, 0x01, 0xFF, 0x7F, 0x80}
	encoded := EncodeB64u(data)
	decoded, err := DecodeB64u(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestDecodeB64uRejectsPadding(t *testing.T) {
	// Raw URL encoding must reject padded input.
	_, err := DecodeB64u("aGVsbG8=")
	assert.ErrorIs(t, err, ErrInvalidBase64)
}

func TestDecodeB64uRejectsStandardAlphabet(t *testing.T) {
	_, err := DecodeB64u("a+b/c")
	assert.ErrorIs(t, err, ErrInvalidBase64)
}

func TestEncryptedVrfKeypairValidate(t *testing.T) {
	valid := &EncryptedVrfKeypair{
		EncryptedVrfDataB64u: EncodeB64u([]byte("ciphertext")),
		ChaCha20NonceB64u:    EncodeB64u(make([]byte, 12)),
	}
	assert.NoError(t, valid.Validate())

	missing := &EncryptedVrfKeypair{ChaCha20NonceB64u: "AAAA"}
	assert.ErrorIs(t, missing.Validate(), ErrMissingField)

	malformed := &EncryptedVrfKeypair{
		EncryptedVrfDataB64u: "!!not-base64!!",
		ChaCha20NonceB64u:    "AAAA",
	}
	assert.ErrorIs(t, malformed.Validate(), ErrInvalidBase64)
}

func TestServerEncryptedVrfKeypairValidate(t *testing.T) {
	valid := &ServerEncryptedVrfKeypair{
		CiphertextVrfB64u: EncodeB64u([]byte("ciphertext")),
		KekSB64u:          EncodeB64u([]byte{0x01, 0x02}),
		ServerKeyID:       "key-1",
		UpdatedAt:         time.Now(),
	}
	assert.NoError(t, valid.Validate())

	missing := &ServerEncryptedVrfKeypair{KekSB64u: "AAAA"}
	assert.ErrorIs(t, missing.Validate(), ErrMissingField)
}
