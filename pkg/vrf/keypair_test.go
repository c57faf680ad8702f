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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndProve(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)

	input := []byte("challenge input")
	output, proof := kp.Prove(input)
	assert.Len(t, output, OutputSize)
	assert.Len(t, proof, ProofSize)
	assert.True(t, Verify(kp.PublicKey(), input, output, proof))
}

func TestProveDeterministic(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)

	input := []byte("same input")
	out1, proof1 := kp.Prove(input)
	out2, proof2 := kp.Prove(input)
	assert.Equal(t, out1, out2)
	assert.Equal(t, proof1, proof2)

	out3, _ := kp.Prove([]byte("different input"))
	assert.NotEqual(t, out1, out3)
}

func TestVerifyRejections(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)
	other, err := Generate(nil)
	require.NoError(t, err)

	input := []byte("input")
	output, proof := kp.Prove(input)

	tests := []struct {
		name              string
		pub, in, out, prf []byte
	}{
		{"wrong public key", other.PublicKey(), input, output, proof},
		{"wrong input", kp.PublicKey(), []byte("other"), output, proof},
		{"tampered proof", kp.PublicKey(), input, output, flipByte(proof)},
		{"tampered output", kp.PublicKey(), input, flipByte(output), proof},
		{"short proof", kp.PublicKey(), input, output, proof[:10]},
		{"short output", kp.PublicKey(), input, output[:10], proof},
		{"short public key", kp.PublicKey()[:10], input, output, proof},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Verify(tt.pub, tt.in, tt.out, tt.prf))
		})
	}
}

func flipByte(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	out[0] ^= 0xFF
	return out
}

func TestDeriveFromPrfDeterministic(t *testing.T) {
	prf := bytes.Repeat([]byte{0x42}, 32)

	kp1, err := DeriveFromPrf(prf, "alice.near")
	require.NoError(t, err)
	kp2, err := DeriveFromPrf(prf, "alice.near")
	require.NoError(t, err)
	assert.Equal(t, kp1.Marshal(), kp2.Marshal(), "same PRF output and account must derive the same keypair")

	kp3, err := DeriveFromPrf(prf, "bob.near")
	require.NoError(t, err)
	assert.NotEqual(t, kp1.PublicKey(), kp3.PublicKey(), "different accounts must derive different keypairs")

	otherPrf := bytes.Repeat([]byte{0x43}, 32)
	kp4, err := DeriveFromPrf(otherPrf, "alice.near")
	require.NoError(t, err)
	assert.NotEqual(t, kp1.PublicKey(), kp4.PublicKey(), "different PRF outputs must derive different keypairs")
}

func TestDeriveFromPrfRejections(t *testing.T) {
	_, err := DeriveFromPrf(nil, "alice.near")
	assert.Error(t, err)

	_, err = DeriveFromPrf([]byte{1, 2, 3}, "")
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)

	blob := kp.Marshal()
	restored, err := Unmarshal(blob)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), restored.PublicKey())

	input := []byte("input")
	wantOut, wantProof := kp.Prove(input)
	gotOut, gotProof := restored.Prove(input)
	assert.Equal(t, wantOut, gotOut)
	assert.Equal(t, wantProof, gotProof)
}

func TestUnmarshalRejections(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)
	blob := kp.Marshal()

	_, err = Unmarshal(blob[:10])
	assert.Error(t, err, "truncated blob")

	corrupt := make([]byte, len(blob))
	copy(corrupt, blob)
	corrupt[SeedSize] ^= 0xFF // public key half no longer matches the seed
	_, err = Unmarshal(corrupt)
	assert.Error(t, err, "mismatched public key")
}

func TestZeroize(t *testing.T) {
	kp, err := Generate(nil)
	require.NoError(t, err)
	kp.Zeroize()

	zero := make([]byte, SeedSize)
	assert.Equal(t, zero, []byte(kp.priv.Seed()), "seed must be cleared")
}
