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

package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3authn/go-vrf-sdk/pkg/storage"
	"github.com/web3authn/go-vrf-sdk/pkg/storage/memory"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

func testRecord(account types.AccountID, device types.DeviceNumber) *storage.VrfRecord {
	return &storage.VrfRecord{
		AccountID:        account,
		DeviceNumber:     device,
		CredentialIDB64u: types.EncodeB64u([]byte("credential-id")),
		VrfPublicKeyB64u: types.EncodeB64u(make([]byte, 32)),
		EncryptedVrfKeypair: &types.EncryptedVrfKeypair{
			EncryptedVrfDataB64u: types.EncodeB64u([]byte("ciphertext")),
			ChaCha20NonceB64u:    types.EncodeB64u(make([]byte, 24)),
		},
	}
}

func TestRecordStoreRoundTrip(t *testing.T) {
	store := storage.NewRecordStore(memory.New())

	rec := testRecord("alice.testnet", 1)
	require.NoError(t, store.Save(rec))
	assert.False(t, rec.UpdatedAt.IsZero())

	got, err := store.Get("alice.testnet", 1)
	require.NoError(t, err)
	assert.Equal(t, rec.VrfPublicKeyB64u, got.VrfPublicKeyB64u)
	assert.Equal(t, rec.EncryptedVrfKeypair, got.EncryptedVrfKeypair)
	assert.Nil(t, got.ServerEncryptedVrfKeypair)
	assert.WithinDuration(t, time.Now(), got.UpdatedAt, time.Minute)

	require.NoError(t, store.Delete("alice.testnet", 1))
	_, err = store.Get("alice.testnet", 1)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStoreServerEncryptedHalf(t *testing.T) {
	store := storage.NewRecordStore(memory.New())

	rec := testRecord("alice.testnet", 1)
	rec.ServerEncryptedVrfKeypair = &types.ServerEncryptedVrfKeypair{
		CiphertextVrfB64u: types.EncodeB64u([]byte("shamir-ciphertext")),
		KekSB64u:          types.EncodeB64u([]byte("kek-s")),
		ServerKeyID:       "11111111-2222-3333-4444-555555555555",
	}
	require.NoError(t, store.Save(rec))

	got, err := store.Get("alice.testnet", 1)
	require.NoError(t, err)
	require.NotNil(t, got.ServerEncryptedVrfKeypair)
	assert.Equal(t, rec.ServerEncryptedVrfKeypair.KekSB64u, got.ServerEncryptedVrfKeypair.KekSB64u)
	assert.Equal(t, rec.ServerEncryptedVrfKeypair.ServerKeyID, got.ServerEncryptedVrfKeypair.ServerKeyID)
}

func TestRecordStoreValidation(t *testing.T) {
	store := storage.NewRecordStore(memory.New())

	tests := []struct {
		name   string
		mutate func(*storage.VrfRecord)
	}{
		{"invalid account", func(r *storage.VrfRecord) { r.AccountID = "" }},
		{"zero device", func(r *storage.VrfRecord) { r.DeviceNumber = 0 }},
		{"missing public key", func(r *storage.VrfRecord) { r.VrfPublicKeyB64u = "" }},
		{"missing keypair", func(r *storage.VrfRecord) { r.EncryptedVrfKeypair = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("alice.testnet", 1)
			tt.mutate(rec)
			require.Error(t, store.Save(rec))
		})
	}

	require.Error(t, store.Save(nil))
}

func TestRecordStoreListPerDevice(t *testing.T) {
	store := storage.NewRecordStore(memory.New())

	require.NoError(t, store.Save(testRecord("alice.testnet", 1)))
	require.NoError(t, store.Save(testRecord("alice.testnet", 2)))
	require.NoError(t, store.Save(testRecord("bob.testnet", 1)))

	records, err := store.List("alice.testnet")
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, types.AccountID("alice.testnet"), rec.AccountID)
	}
}

func TestRecordStoreOverwriteSameDevice(t *testing.T) {
	store := storage.NewRecordStore(memory.New())

	first := testRecord("alice.testnet", 1)
	require.NoError(t, store.Save(first))

	second := testRecord("alice.testnet", 1)
	second.VrfPublicKeyB64u = types.EncodeB64u([]byte("new-public-key-material-32-bytes"))
	require.NoError(t, store.Save(second))

	got, err := store.Get("alice.testnet", 1)
	require.NoError(t, err)
	assert.Equal(t, second.VrfPublicKeyB64u, got.VrfPublicKeyB64u)

	records, err := store.List("alice.testnet")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
