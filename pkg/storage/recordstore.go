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

package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// recordPrefix namespaces VRF records within a shared backend.
const recordPrefix = "records/"

// VrfRecord is the per-device persisted state for one account: the
// PRF-sealed keypair for authenticated unlock, and optionally the
// server-locked copy enabling silent unlock. Both halves are ciphertext;
// losing a record costs nothing but a re-registration.
type VrfRecord struct {
	AccountID        types.AccountID    `json:"nearAccountId"`
	DeviceNumber     types.DeviceNumber `json:"deviceNumber"`
	CredentialIDB64u string             `json:"credentialId,omitempty"`
	VrfPublicKeyB64u string             `json:"vrfPublicKey"`

	EncryptedVrfKeypair       *types.EncryptedVrfKeypair       `json:"encryptedVrfKeypair"`
	ServerEncryptedVrfKeypair *types.ServerEncryptedVrfKeypair `json:"serverEncryptedVrfKeypair,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields a record cannot function without.
func (r *VrfRecord) Validate() error {
	if err := r.AccountID.Validate(); err != nil {
		return err
	}
	if r.DeviceNumber < 1 {
		return fmt.Errorf("%w: device number %d", ErrInvalidID, r.DeviceNumber)
	}
	if r.VrfPublicKeyB64u == "" {
		return fmt.Errorf("%w: missing VRF public key", ErrInvalidData)
	}
	if r.EncryptedVrfKeypair == nil {
		return fmt.Errorf("%w: missing encrypted VRF keypair", ErrInvalidData)
	}
	if err := r.EncryptedVrfKeypair.Validate(); err != nil {
		return err
	}
	if r.ServerEncryptedVrfKeypair != nil {
		if err := r.ServerEncryptedVrfKeypair.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RecordStore persists VrfRecords in a Backend, keyed by account and
// device number.
type RecordStore struct {
	backend Backend
	now     func() time.Time
}

// NewRecordStore wraps a backend in a typed record store.
func NewRecordStore(backend Backend) *RecordStore {
	return &RecordStore{
		backend: backend,
		now:     time.Now,
	}
}

func recordKey(accountID types.AccountID, device types.DeviceNumber) string {
	return fmt.Sprintf("%s%s/%d", recordPrefix, accountID, device)
}

// Save validates and stores a record, stamping UpdatedAt.
func (s *RecordStore) Save(record *VrfRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidData)
	}
	if err := record.Validate(); err != nil {
		return err
	}
	record.UpdatedAt = s.now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return s.backend.Put(recordKey(record.AccountID, record.DeviceNumber), data, DefaultOptions())
}

// Get loads the record for an account and device.
func (s *RecordStore) Get(accountID types.AccountID, device types.DeviceNumber) (*VrfRecord, error) {
	if err := accountID.Validate(); err != nil {
		return nil, err
	}
	data, err := s.backend.Get(recordKey(accountID, device))
	if err != nil {
		return nil, err
	}
	var record VrfRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return &record, nil
}

// Delete removes the record for an account and device.
func (s *RecordStore) Delete(accountID types.AccountID, device types.DeviceNumber) error {
	if err := accountID.Validate(); err != nil {
		return err
	}
	return s.backend.Delete(recordKey(accountID, device))
}

// List returns all records for an account, one per registered device.
func (s *RecordStore) List(accountID types.AccountID) ([]*VrfRecord, error) {
	if err := accountID.Validate(); err != nil {
		return nil, err
	}
	keys, err := s.backend.List(recordPrefix + string(accountID) + "/")
	if err != nil {
		return nil, err
	}

	records := make([]*VrfRecord, 0, len(keys))
	for _, key := range keys {
		data, err := s.backend.Get(key)
		if err != nil {
			return nil, err
		}
		var record VrfRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalidData, key, err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// Close closes the underlying backend.
func (s *RecordStore) Close() error {
	return s.backend.Close()
}
