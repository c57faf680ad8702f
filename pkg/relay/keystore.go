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

package relay

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/web3authn/go-vrf-sdk/pkg/metrics"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
)

// ServerKey is one relay exponent pair. The ID travels to clients so
// records locked under a retired key can still be unlocked after rotation.
type ServerKey struct {
	ID        string
	Key       *shamir3pass.Key
	CreatedAt time.Time
}

// KeyStore holds the relay's server keys: one current key used for new
// locks, plus retired keys kept for records locked before a rotation.
type KeyStore struct {
	mu      sync.RWMutex
	group   *shamir3pass.Group
	rng     io.Reader
	now     func() time.Time
	current *ServerKey
	keys    map[string]*ServerKey
}

// NewKeyStore generates an initial server key in the given group.
func NewKeyStore(group *shamir3pass.Group, rng io.Reader) (*KeyStore, error) {
	if group == nil {
		return nil, fmt.Errorf("relay: key store requires a group")
	}
	if rng == nil {
		rng = rand.Reader
	}
	s := &KeyStore{
		group: group,
		rng:   rng,
		now:   time.Now,
		keys:  make(map[string]*ServerKey),
	}
	if _, err := s.Rotate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the key used for new apply-lock requests.
func (s *KeyStore) Current() *ServerKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Get returns the key with the given ID, current or retired.
func (s *KeyStore) Get(id string) (*ServerKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServerKey, id)
	}
	return key, nil
}

// Rotate generates a fresh current key. Previous keys stay available for
// remove-lock requests until Prune drops them.
func (s *KeyStore) Rotate() (*ServerKey, error) {
	key, err := s.group.GenerateKey(s.rng)
	if err != nil {
		metrics.RecordOperation(metrics.OpRotateServerKey, err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sk := &ServerKey{
		ID:        uuid.NewString(),
		Key:       key,
		CreatedAt: s.now(),
	}
	s.keys[sk.ID] = sk
	s.current = sk
	metrics.RecordOperation(metrics.OpRotateServerKey, nil)
	metrics.SetServerKeyCount(len(s.keys))
	return sk, nil
}

// Prune drops retired keys older than maxAge. The current key is never
// pruned. Returns the number of keys removed; records locked under a
// pruned key can no longer be unlocked silently.
func (s *KeyStore) Prune(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, key := range s.keys {
		if id == s.current.ID {
			continue
		}
		if key.CreatedAt.Before(cutoff) {
			delete(s.keys, id)
			removed++
		}
	}
	metrics.SetServerKeyCount(len(s.keys))
	return removed
}

// Len returns the number of keys held, current included.
func (s *KeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
