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

package vrfworker

import (
	"time"

	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
	"github.com/web3authn/go-vrf-sdk/pkg/vrf"
)

// sessionState enumerates the lifecycle of in-memory VRF key material.
type sessionState int

const (
	// stateLocked: no keypair in memory.
	stateLocked sessionState = iota
	// stateUnlocking: a silent unlock transaction is in flight; the pending
	// client exponent is held until the relay response comes back.
	stateUnlocking
	// stateUnlocked: a live keypair is held, bounded by TTL and use count.
	stateUnlocked
)

func (s sessionState) String() string {
	switch s {
	case stateUnlocking:
		return "unlocking"
	case stateUnlocked:
		return "unlocked"
	default:
		return "locked"
	}
}

// SessionPolicy bounds how long and how often an unlocked keypair may be
// used before the worker forces a re-authentication.
type SessionPolicy struct {
	// TTL is the lifetime of an unlocked session. Zero means DefaultTTL.
	TTL time.Duration

	// MaxUses caps challenge generations per unlock. Zero means
	// DefaultMaxUses; negative means unlimited.
	MaxUses int
}

const (
	// DefaultTTL matches the expected length of a login flow with headroom
	// for user interaction, not a long-lived credential.
	DefaultTTL = 30 * time.Minute

	// DefaultMaxUses bounds challenge output per unlock.
	DefaultMaxUses = 100
)

func (p SessionPolicy) ttl() time.Duration {
	if p.TTL <= 0 {
		return DefaultTTL
	}
	return p.TTL
}

func (p SessionPolicy) maxUses() int {
	if p.MaxUses == 0 {
		return DefaultMaxUses
	}
	return p.MaxUses
}

// session is the worker's single mutable state. It is touched only from the
// worker goroutine, so it needs no locking.
type session struct {
	st            sessionState
	keypair       *vrf.Keypair
	expiresAt     time.Time
	usesRemaining int

	// pendingEncrypt holds the client exponent of a server-lock
	// registration between ClientEncryptCurrentVrfKeypair and
	// FinalizeServerLock.
	pendingEncrypt *shamir3pass.Key

	// pendingUnlock holds the client exponent of a silent unlock between
	// PrepareDecryptVrfKeypair and ClientDecryptVrfKeypair.
	pendingUnlock *shamir3pass.Key
}

// unlock installs a live keypair under the policy's budget, replacing any
// previous keypair.
func (s *session) unlock(kp *vrf.Keypair, policy SessionPolicy, now time.Time) {
	if s.keypair != nil && s.keypair != kp {
		s.keypair.Zeroize()
	}
	s.st = stateUnlocked
	s.keypair = kp
	s.expiresAt = now.Add(policy.ttl())
	s.usesRemaining = policy.maxUses()
	s.pendingUnlock = nil
}

// lock zeroizes and drops all key material and in-flight exponents.
func (s *session) lock() {
	if s.keypair != nil {
		s.keypair.Zeroize()
	}
	*s = session{st: stateLocked}
}

// checkLive reports whether the session holds usable key material at the
// given instant. An elapsed TTL locks the session as a side effect, so
// expired keypairs never survive past the first operation that observes
// them.
func (s *session) checkLive(now time.Time) error {
	if s.st != stateUnlocked {
		return ErrNotUnlocked
	}
	if now.After(s.expiresAt) {
		s.lock()
		return ErrSessionExpired
	}
	return nil
}

// consumeUse spends one challenge generation from the session budget.
// Exhausting the budget locks the session.
func (s *session) consumeUse(now time.Time) error {
	if err := s.checkLive(now); err != nil {
		return err
	}
	if s.usesRemaining < 0 {
		return nil
	}
	if s.usesRemaining == 0 {
		s.lock()
		return ErrSessionExpired
	}
	s.usesRemaining--
	return nil
}
