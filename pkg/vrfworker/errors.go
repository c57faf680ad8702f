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

import "errors"

var (
	// ErrNotUnlocked is returned by operations that need live key material
	// while the session is Locked.
	ErrNotUnlocked = errors.New("vrfworker: no VRF keypair unlocked in memory")

	// ErrAlreadyUnlocking is returned when an unlock is requested while
	// another unlock transaction is already in flight.
	ErrAlreadyUnlocking = errors.New("vrfworker: unlock already in progress")

	// ErrAlreadyUnlocked is returned when a silent unlock is prepared while
	// the session already holds a live keypair.
	ErrAlreadyUnlocked = errors.New("vrfworker: session already unlocked")

	// ErrSessionExpired is returned when the session TTL has elapsed or its
	// use budget is exhausted; the keypair has been zeroized.
	ErrSessionExpired = errors.New("vrfworker: VRF session expired")

	// ErrNotConfigured is returned by Shamir operations before
	// Shamir3PassConfigP has supplied the prime.
	ErrNotConfigured = errors.New("vrfworker: shamir 3-pass prime not configured")

	// ErrConfigMismatch is returned when a one-shot configuration value is
	// set a second time with a different value.
	ErrConfigMismatch = errors.New("vrfworker: configuration already set with a different value")

	// ErrNoPendingEncrypt is returned when Shamir3PassFinalizeServerLock
	// arrives without a prior ClientEncryptCurrentVrfKeypair in flight.
	ErrNoPendingEncrypt = errors.New("vrfworker: no server-lock registration in flight")

	// ErrNoPendingUnlock is returned when Shamir3PassClientDecryptVrfKeypair
	// arrives without a prior PrepareDecryptVrfKeypair in flight.
	ErrNoPendingUnlock = errors.New("vrfworker: no unlock transaction in flight")

	// ErrDecryptionFailed is returned when sealed keypair material fails to
	// authenticate, typically a wrong PRF output, wrong account binding, or
	// a KEK that did not survive the relay round trip.
	ErrDecryptionFailed = errors.New("vrfworker: VRF keypair decryption failed")

	// ErrInvalidRequest is returned for payloads that fail decoding or
	// field validation.
	ErrInvalidRequest = errors.New("vrfworker: invalid request payload")

	// ErrUnknownRequestType is returned for request types outside the
	// closed enum.
	ErrUnknownRequestType = errors.New("vrfworker: unknown request type")

	// ErrWorkerClosed is returned for requests issued after Close.
	ErrWorkerClosed = errors.New("vrfworker: worker closed")
)

// errorCodes gives every sentinel a stable wire code so callers can match
// failures across the envelope boundary.
var errorCodes = map[error]string{
	ErrNotUnlocked:        "NOT_UNLOCKED",
	ErrAlreadyUnlocking:   "ALREADY_UNLOCKING",
	ErrAlreadyUnlocked:    "ALREADY_UNLOCKED",
	ErrSessionExpired:     "SESSION_EXPIRED",
	ErrNotConfigured:      "NOT_CONFIGURED",
	ErrConfigMismatch:     "CONFIG_MISMATCH",
	ErrNoPendingEncrypt:   "NO_PENDING_ENCRYPT",
	ErrNoPendingUnlock:    "NO_PENDING_UNLOCK",
	ErrDecryptionFailed:   "DECRYPTION_FAILED",
	ErrInvalidRequest:     "INVALID_REQUEST",
	ErrUnknownRequestType: "UNKNOWN_REQUEST_TYPE",
	ErrWorkerClosed:       "WORKER_CLOSED",
}

// codeFor walks the error chain and returns the wire code of the first
// recognized sentinel, or "INTERNAL" when none matches.
func codeFor(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "INTERNAL"
}

// errorForCode maps a wire code back to its sentinel so typed callers can
// use errors.Is on decoded responses. Unknown codes map to nil.
func errorForCode(code string) error {
	for sentinel, c := range errorCodes {
		if c == code {
			return sentinel
		}
	}
	return nil
}
