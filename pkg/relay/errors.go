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
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned for malformed request bodies or
	// scalars outside the configured group.
	ErrInvalidRequest = errors.New("relay: invalid request")

	// ErrUnknownServerKey is returned when a remove-lock request names a
	// server key ID the relay no longer holds.
	ErrUnknownServerKey = errors.New("relay: unknown server key")

	// ErrServerRejected is returned by the client when the relay answered
	// with a non-2xx status.
	ErrServerRejected = errors.New("relay: server rejected request")
)

// NetworkError wraps a transport-level failure reaching the relay. The
// client makes exactly one attempt per call; retry policy belongs to the
// caller, which must treat an in-flight failure as an aborted unlock
// transaction.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("relay: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
