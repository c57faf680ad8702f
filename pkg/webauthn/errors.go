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

import "errors"

var (
	// ErrCeremonyCancelled is returned when the user dismisses the
	// authenticator prompt.
	ErrCeremonyCancelled = errors.New("webauthn: ceremony cancelled by user")

	// ErrCeremonyFailed is returned when the ceremony fails for any reason
	// other than user cancellation.
	ErrCeremonyFailed = errors.New("webauthn: ceremony failed")

	// ErrNoCredential is returned when no credential exists for the
	// requested account.
	ErrNoCredential = errors.New("webauthn: no credential for account")

	// ErrInvalidPrfOutputs is returned when the authenticator produced
	// missing or malformed PRF extension outputs.
	ErrInvalidPrfOutputs = errors.New("webauthn: invalid PRF outputs")
)
