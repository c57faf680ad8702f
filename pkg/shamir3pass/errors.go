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

package shamir3pass

import "errors"

var (
	// ErrInvalidPrime is returned when the configured modulus is malformed,
	// undersized, or not prime.
	ErrInvalidPrime = errors.New("shamir3pass: invalid prime configuration")

	// ErrExponentSampling is returned when no invertible exponent could be
	// sampled within the iteration bound. With a safe prime this is
	// practically impossible and indicates a broken prime configuration.
	ErrExponentSampling = errors.New("shamir3pass: exponent sampling failed")

	// ErrMalformedScalar is returned when a wire scalar fails to decode or
	// is outside the group (zero, or >= P).
	ErrMalformedScalar = errors.New("shamir3pass: malformed scalar")
)
