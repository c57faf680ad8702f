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

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// EncodeScalar encodes a field element as base64url without padding. The
// encoding is canonical: big-endian, left-padded to the full width of the
// prime, so equal elements always encode to equal strings.
func (g *Group) EncodeScalar(x *saferith.Nat) string {
	buf := make([]byte, g.scalarLen)
	x.FillBytes(buf)
	return types.EncodeB64u(buf)
}

// DecodeScalar decodes a base64url wire scalar into a field element.
// Rejects malformed base64, values wider than the prime, zero, and values
// >= P with ErrMalformedScalar. Zero is excluded because it is not a member
// of Z_P^* and would silently absorb every blinding transform.
func (g *Group) DecodeScalar(s string) (*saferith.Nat, error) {
	raw, err := types.DecodeB64u(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScalar, err)
	}
	if len(raw) > g.scalarLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds field width %d", ErrMalformedScalar, len(raw), g.scalarLen)
	}

	x := new(saferith.Nat).SetBytes(raw)
	if _, _, lt := x.CmpMod(g.p); lt != 1 {
		return nil, fmt.Errorf("%w: value not below modulus", ErrMalformedScalar)
	}
	zero := new(saferith.Nat).SetUint64(0)
	if _, eq, _ := x.Cmp(zero); eq == 1 {
		return nil, fmt.Errorf("%w: zero is not a group element", ErrMalformedScalar)
	}
	return x, nil
}
