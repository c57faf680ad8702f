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

// Package shamir3pass implements the commutative-encryption transforms of the
// Shamir three-pass protocol over the multiplicative group of a shared prime
// field Z_P^*.
//
// Encryption is modular exponentiation: E_k(m) = m^k mod P. Because
// (m^c)^s == (m^s)^c mod P, a client and a server can each apply and later
// remove their own lock in either order without learning the other party's
// exponent:
//
//	client:  kek_c  = seed^c          (blind with fresh random c)
//	server:  kek_cs = kek_c^s         (apply server lock)
//	client:  kek_s  = kek_cs^(c^-1)   (remove client blinding)
//	server:  kek_c' = kek_cs^(d_s)    (remove server lock, d_s = s^-1 mod P-1)
//
// All transforms here are pure and stateless; network round trips and session
// state live in pkg/vrfworker and pkg/relay. Exponents and the values they
// protect are secret-sensitive, so all modular arithmetic uses saferith's
// constant-time naturals. The prime P itself is public and must be
// byte-identical on both sides of the protocol.
package shamir3pass

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

// DefaultPrimeB64u is the 2048-bit MODP prime from RFC 3526 (group 14),
// base64url-encoded big-endian without padding. It is a safe prime, so
// exponent sampling succeeds with overwhelming probability. Client and relay
// server deployments must agree on the exact same prime; a mismatch produces
// undecryptable ciphertext rather than an error.
const DefaultPrimeB64u = "___________JD9qiIWjCNMTGYouA3BzRKQJOCIpnzHQCC76mOxObIlFKCHmONATd" +
	"75UZs806QxswKwpt8l8UN0_hNW1tUcJF5IW1dmJefsb0TELppjftawv_XLb0Brft" +
	"7jhr-1qJn6WunyQRfEsf5kkoZlHs5Fs9wgB8uKFjvwWY2kg2HFXTmmkWP6j9JM9f" +
	"g2VdI9yjrZYcYvNWIIVSu57VKQdwlpZtZww1Tkq8mATxdGwIyhghfDKQXkYuNs47" +
	"4553LBgOhgObJ4Oi7Aeij7XFXfBvTFLJ3ivL9pVYFxg5lUl86pVq5RXSJhiY-gUQ" +
	"FXKOWoqsqmj__________w"

const (
	// MinPrimeBits is the smallest prime size accepted for the shared field.
	MinPrimeBits = 2048

	// maxSampleIterations bounds exponent rejection sampling. For a safe
	// prime the expected iteration count is barely above 2, so exhausting
	// this bound indicates a broken prime configuration.
	maxSampleIterations = 255
)

// Group is the shared prime field all protocol transforms operate in. A Group
// is immutable after construction and safe for concurrent use.
type Group struct {
	primeB64u string
	p         *saferith.Modulus // the shared prime P
	order     *saferith.Modulus // P-1, the order of the exponent group
	scalarLen int               // canonical scalar width in bytes
}

// Key is a blinding exponent pair: E is a unit of Z_(P-1) and D its modular
// inverse, so that blinding with E and then D recovers the original value.
// The same type serves the client exponent (c, c^-1) and the relay server's
// permanent lock (s, d_s). Keys are secret and must never cross the network.
type Key struct {
	E *saferith.Nat
	D *saferith.Nat
}

// NewGroup constructs a Group from a base64url-encoded big-endian prime.
// The prime is validated for size and (probabilistic) primality; a composite
// or undersized modulus is rejected with ErrInvalidPrime.
func NewGroup(primeB64u string) (*Group, error) {
	raw, err := types.DecodeB64u(primeB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrime, err)
	}

	// The prime is public, so big.Int primality testing leaks nothing.
	pBig := new(big.Int).SetBytes(raw)
	if pBig.BitLen() < MinPrimeBits {
		return nil, fmt.Errorf("%w: %d bits (minimum %d)", ErrInvalidPrime, pBig.BitLen(), MinPrimeBits)
	}
	if !pBig.ProbablyPrime(32) {
		return nil, fmt.Errorf("%w: modulus is not prime", ErrInvalidPrime)
	}

	pNat := new(saferith.Nat).SetBytes(raw)
	p := saferith.ModulusFromNat(pNat)

	one := new(saferith.Nat).SetUint64(1)
	orderNat := new(saferith.Nat).Sub(pNat, one, p.BitLen())

	return &Group{
		primeB64u: primeB64u,
		p:         p,
		order:     saferith.ModulusFromNat(orderNat),
		scalarLen: (p.BitLen() + 7) / 8,
	}, nil
}

// DefaultGroup returns the Group over DefaultPrimeB64u.
func DefaultGroup() *Group {
	g, err := NewGroup(DefaultPrimeB64u)
	if err != nil {
		// The constant is validated by tests; failing here means the
		// binary itself is corrupt.
		panic(fmt.Sprintf("shamir3pass: default prime rejected: %v", err))
	}
	return g
}

// PrimeB64u returns the canonical encoding of the group's prime.
func (g *Group) PrimeB64u() string {
	return g.primeB64u
}

// SamePrime reports whether primeB64u denotes byte-for-byte the same prime as
// this group. Used to distinguish idempotent reconfiguration from a prime
// switch.
func (g *Group) SamePrime(primeB64u string) bool {
	return g.primeB64u == primeB64u
}

// GenerateKey samples a fresh blinding exponent coprime to P-1, together with
// its inverse. The trivial exponents 0 and 1 are rejected, since they would
// leave the blinded value equal (or trivially related) to the plaintext.
// Returns ErrExponentSampling if no unit is found within the iteration bound,
// which for a safe prime means the configured prime is broken.
func (g *Group) GenerateKey(rng io.Reader) (*Key, error) {
	if rng == nil {
		rng = rand.Reader
	}

	one := new(saferith.Nat).SetUint64(1)
	buf := make([]byte, (g.order.BitLen()+7)/8)

	for i := 0; i < maxSampleIterations; i++ {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExponentSampling, err)
		}
		e := new(saferith.Nat).SetBytes(buf)
		if _, _, lt := e.CmpMod(g.order); lt != 1 {
			continue
		}
		if _, eq, lt := e.Cmp(one); eq == 1 || lt == 1 {
			// 0 and 1 are no-op blinds.
			continue
		}
		if e.IsUnit(g.order) != 1 {
			continue
		}
		d := new(saferith.Nat).ModInverse(e, g.order)
		return &Key{E: e, D: d}, nil
	}
	return nil, ErrExponentSampling
}

// Blind raises value to the given exponent mod P. Deterministic, no side
// effects; this single operation is every pass of the protocol.
func (g *Group) Blind(value, exponent *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(value, exponent, g.p)
}

// Unblind removes a lock previously applied with key.E.
func (g *Group) Unblind(value *saferith.Nat, key *Key) *saferith.Nat {
	return g.Blind(value, key.D)
}

// ApplyServerLock is the server's second pass: kek_cs = kek_c^s mod P.
func (g *Group) ApplyServerLock(kekC *saferith.Nat, server *Key) *saferith.Nat {
	return g.Blind(kekC, server.E)
}

// RemoveServerLock is the server's inverse pass: kek_c = kek_cs^(d_s) mod P,
// recovering the client-only-blinded value.
func (g *Group) RemoveServerLock(kekCS *saferith.Nat, server *Key) *saferith.Nat {
	return g.Blind(kekCS, server.D)
}
