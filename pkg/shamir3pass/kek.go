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
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"golang.org/x/crypto/hkdf"
)

// kekSeedSize is the entropy of a fresh KEK seed in bytes. The seed lives in
// Z_P^* (any 256-bit value is far below a 2048-bit prime) and the symmetric
// KEK is expanded from it with HKDF.
const kekSeedSize = 32

// kekInfo domain-separates KEK expansion from other HKDF uses of the seed.
var kekInfo = []byte("web3authn/shamir3pass-kek/v1")

// BlindedKEK is the client-side result of the protocol's first pass: a fresh
// KEK seed, the blinded form to send to the relay, and the one-shot client
// exponent pair. Seed and Key stay in process memory for the duration of a
// single lock transaction; only KekC ever crosses the network.
type BlindedKEK struct {
	Seed *saferith.Nat
	KekC *saferith.Nat
	Key  *Key
}

// EncryptKEK generates a fresh KEK seed and blinds it with a fresh random
// client exponent. The exponent is never reused: each lock transaction runs
// this again, so losing the in-memory Key only invalidates the transaction
// in flight.
func (g *Group) EncryptKEK(rng io.Reader) (*BlindedKEK, error) {
	if rng == nil {
		rng = rand.Reader
	}

	key, err := g.GenerateKey(rng)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, kekSeedSize)
	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, fmt.Errorf("shamir3pass: KEK seed: %w", err)
		}
		if !allZero(buf) {
			break
		}
	}
	seed := new(saferith.Nat).SetBytes(buf)

	return &BlindedKEK{
		Seed: seed,
		KekC: g.Blind(seed, key.E),
		Key:  key,
	}, nil
}

// DeriveKEK expands a recovered KEK seed into a 32-byte symmetric key.
// The seed is canonicalized to the field's fixed-width encoding first, so
// both ends of the protocol derive identical keys regardless of how the
// seed value was produced.
func (g *Group) DeriveKEK(seed *saferith.Nat) ([]byte, error) {
	ikm := make([]byte, g.scalarLen)
	seed.FillBytes(ikm)

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, ikm, nil, kekInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("shamir3pass: KEK derivation: %w", err)
	}
	return key, nil
}

func allZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
