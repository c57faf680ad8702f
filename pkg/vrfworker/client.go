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
	"context"
	"encoding/json"
	"fmt"
)

// Typed wrappers over Call. Each sends one envelope and decodes the
// correlated response payload.

func call[T any](ctx context.Context, w *Worker, reqType RequestType, payload any) (*T, error) {
	raw, err := w.Call(ctx, reqType, payload)
	if err != nil {
		return nil, err
	}
	var out T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("vrfworker: decode %s response: %w", reqType, err)
		}
	}
	return &out, nil
}

// GenerateVrfKeypairBootstrap creates a fresh random keypair and unlocks
// the session with it.
func (w *Worker) GenerateVrfKeypairBootstrap(ctx context.Context, req *GenerateBootstrapRequest) (*GenerateBootstrapResponse, error) {
	return call[GenerateBootstrapResponse](ctx, w, ReqGenerateVrfKeypairBootstrap, req)
}

// UnlockVrfKeypair decrypts a stored keypair record with a WebAuthn PRF
// output and unlocks the session.
func (w *Worker) UnlockVrfKeypair(ctx context.Context, req *UnlockRequest) (*UnlockResponse, error) {
	return call[UnlockResponse](ctx, w, ReqUnlockVrfKeypair, req)
}

// DeriveVrfKeypairFromPrf deterministically derives the account keypair from
// a PRF output and returns it sealed for persistence.
func (w *Worker) DeriveVrfKeypairFromPrf(ctx context.Context, req *DeriveRequest) (*DeriveResponse, error) {
	return call[DeriveResponse](ctx, w, ReqDeriveVrfKeypairFromPrf, req)
}

// GenerateVrfChallenge evaluates the unlocked keypair over the given input,
// consuming one session use.
func (w *Worker) GenerateVrfChallenge(ctx context.Context, req *ChallengeRequest) (*ChallengeResponse, error) {
	return call[ChallengeResponse](ctx, w, ReqGenerateVrfChallenge, req)
}

// ShamirClientEncryptCurrentVrfKeypair seals the unlocked keypair under a
// fresh KEK and returns the client-blinded KEK for the relay's apply-lock
// endpoint.
func (w *Worker) ShamirClientEncryptCurrentVrfKeypair(ctx context.Context, req *ShamirEncryptRequest) (*ShamirEncryptResponse, error) {
	return call[ShamirEncryptResponse](ctx, w, ReqShamirClientEncryptCurrentVrfKeypair, req)
}

// ShamirFinalizeServerLock delivers the relay's apply-lock response and
// returns the storable server-locked KEK.
func (w *Worker) ShamirFinalizeServerLock(ctx context.Context, req *ShamirFinalizeRequest) (*ShamirFinalizeResponse, error) {
	return call[ShamirFinalizeResponse](ctx, w, ReqShamirFinalizeServerLock, req)
}

// ShamirPrepareDecryptVrfKeypair re-blinds a stored server-locked KEK for
// the relay's remove-lock endpoint, starting an unlock transaction.
func (w *Worker) ShamirPrepareDecryptVrfKeypair(ctx context.Context, req *ShamirPrepareDecryptRequest) (*ShamirPrepareDecryptResponse, error) {
	return call[ShamirPrepareDecryptResponse](ctx, w, ReqShamirPrepareDecryptVrfKeypair, req)
}

// ShamirClientDecryptVrfKeypair finishes an unlock transaction with the
// relay's remove-lock response and unlocks the session.
func (w *Worker) ShamirClientDecryptVrfKeypair(ctx context.Context, req *ShamirDecryptRequest) (*ShamirDecryptResponse, error) {
	return call[ShamirDecryptResponse](ctx, w, ReqShamirClientDecryptVrfKeypair, req)
}

// ConfigureShamirP sets the 3-pass prime. Calling again with the same prime
// is a no-op; a different prime is ErrConfigMismatch.
func (w *Worker) ConfigureShamirP(ctx context.Context, primeB64u string) error {
	_, err := w.Call(ctx, ReqShamirConfigP, &ConfigPRequest{PB64u: primeB64u})
	return err
}

// ConfigureShamirServerUrls records the relay endpoints with the same
// one-shot semantics as ConfigureShamirP.
func (w *Worker) ConfigureShamirServerUrls(ctx context.Context, req *ConfigServerUrlsRequest) error {
	_, err := w.Call(ctx, ReqShamirConfigServerUrls, req)
	return err
}

// CheckVrfStatus reports the session state without consuming a use.
func (w *Worker) CheckVrfStatus(ctx context.Context) (*StatusResponse, error) {
	return call[StatusResponse](ctx, w, ReqCheckVrfStatus, nil)
}

// Logout locks the session and zeroizes key material, including any
// in-flight unlock exponents. Safe to call in any state.
func (w *Worker) Logout(ctx context.Context) error {
	_, err := w.Call(ctx, ReqLogout, nil)
	return err
}
