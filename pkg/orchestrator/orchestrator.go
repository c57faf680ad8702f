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

// Package orchestrator sequences the SDK's multi-party flows: it is the
// only layer that talks to the VRF worker, the WebAuthn authenticator, the
// relay, and record storage together. The worker stays free of network and
// ceremony I/O; this package shuttles round-trip results into it.
package orchestrator

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/web3authn/go-vrf-sdk/pkg/logging"
	"github.com/web3authn/go-vrf-sdk/pkg/metrics"
	"github.com/web3authn/go-vrf-sdk/pkg/relay"
	"github.com/web3authn/go-vrf-sdk/pkg/storage"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"github.com/web3authn/go-vrf-sdk/pkg/vrf"
	"github.com/web3authn/go-vrf-sdk/pkg/vrfworker"
	"github.com/web3authn/go-vrf-sdk/pkg/webauthn"
)

// BlockRef anchors a challenge to recent chain state.
type BlockRef struct {
	Height uint64
	Hash   []byte
}

// LoginMethod records which unlock path succeeded.
type LoginMethod string

const (
	// LoginMethodSilent means the Shamir 3-pass path unlocked the keypair
	// without a WebAuthn ceremony.
	LoginMethodSilent LoginMethod = "silent"

	// LoginMethodWebAuthn means a PRF ceremony unlocked the keypair.
	LoginMethodWebAuthn LoginMethod = "webauthn"
)

// RegisterResult is the outcome of a completed registration.
type RegisterResult struct {
	VrfPublicKeyB64u   string
	CredentialIDB64u   string
	SilentLoginEnabled bool
}

// LoginResult is the outcome of a completed login.
type LoginResult struct {
	VrfPublicKeyB64u string
	Method           LoginMethod
}

// Config wires the orchestrator's collaborators.
type Config struct {
	// Worker is the VRF session worker. Required.
	Worker *vrfworker.Worker

	// Records persists per-device VRF records. Required.
	Records *storage.RecordStore

	// Authenticator runs WebAuthn ceremonies. Required.
	Authenticator webauthn.Authenticator

	// Relay enables the Shamir silent-login path. Optional: without it,
	// every login runs a WebAuthn ceremony.
	Relay relay.Client

	// RpID is the relying party ID baked into challenge inputs.
	RpID string

	// Logger defaults to logging.DefaultLogger.
	Logger *logging.Logger

	// Rand is the randomness source for assertion challenges.
	Rand io.Reader

	// Now overrides the clock, used by tests.
	Now func() time.Time
}

// Orchestrator drives registration, login, challenge generation, and
// logout for one worker session.
type Orchestrator struct {
	worker        *vrfworker.Worker
	records       *storage.RecordStore
	authenticator webauthn.Authenticator
	relay         relay.Client
	rpID          string
	logger        *logging.Logger
	rng           io.Reader
	now           func() time.Time

	// loginBusy serializes unlock attempts above the worker, so a racing
	// caller fails fast instead of queueing a ceremony.
	loginBusy atomic.Bool
}

// New validates the config and creates an orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator: config is required")
	}
	if cfg.Worker == nil {
		return nil, fmt.Errorf("orchestrator: worker is required")
	}
	if cfg.Records == nil {
		return nil, fmt.Errorf("orchestrator: record store is required")
	}
	if cfg.Authenticator == nil {
		return nil, fmt.Errorf("orchestrator: authenticator is required")
	}
	if cfg.RpID == "" {
		return nil, fmt.Errorf("orchestrator: rpID is required")
	}

	o := &Orchestrator{
		worker:        cfg.Worker,
		records:       cfg.Records,
		authenticator: cfg.Authenticator,
		relay:         cfg.Relay,
		rpID:          cfg.RpID,
		logger:        cfg.Logger,
		rng:           cfg.Rand,
		now:           cfg.Now,
	}
	if o.logger == nil {
		o.logger = logging.DefaultLogger()
	}
	if o.rng == nil {
		o.rng = rand.Reader
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

func (o *Orchestrator) challengeInput(accountID types.AccountID, block BlockRef) *vrf.ChallengeInput {
	return &vrf.ChallengeInput{
		AccountID:   accountID,
		RpID:        o.rpID,
		BlockHeight: block.Height,
		BlockHash:   block.Hash,
		Timestamp:   o.now().Unix(),
	}
}

// Register runs the full registration flow for a new device:
//
//  1. bootstrap a throwaway VRF keypair and evaluate the registration
//     challenge with it;
//  2. run the WebAuthn creation ceremony, harvesting both PRF outputs;
//  3. deterministically derive the account keypair from the PRF outputs
//     and seal it for storage;
//  4. when a relay is configured, register a server lock so later logins
//     can skip the ceremony;
//  5. persist the record.
//
// A cancelled or failed ceremony persists nothing. A failed relay round
// trip degrades to a record without silent login rather than failing the
// registration; a cancelled context aborts it entirely.
func (o *Orchestrator) Register(ctx context.Context, accountID types.AccountID, device types.DeviceNumber, block BlockRef) (*RegisterResult, error) {
	if err := accountID.Validate(); err != nil {
		return nil, err
	}

	boot, err := o.worker.GenerateVrfKeypairBootstrap(ctx, &vrfworker.GenerateBootstrapRequest{
		VrfInputData: o.challengeInput(accountID, block),
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: bootstrap: %w", err)
	}

	webauthnChallenge, err := boot.VrfChallengeData.WebAuthnChallenge()
	if err != nil {
		return nil, err
	}
	ceremony, err := o.authenticator.Register(ctx, accountID, webauthnChallenge)
	if err != nil {
		// Drop the bootstrap keypair; nothing has been persisted.
		_ = o.worker.Logout(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("orchestrator: registration ceremony: %w", err)
	}
	defer ceremony.PrfOutputs.Zeroize()

	derived, err := o.worker.DeriveVrfKeypairFromPrf(ctx, &vrfworker.DeriveRequest{
		NearAccountID:         accountID,
		ChaCha20PrfOutputB64u: types.EncodeB64u(ceremony.PrfOutputs.ChaCha20PrfOutput),
		Ed25519PrfOutputB64u:  types.EncodeB64u(ceremony.PrfOutputs.Ed25519PrfOutput),
		SaveInMemory:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: derive keypair: %w", err)
	}

	record := &storage.VrfRecord{
		AccountID:           accountID,
		DeviceNumber:        device,
		CredentialIDB64u:    types.EncodeB64u(ceremony.CredentialID),
		VrfPublicKeyB64u:    derived.VrfPublicKeyB64u,
		EncryptedVrfKeypair: derived.EncryptedVrfKeypair,
	}

	if o.relay != nil {
		serverHalf, err := o.registerServerLock(ctx, accountID)
		switch {
		case err == nil:
			record.ServerEncryptedVrfKeypair = serverHalf
		case ctx.Err() != nil:
			// The caller walked away mid-transaction; persist nothing.
			return nil, ctx.Err()
		default:
			o.logger.Warn("server lock registration failed, silent login disabled",
				"account", accountID.String(), "error", err.Error())
		}
	}

	if err := o.records.Save(record); err != nil {
		return nil, fmt.Errorf("orchestrator: persist record: %w", err)
	}

	o.logger.Info("registration complete",
		"account", accountID.String(),
		"device", int(device),
		"silentLogin", record.ServerEncryptedVrfKeypair != nil)
	return &RegisterResult{
		VrfPublicKeyB64u:   derived.VrfPublicKeyB64u,
		CredentialIDB64u:   record.CredentialIDB64u,
		SilentLoginEnabled: record.ServerEncryptedVrfKeypair != nil,
	}, nil
}

// registerServerLock runs the three-step lock registration: seal the
// keypair under a fresh KEK, have the relay apply its lock, and unblind the
// client exponent. The returned half goes into the persisted record.
func (o *Orchestrator) registerServerLock(ctx context.Context, accountID types.AccountID) (*types.ServerEncryptedVrfKeypair, error) {
	enc, err := o.worker.ShamirClientEncryptCurrentVrfKeypair(ctx, &vrfworker.ShamirEncryptRequest{
		NearAccountID: accountID,
	})
	if err != nil {
		return nil, err
	}

	applied, err := o.relay.ApplyServerLock(ctx, enc.KekCB64u)
	if err != nil {
		return nil, err
	}

	fin, err := o.worker.ShamirFinalizeServerLock(ctx, &vrfworker.ShamirFinalizeRequest{
		KekCSB64u: applied.KekCSB64u,
	})
	if err != nil {
		return nil, err
	}

	return &types.ServerEncryptedVrfKeypair{
		CiphertextVrfB64u: enc.CiphertextVrfB64u,
		KekSB64u:          fin.KekSB64u,
		ServerKeyID:       applied.ServerKeyID,
	}, nil
}

// Login unlocks the account's VRF session. When the record carries a
// server-locked half and a relay is configured, the silent Shamir path runs
// first: one relay round trip and no user interaction. Any failure there
// falls back to a WebAuthn PRF ceremony; silent login is an optimization,
// never a gate.
func (o *Orchestrator) Login(ctx context.Context, accountID types.AccountID, device types.DeviceNumber) (*LoginResult, error) {
	if err := accountID.Validate(); err != nil {
		return nil, err
	}
	if !o.loginBusy.CompareAndSwap(false, true) {
		return nil, vrfworker.ErrAlreadyUnlocking
	}
	defer o.loginBusy.Store(false)

	record, err := o.records.Get(accountID, device)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load record: %w", err)
	}

	if record.ServerEncryptedVrfKeypair != nil && o.relay != nil {
		result, err := o.silentLogin(ctx, accountID, record.ServerEncryptedVrfKeypair)
		metrics.RecordOperation(metrics.OpSilentLogin, err)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			// The worker may have entered its unlocking state before the
			// cancellation was observed; reset it so the next login starts
			// clean.
			_ = o.worker.Logout(context.WithoutCancel(ctx))
			return nil, ctx.Err()
		}
		o.logger.Debug("silent login failed, falling back to ceremony",
			"account", accountID.String(), "error", err.Error())
	}

	result, err := o.ceremonyLogin(ctx, accountID, record)
	metrics.RecordOperation(metrics.OpCeremonyLogin, err)
	return result, err
}

// silentLogin runs the two worker halves of the Shamir unlock around one
// relay round trip.
func (o *Orchestrator) silentLogin(ctx context.Context, accountID types.AccountID, half *types.ServerEncryptedVrfKeypair) (*LoginResult, error) {
	prep, err := o.worker.ShamirPrepareDecryptVrfKeypair(ctx, &vrfworker.ShamirPrepareDecryptRequest{
		KekSB64u: half.KekSB64u,
	})
	if err != nil {
		return nil, err
	}

	removed, err := o.relay.RemoveServerLock(ctx, prep.KekCSB64u, half.ServerKeyID)
	if err != nil {
		// The worker is parked in its unlocking state; reset it so the
		// ceremony fallback is not rejected.
		_ = o.worker.Logout(context.WithoutCancel(ctx))
		return nil, err
	}

	dec, err := o.worker.ShamirClientDecryptVrfKeypair(ctx, &vrfworker.ShamirDecryptRequest{
		NearAccountID:     accountID,
		KekSB64u:          removed.KekCB64u,
		CiphertextVrfB64u: half.CiphertextVrfB64u,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("silent login", "account", accountID.String())
	return &LoginResult{
		VrfPublicKeyB64u: dec.VrfPublicKeyB64u,
		Method:           LoginMethodSilent,
	}, nil
}

// ceremonyLogin runs a WebAuthn assertion and unlocks the stored record
// with its ChaCha20 PRF output.
func (o *Orchestrator) ceremonyLogin(ctx context.Context, accountID types.AccountID, record *storage.VrfRecord) (*LoginResult, error) {
	challenge := make(protocol.URLEncodedBase64, 32)
	if _, err := io.ReadFull(o.rng, challenge); err != nil {
		return nil, fmt.Errorf("orchestrator: assertion challenge: %w", err)
	}

	ceremony, err := o.authenticator.Authenticate(ctx, accountID, challenge)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: login ceremony: %w", err)
	}
	defer ceremony.PrfOutputs.Zeroize()

	unlocked, err := o.worker.UnlockVrfKeypair(ctx, &vrfworker.UnlockRequest{
		NearAccountID:         accountID,
		EncryptedVrfKeypair:   record.EncryptedVrfKeypair,
		ChaCha20PrfOutputB64u: types.EncodeB64u(ceremony.PrfOutputs.ChaCha20PrfOutput),
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("ceremony login", "account", accountID.String())
	return &LoginResult{
		VrfPublicKeyB64u: unlocked.VrfPublicKeyB64u,
		Method:           LoginMethodWebAuthn,
	}, nil
}

// GenerateChallenge evaluates the unlocked session's VRF over fresh block
// state, consuming one session use.
func (o *Orchestrator) GenerateChallenge(ctx context.Context, accountID types.AccountID, block BlockRef) (*vrf.Challenge, error) {
	resp, err := o.worker.GenerateVrfChallenge(ctx, &vrfworker.ChallengeRequest{
		VrfInputData: o.challengeInput(accountID, block),
	})
	if err != nil {
		return nil, err
	}
	return resp.VrfChallengeData, nil
}

// Status reports the worker session state.
func (o *Orchestrator) Status(ctx context.Context) (*vrfworker.StatusResponse, error) {
	return o.worker.CheckVrfStatus(ctx)
}

// Logout locks the session. The persisted record is untouched; the next
// Login recovers it.
func (o *Orchestrator) Logout(ctx context.Context) error {
	return o.worker.Logout(ctx)
}

// DeleteRecord removes the persisted record for one device and locks the
// session. The account must re-register to log in again on that device.
func (o *Orchestrator) DeleteRecord(ctx context.Context, accountID types.AccountID, device types.DeviceNumber) error {
	if err := o.worker.Logout(ctx); err != nil {
		return err
	}
	if err := o.records.Delete(accountID, device); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("orchestrator: delete record: %w", err)
	}
	return nil
}

// SilentLoginAvailable reports whether a record exists with the
// server-locked half needed for the Shamir path.
func (o *Orchestrator) SilentLoginAvailable(accountID types.AccountID, device types.DeviceNumber) bool {
	if o.relay == nil {
		return false
	}
	record, err := o.records.Get(accountID, device)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			o.logger.Debug("record lookup failed", "error", err.Error())
		}
		return false
	}
	return record.ServerEncryptedVrfKeypair != nil
}
