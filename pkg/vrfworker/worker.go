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

// Package vrfworker holds VRF key material in an isolated, single-threaded
// worker. All access goes through an asynchronous message channel: requests
// carry an integer type discriminant and a correlation ID, and the worker
// goroutine processes them strictly in order. Raw private keys never cross
// the channel in either direction.
//
// The worker also runs the client side of the Shamir 3-pass unlock
// protocol. Network round trips to the relay happen outside the worker; the
// worker performs the local halves (blind, unblind, seal, open) and holds
// the one-shot client exponents between them.
package vrfworker

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/web3authn/go-vrf-sdk/pkg/crypto/chacha20poly1305"
	"github.com/web3authn/go-vrf-sdk/pkg/logging"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"github.com/web3authn/go-vrf-sdk/pkg/vrf"
)

// prfOutputSize is the length of a WebAuthn PRF extension output.
const prfOutputSize = 32

// atRestInfo domain-separates the at-rest encryption key from other uses of
// the PRF output.
var atRestInfo = []byte("web3authn/vrf-at-rest-key/v1")

// Default relay routes, used when Shamir3PassConfigServerUrls leaves them
// empty.
const (
	DefaultApplyServerLockRoute  = "/vrf/apply-server-lock"
	DefaultRemoveServerLockRoute = "/vrf/remove-server-lock"
)

type envelope struct {
	req   Request
	reply chan Response
}

// Worker owns a single VRF session. Create one per account context with New
// and release it with Close.
type Worker struct {
	requests  chan envelope
	done      chan struct{}
	closeOnce sync.Once
	nextID    atomic.Uint64

	policy SessionPolicy
	now    func() time.Time
	rng    io.Reader
	logger *logging.Logger

	// Owned by the worker goroutine after New returns.
	sess  session
	group *shamir3pass.Group
	relay *ConfigServerUrlsRequest
}

// Option configures a Worker.
type Option func(*Worker)

// WithClock replaces the worker's time source. Tests use this to drive TTL
// expiry deterministically.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithLogger replaces the default logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithRand replaces the randomness source used for key and exponent
// generation.
func WithRand(r io.Reader) Option {
	return func(w *Worker) { w.rng = r }
}

// New starts a worker goroutine with the given session policy.
func New(policy SessionPolicy, opts ...Option) *Worker {
	w := &Worker{
		requests: make(chan envelope),
		done:     make(chan struct{}),
		policy:   policy,
		now:      time.Now,
		rng:      rand.Reader,
		logger:   logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sess = session{st: stateLocked}
	go w.loop()
	return w
}

// Close stops the worker and zeroizes any in-memory key material. Requests
// issued after Close fail with ErrWorkerClosed.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.done) })
}

func (w *Worker) loop() {
	for {
		select {
		case <-w.done:
			w.sess.lock()
			return
		case env := <-w.requests:
			env.reply <- w.handle(env.req)
		}
	}
}

// Call sends one request to the worker and waits for its correlated
// response. It is safe for concurrent use; the worker serializes all
// requests.
func (w *Worker) Call(ctx context.Context, reqType RequestType, payload any) (json.RawMessage, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		raw = b
	}

	env := envelope{
		req: Request{
			ID:      w.nextID.Add(1),
			Type:    reqType,
			Payload: raw,
		},
		reply: make(chan Response, 1),
	}

	select {
	case w.requests <- env:
	case <-w.done:
		return nil, ErrWorkerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-env.reply:
		if !resp.OK {
			if sentinel := errorForCode(resp.ErrorCode); sentinel != nil {
				return nil, sentinel
			}
			return nil, fmt.Errorf("vrfworker: %s", resp.Error)
		}
		return resp.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handle runs on the worker goroutine and dispatches on the closed request
// type enum.
func (w *Worker) handle(req Request) Response {
	result, err := w.dispatch(req)
	if err != nil {
		w.logger.Debug("vrf worker request failed",
			"type", req.Type.String(), "id", req.ID, "error", err.Error())
		return Response{
			ID:        req.ID,
			Type:      req.Type,
			OK:        false,
			ErrorCode: codeFor(err),
			Error:     err.Error(),
		}
	}

	resp := Response{ID: req.ID, Type: req.Type, OK: true}
	if result != nil {
		b, merr := json.Marshal(result)
		if merr != nil {
			return Response{
				ID:        req.ID,
				Type:      req.Type,
				OK:        false,
				ErrorCode: "INTERNAL",
				Error:     merr.Error(),
			}
		}
		resp.Payload = b
	}
	return resp
}

func (w *Worker) dispatch(req Request) (any, error) {
	switch req.Type {
	case ReqGenerateVrfKeypairBootstrap:
		var p GenerateBootstrapRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleBootstrap(&p)
	case ReqUnlockVrfKeypair:
		var p UnlockRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleUnlock(&p)
	case ReqDeriveVrfKeypairFromPrf:
		var p DeriveRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleDerive(&p)
	case ReqGenerateVrfChallenge:
		var p ChallengeRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleChallenge(&p)
	case ReqShamirClientEncryptCurrentVrfKeypair:
		var p ShamirEncryptRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleShamirEncrypt(&p)
	case ReqShamirFinalizeServerLock:
		var p ShamirFinalizeRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleShamirFinalize(&p)
	case ReqShamirPrepareDecryptVrfKeypair:
		var p ShamirPrepareDecryptRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleShamirPrepareDecrypt(&p)
	case ReqShamirClientDecryptVrfKeypair:
		var p ShamirDecryptRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleShamirDecrypt(&p)
	case ReqShamirConfigP:
		var p ConfigPRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleConfigP(&p)
	case ReqShamirConfigServerUrls:
		var p ConfigServerUrlsRequest
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return w.handleConfigServerUrls(&p)
	case ReqCheckVrfStatus:
		return w.handleStatus()
	case ReqLogout:
		w.sess.lock()
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownRequestType, req.Type)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// =============================================================================
// Handlers (worker goroutine only)
// =============================================================================

func (w *Worker) handleBootstrap(req *GenerateBootstrapRequest) (*GenerateBootstrapResponse, error) {
	if w.sess.st == stateUnlocking {
		return nil, ErrAlreadyUnlocking
	}

	kp, err := vrf.Generate(w.rng)
	if err != nil {
		return nil, err
	}
	now := w.now()
	w.sess.unlock(kp, w.policy, now)

	resp := &GenerateBootstrapResponse{VrfPublicKeyB64u: kp.PublicKeyB64u()}
	if req.VrfInputData != nil {
		if err := w.sess.consumeUse(now); err != nil {
			return nil, err
		}
		ch, err := kp.NewChallenge(req.VrfInputData)
		if err != nil {
			return nil, err
		}
		resp.VrfChallengeData = ch
	}

	w.logger.Debug("bootstrap VRF keypair generated", "publicKey", resp.VrfPublicKeyB64u)
	return resp, nil
}

func (w *Worker) handleUnlock(req *UnlockRequest) (*UnlockResponse, error) {
	if w.sess.st == stateUnlocking {
		return nil, ErrAlreadyUnlocking
	}
	if err := req.NearAccountID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.EncryptedVrfKeypair == nil {
		return nil, fmt.Errorf("%w: missing encryptedVrfKeypair", ErrInvalidRequest)
	}
	if err := req.EncryptedVrfKeypair.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	prf, err := decodePrfOutput(req.ChaCha20PrfOutputB64u)
	if err != nil {
		return nil, err
	}
	defer zero(prf)

	key := deriveAtRestKey(prf, req.NearAccountID)
	defer zero(key)

	kp, err := openKeypairRecord(req.EncryptedVrfKeypair, key, req.NearAccountID)
	if err != nil {
		return nil, err
	}

	w.sess.unlock(kp, w.policy, w.now())
	w.logger.Info("VRF keypair unlocked",
		"account", req.NearAccountID.String(), "publicKey", kp.PublicKeyB64u())
	return &UnlockResponse{VrfPublicKeyB64u: kp.PublicKeyB64u()}, nil
}

func (w *Worker) handleDerive(req *DeriveRequest) (*DeriveResponse, error) {
	if req.SaveInMemory && w.sess.st == stateUnlocking {
		return nil, ErrAlreadyUnlocking
	}
	if err := req.NearAccountID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	chachaPrf, err := decodePrfOutput(req.ChaCha20PrfOutputB64u)
	if err != nil {
		return nil, err
	}
	defer zero(chachaPrf)
	ed25519Prf, err := decodePrfOutput(req.Ed25519PrfOutputB64u)
	if err != nil {
		return nil, err
	}
	defer zero(ed25519Prf)

	kp, err := vrf.DeriveFromPrf(ed25519Prf, req.NearAccountID)
	if err != nil {
		return nil, err
	}

	key := deriveAtRestKey(chachaPrf, req.NearAccountID)
	defer zero(key)
	sealed, err := sealKeypairRecord(kp, key, req.NearAccountID)
	if err != nil {
		return nil, err
	}

	resp := &DeriveResponse{
		VrfPublicKeyB64u:    kp.PublicKeyB64u(),
		EncryptedVrfKeypair: sealed,
	}
	if req.VrfInputData != nil {
		ch, err := kp.NewChallenge(req.VrfInputData)
		if err != nil {
			return nil, err
		}
		resp.VrfChallengeData = ch
	}

	if req.SaveInMemory {
		w.sess.unlock(kp, w.policy, w.now())
	} else {
		kp.Zeroize()
	}
	return resp, nil
}

func (w *Worker) handleChallenge(req *ChallengeRequest) (*ChallengeResponse, error) {
	if req.VrfInputData == nil {
		return nil, fmt.Errorf("%w: missing vrfInputData", ErrInvalidRequest)
	}
	if err := w.sess.consumeUse(w.now()); err != nil {
		return nil, err
	}
	ch, err := w.sess.keypair.NewChallenge(req.VrfInputData)
	if err != nil {
		return nil, err
	}
	return &ChallengeResponse{VrfChallengeData: ch}, nil
}

func (w *Worker) handleShamirEncrypt(req *ShamirEncryptRequest) (*ShamirEncryptResponse, error) {
	if w.group == nil {
		return nil, ErrNotConfigured
	}
	if err := req.NearAccountID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := w.sess.checkLive(w.now()); err != nil {
		return nil, err
	}

	blinded, err := w.group.EncryptKEK(w.rng)
	if err != nil {
		return nil, err
	}
	kek, err := w.group.DeriveKEK(blinded.Seed)
	if err != nil {
		return nil, err
	}
	defer zero(kek)

	ciphertext, err := sealKeypairBlob(w.sess.keypair, kek, req.NearAccountID)
	if err != nil {
		return nil, err
	}

	// Exponent survives until FinalizeServerLock; the seed does not.
	w.sess.pendingEncrypt = blinded.Key

	return &ShamirEncryptResponse{
		VrfPublicKeyB64u:  w.sess.keypair.PublicKeyB64u(),
		CiphertextVrfB64u: types.EncodeB64u(ciphertext),
		KekCB64u:          w.group.EncodeScalar(blinded.KekC),
	}, nil
}

func (w *Worker) handleShamirFinalize(req *ShamirFinalizeRequest) (*ShamirFinalizeResponse, error) {
	if w.group == nil {
		return nil, ErrNotConfigured
	}
	if w.sess.pendingEncrypt == nil {
		return nil, ErrNoPendingEncrypt
	}
	kekCS, err := w.group.DecodeScalar(req.KekCSB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	kekS := w.group.Unblind(kekCS, w.sess.pendingEncrypt)
	w.sess.pendingEncrypt = nil

	return &ShamirFinalizeResponse{KekSB64u: w.group.EncodeScalar(kekS)}, nil
}

func (w *Worker) handleShamirPrepareDecrypt(req *ShamirPrepareDecryptRequest) (*ShamirPrepareDecryptResponse, error) {
	if w.group == nil {
		return nil, ErrNotConfigured
	}
	if w.sess.st == stateUnlocking {
		return nil, ErrAlreadyUnlocking
	}
	if w.sess.st == stateUnlocked {
		if err := w.sess.checkLive(w.now()); err == nil {
			return nil, ErrAlreadyUnlocked
		}
	}
	kekS, err := w.group.DecodeScalar(req.KekSB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	key, err := w.group.GenerateKey(w.rng)
	if err != nil {
		return nil, err
	}
	w.sess.pendingUnlock = key
	w.sess.st = stateUnlocking

	return &ShamirPrepareDecryptResponse{
		KekCSB64u: w.group.EncodeScalar(w.group.Blind(kekS, key.E)),
	}, nil
}

func (w *Worker) handleShamirDecrypt(req *ShamirDecryptRequest) (*ShamirDecryptResponse, error) {
	if w.group == nil {
		return nil, ErrNotConfigured
	}
	if w.sess.st != stateUnlocking || w.sess.pendingUnlock == nil {
		return nil, ErrNoPendingUnlock
	}
	if err := req.NearAccountID.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	kekC, err := w.group.DecodeScalar(req.KekSB64u)
	if err != nil {
		w.sess.lock()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	blob, err := types.DecodeB64u(req.CiphertextVrfB64u)
	if err != nil {
		w.sess.lock()
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	seed := w.group.Unblind(kekC, w.sess.pendingUnlock)
	kek, err := w.group.DeriveKEK(seed)
	if err != nil {
		w.sess.lock()
		return nil, err
	}
	defer zero(kek)

	kp, err := openKeypairBlob(blob, kek, req.NearAccountID)
	if err != nil {
		// A failed unlock leaves no partial state behind.
		w.sess.lock()
		return nil, err
	}

	w.sess.unlock(kp, w.policy, w.now())
	w.logger.Info("VRF keypair unlocked via server lock removal",
		"account", req.NearAccountID.String(), "publicKey", kp.PublicKeyB64u())
	return &ShamirDecryptResponse{VrfPublicKeyB64u: kp.PublicKeyB64u()}, nil
}

func (w *Worker) handleConfigP(req *ConfigPRequest) (any, error) {
	if w.group != nil {
		if w.group.SamePrime(req.PB64u) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: shamir prime", ErrConfigMismatch)
	}
	group, err := shamir3pass.NewGroup(req.PB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	w.group = group
	w.logger.Info("shamir 3-pass prime configured")
	return nil, nil
}

func (w *Worker) handleConfigServerUrls(req *ConfigServerUrlsRequest) (any, error) {
	if req.RelayServerURL == "" {
		return nil, fmt.Errorf("%w: missing relayServerUrl", ErrInvalidRequest)
	}
	cfg := &ConfigServerUrlsRequest{
		RelayServerURL:        req.RelayServerURL,
		ApplyServerLockRoute:  req.ApplyServerLockRoute,
		RemoveServerLockRoute: req.RemoveServerLockRoute,
	}
	if cfg.ApplyServerLockRoute == "" {
		cfg.ApplyServerLockRoute = DefaultApplyServerLockRoute
	}
	if cfg.RemoveServerLockRoute == "" {
		cfg.RemoveServerLockRoute = DefaultRemoveServerLockRoute
	}

	if w.relay != nil {
		if *w.relay == *cfg {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: relay server urls", ErrConfigMismatch)
	}
	w.relay = cfg
	w.logger.Info("shamir relay configured", "url", cfg.RelayServerURL)
	return nil, nil
}

func (w *Worker) handleStatus() (*StatusResponse, error) {
	resp := &StatusResponse{}
	if err := w.sess.checkLive(w.now()); err == nil {
		resp.Active = true
		resp.VrfPublicKeyB64u = w.sess.keypair.PublicKeyB64u()
		resp.ExpiresAtUnix = w.sess.expiresAt.Unix()
		resp.UsesRemaining = w.sess.usesRemaining
	}
	if w.group != nil {
		resp.ShamirPB64u = w.group.PrimeB64u()
	}
	if w.relay != nil {
		resp.RelayServerURL = w.relay.RelayServerURL
	}
	return resp, nil
}

// =============================================================================
// Key material helpers
// =============================================================================

func decodePrfOutput(b64u string) ([]byte, error) {
	prf, err := types.DecodeB64u(b64u)
	if err != nil {
		return nil, fmt.Errorf("%w: prf output: %v", ErrInvalidRequest, err)
	}
	if len(prf) != prfOutputSize {
		return nil, fmt.Errorf("%w: prf output must be %d bytes, got %d",
			ErrInvalidRequest, prfOutputSize, len(prf))
	}
	return prf, nil
}

// deriveAtRestKey expands a PRF output into the ChaCha20-Poly1305 key used
// for the persisted EncryptedVrfKeypair record. The account ID salts the
// derivation so the same authenticator secret yields distinct keys per
// account.
func deriveAtRestKey(prfOutput []byte, accountID types.AccountID) []byte {
	r := hkdf.New(sha256.New, prfOutput, []byte(accountID), atRestInfo)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF-SHA256 cannot fail for a 32-byte read.
		panic(err)
	}
	return key
}

// sealKeypairRecord seals a keypair into the two-field persisted record
// used by the PRF unlock path.
func sealKeypairRecord(kp *vrf.Keypair, key []byte, accountID types.AccountID) (*types.EncryptedVrfKeypair, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext := kp.Marshal()
	defer zero(plaintext)

	sealed, err := aead.Seal(plaintext, []byte(accountID))
	if err != nil {
		return nil, err
	}
	return &types.EncryptedVrfKeypair{
		EncryptedVrfDataB64u: types.EncodeB64u(sealed.Ciphertext),
		ChaCha20NonceB64u:    types.EncodeB64u(sealed.Nonce),
	}, nil
}

func openKeypairRecord(rec *types.EncryptedVrfKeypair, key []byte, accountID types.AccountID) (*vrf.Keypair, error) {
	ciphertext, err := types.DecodeB64u(rec.EncryptedVrfDataB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	nonce, err := types.DecodeB64u(rec.ChaCha20NonceB64u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return openSealed(&types.EncryptedData{Ciphertext: ciphertext, Nonce: nonce}, key, accountID)
}

// sealKeypairBlob seals a keypair into the single nonce||ciphertext blob
// carried by the server-locked record.
func sealKeypairBlob(kp *vrf.Keypair, key []byte, accountID types.AccountID) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext := kp.Marshal()
	defer zero(plaintext)

	sealed, err := aead.Seal(plaintext, []byte(accountID))
	if err != nil {
		return nil, err
	}
	blob := make([]byte, 0, len(sealed.Nonce)+len(sealed.Ciphertext))
	blob = append(blob, sealed.Nonce...)
	blob = append(blob, sealed.Ciphertext...)
	return blob, nil
}

func openKeypairBlob(blob, key []byte, accountID types.AccountID) (*vrf.Keypair, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	if len(blob) <= aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	return openSealed(&types.EncryptedData{
		Nonce:      blob[:aead.NonceSize()],
		Ciphertext: blob[aead.NonceSize():],
	}, key, accountID)
}

func openSealed(data *types.EncryptedData, key []byte, accountID types.AccountID) (*vrf.Keypair, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(data, []byte(accountID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	defer zero(plaintext)

	kp, err := vrf.Unmarshal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return kp, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
