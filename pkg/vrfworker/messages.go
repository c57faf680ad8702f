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
	"encoding/json"

	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"github.com/web3authn/go-vrf-sdk/pkg/vrf"
)

// RequestType discriminates worker request envelopes. The set is closed:
// the dispatch switch is exhaustive and unknown types are rejected.
type RequestType int

const (
	ReqGenerateVrfKeypairBootstrap RequestType = iota + 1
	ReqUnlockVrfKeypair
	ReqDeriveVrfKeypairFromPrf
	ReqGenerateVrfChallenge
	ReqShamirClientEncryptCurrentVrfKeypair
	ReqShamirFinalizeServerLock
	ReqShamirPrepareDecryptVrfKeypair
	ReqShamirClientDecryptVrfKeypair
	ReqShamirConfigP
	ReqShamirConfigServerUrls
	ReqCheckVrfStatus
	ReqLogout
)

// String returns the wire name of the request type for logs.
func (t RequestType) String() string {
	switch t {
	case ReqGenerateVrfKeypairBootstrap:
		return "GenerateVrfKeypairBootstrap"
	case ReqUnlockVrfKeypair:
		return "UnlockVrfKeypair"
	case ReqDeriveVrfKeypairFromPrf:
		return "DeriveVrfKeypairFromPrf"
	case ReqGenerateVrfChallenge:
		return "GenerateVrfChallenge"
	case ReqShamirClientEncryptCurrentVrfKeypair:
		return "Shamir3PassClientEncryptCurrentVrfKeypair"
	case ReqShamirFinalizeServerLock:
		return "Shamir3PassFinalizeServerLock"
	case ReqShamirPrepareDecryptVrfKeypair:
		return "Shamir3PassPrepareDecryptVrfKeypair"
	case ReqShamirClientDecryptVrfKeypair:
		return "Shamir3PassClientDecryptVrfKeypair"
	case ReqShamirConfigP:
		return "Shamir3PassConfigP"
	case ReqShamirConfigServerUrls:
		return "Shamir3PassConfigServerUrls"
	case ReqCheckVrfStatus:
		return "CheckVrfStatus"
	case ReqLogout:
		return "Logout"
	default:
		return "Unknown"
	}
}

// Request is the inbound worker envelope: an integer type discriminant, a
// correlation ID assigned by the caller side, and a type-specific payload.
type Request struct {
	ID      uint64          `json:"id"`
	Type    RequestType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the outbound worker envelope, correlated to a Request by ID.
// Failures carry a stable error code so callers can match them across the
// serialization boundary; Error is the human-readable message.
type Response struct {
	ID        uint64          `json:"id"`
	Type      RequestType     `json:"type"`
	OK        bool            `json:"ok"`
	ErrorCode string          `json:"errorCode,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// =============================================================================
// Request / response payloads
// =============================================================================

// GenerateBootstrapRequest creates a brand-new random VRF keypair. The
// session transitions directly to Unlocked so the fresh key can produce the
// registration ceremony's challenge immediately.
type GenerateBootstrapRequest struct {
	VrfInputData *vrf.ChallengeInput `json:"vrfInputData,omitempty"`
}

// GenerateBootstrapResponse carries the new public key and, when input data
// was supplied, an immediately usable challenge.
type GenerateBootstrapResponse struct {
	VrfPublicKeyB64u string         `json:"vrfPublicKey"`
	VrfChallengeData *vrf.Challenge `json:"vrfChallengeData,omitempty"`
}

// UnlockRequest is the WebAuthn-PRF unlock path: decrypt a stored
// EncryptedVrfKeypair with a key derived from the ceremony's PRF output.
type UnlockRequest struct {
	NearAccountID         types.AccountID            `json:"nearAccountId"`
	EncryptedVrfKeypair   *types.EncryptedVrfKeypair `json:"encryptedVrfKeypair"`
	ChaCha20PrfOutputB64u string                     `json:"chacha20PrfOutputB64u"`
}

// UnlockResponse reports the public key of the now-unlocked keypair.
type UnlockResponse struct {
	VrfPublicKeyB64u string `json:"vrfPublicKey"`
}

// DeriveRequest deterministically re-derives the account's VRF keypair from
// the authenticator's dual PRF outputs: the ed25519 output seeds the
// keypair, the ChaCha20 output seals it at rest. Same authenticator and
// account always produce the same keypair; used at registration and for
// device recovery.
type DeriveRequest struct {
	NearAccountID         types.AccountID     `json:"nearAccountId"`
	ChaCha20PrfOutputB64u string              `json:"chacha20PrfOutputB64u"`
	Ed25519PrfOutputB64u  string              `json:"ed25519PrfOutputB64u"`
	VrfInputData          *vrf.ChallengeInput `json:"vrfInputData,omitempty"`
	SaveInMemory          bool                `json:"saveInMemory"`
}

// DeriveResponse carries the derived public key, the keypair sealed under
// the at-rest key for persistence, and optionally a challenge.
type DeriveResponse struct {
	VrfPublicKeyB64u    string                     `json:"vrfPublicKey"`
	EncryptedVrfKeypair *types.EncryptedVrfKeypair `json:"encryptedVrfKeypair"`
	VrfChallengeData    *vrf.Challenge             `json:"vrfChallengeData,omitempty"`
}

// ChallengeRequest evaluates the unlocked VRF keypair, consuming one session
// use.
type ChallengeRequest struct {
	VrfInputData *vrf.ChallengeInput `json:"vrfInputData"`
}

// ChallengeResponse wraps the evaluated challenge.
type ChallengeResponse struct {
	VrfChallengeData *vrf.Challenge `json:"vrfChallengeData"`
}

// ShamirEncryptRequest seals the currently unlocked keypair for
// server-locked storage. The account ID is bound into the ciphertext as
// associated data, so a record cannot be replayed under another account.
type ShamirEncryptRequest struct {
	NearAccountID types.AccountID `json:"nearAccountId"`
}

// ShamirEncryptResponse is the first pass of registering a server lock: the
// currently unlocked keypair sealed under a fresh KEK, and the KEK seed
// blinded with a fresh client exponent, ready for the relay's apply-lock
// endpoint. The client exponent stays in worker memory until
// Shamir3PassFinalizeServerLock delivers the relay's answer.
type ShamirEncryptResponse struct {
	VrfPublicKeyB64u  string `json:"vrfPublicKey"`
	CiphertextVrfB64u string `json:"ciphertextVrfB64u"`
	KekCB64u          string `json:"kek_c_b64u"`
}

// ShamirFinalizeRequest delivers the relay's apply-lock response (kek_cs)
// back into the worker, which strips its own blinding to obtain the
// storable server-locked KEK (kek_s).
type ShamirFinalizeRequest struct {
	KekCSB64u string `json:"kek_cs_b64u"`
}

// ShamirFinalizeResponse carries kek_s for the persisted record.
type ShamirFinalizeResponse struct {
	KekSB64u string `json:"kek_s_b64u"`
}

// ShamirPrepareDecryptRequest is the first half of a silent unlock: the
// stored kek_s is re-blinded with a fresh client exponent so the relay can
// remove its lock without ever seeing the unblinded KEK seed.
type ShamirPrepareDecryptRequest struct {
	KekSB64u string `json:"kek_s_b64u"`
}

// ShamirPrepareDecryptResponse carries the doubly-locked KEK for the
// relay's remove-lock endpoint.
type ShamirPrepareDecryptResponse struct {
	KekCSB64u string `json:"kek_cs_b64u"`
}

// ShamirDecryptRequest is the second half of a silent unlock: the relay's
// remove-lock response (now blinded only by the worker's pending exponent)
// plus the stored ciphertext.
type ShamirDecryptRequest struct {
	NearAccountID     types.AccountID `json:"nearAccountId"`
	KekSB64u          string          `json:"kek_s_b64u"`
	CiphertextVrfB64u string          `json:"ciphertextVrfB64u"`
}

// ShamirDecryptResponse reports the public key of the recovered keypair.
type ShamirDecryptResponse struct {
	VrfPublicKeyB64u string `json:"vrfPublicKey"`
}

// ConfigPRequest sets the shared prime. One-shot: reconfiguring with a
// different prime is an error, never a silent overwrite.
type ConfigPRequest struct {
	PB64u string `json:"p_b64u"`
}

// ConfigServerUrlsRequest records the relay endpoints. One-shot like the
// prime.
type ConfigServerUrlsRequest struct {
	RelayServerURL        string `json:"relayServerUrl"`
	ApplyServerLockRoute  string `json:"applyServerLockRoute"`
	RemoveServerLockRoute string `json:"removeServerLockRoute"`
}

// StatusResponse is read-only session introspection; it neither extends nor
// consumes the session.
type StatusResponse struct {
	Active           bool   `json:"active"`
	VrfPublicKeyB64u string `json:"vrfPublicKey,omitempty"`
	ExpiresAtUnix    int64  `json:"expiresAt,omitempty"`
	UsesRemaining    int    `json:"usesRemaining,omitempty"`
	ShamirPB64u      string `json:"shamirPB64u,omitempty"`
	RelayServerURL   string `json:"relayServerUrl,omitempty"`
}
