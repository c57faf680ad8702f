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

// Relay routes. The worker and the reference server agree on these by
// default; deployments may remap them via configuration.
const (
	ApplyServerLockRoute  = "/vrf/apply-server-lock"
	RemoveServerLockRoute = "/vrf/remove-server-lock"
	HealthRoute           = "/health"
	MetricsRoute          = "/metrics"
)

// ApplyServerLockRequest carries the client-blinded KEK (kek_c). The relay
// never sees the KEK seed: the value is blinded by a client exponent it
// does not know.
type ApplyServerLockRequest struct {
	KekCB64u string `json:"kek_c_b64u"`
}

// ApplyServerLockResponse returns the doubly-locked KEK (kek_cs) and the ID
// of the server key that locked it, for storage alongside the record.
type ApplyServerLockResponse struct {
	KekCSB64u   string `json:"kek_cs_b64u"`
	ServerKeyID string `json:"serverKeyId"`
}

// RemoveServerLockRequest carries a doubly-locked KEK for unlock. An empty
// ServerKeyID selects the current key.
type RemoveServerLockRequest struct {
	KekCSB64u   string `json:"kek_cs_b64u"`
	ServerKeyID string `json:"serverKeyId,omitempty"`
}

// RemoveServerLockResponse returns the KEK with the server lock removed,
// still blinded by the requesting client's exponent.
type RemoveServerLockResponse struct {
	KekCB64u string `json:"kek_c_b64u"`
}

// HealthResponse reports server liveness and the Shamir parameters clients
// must match.
type HealthResponse struct {
	Status       string `json:"status"`
	ShamirPB64u  string `json:"shamirPB64u"`
	CurrentKeyID string `json:"currentKeyId"`
}

// ErrorResponse is the JSON error body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
