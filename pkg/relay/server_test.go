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

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3authn/go-vrf-sdk/pkg/correlation"
	"github.com/web3authn/go-vrf-sdk/pkg/ratelimit"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
)

func newTestRelay(t *testing.T) (*Server, Client) {
	t.Helper()
	srv, err := NewServer(&ServerConfig{Group: shamir3pass.DefaultGroup()})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := NewClient(&ClientConfig{BaseURL: ts.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestHealth(t *testing.T) {
	srv, client := newTestRelay(t)

	resp, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, shamir3pass.DefaultPrimeB64u, resp.ShamirPB64u)
	assert.Equal(t, srv.Keys().Current().ID, resp.CurrentKeyID)
}

// TestLockRoundTripOverHTTP runs the client half of the protocol against a
// real HTTP relay: blind a seed, apply the server lock, unblind the client
// exponent, re-blind with a fresh one, remove the server lock, and recover
// the original seed.
func TestLockRoundTripOverHTTP(t *testing.T) {
	_, client := newTestRelay(t)
	ctx := context.Background()
	g := shamir3pass.DefaultGroup()

	blinded, err := g.EncryptKEK(rand.Reader)
	require.NoError(t, err)

	applied, err := client.ApplyServerLock(ctx, g.EncodeScalar(blinded.KekC))
	require.NoError(t, err)
	require.NotEmpty(t, applied.ServerKeyID)

	kekCS, err := g.DecodeScalar(applied.KekCSB64u)
	require.NoError(t, err)
	kekS := g.Unblind(kekCS, blinded.Key)

	// Later, silent unlock with a fresh exponent.
	fresh, err := g.GenerateKey(rand.Reader)
	require.NoError(t, err)
	reblinded := g.Blind(kekS, fresh.E)

	removed, err := client.RemoveServerLock(ctx, g.EncodeScalar(reblinded), applied.ServerKeyID)
	require.NoError(t, err)

	kekC2, err := g.DecodeScalar(removed.KekCB64u)
	require.NoError(t, err)
	seed := g.Unblind(kekC2, fresh)

	assert.Equal(t, g.EncodeScalar(blinded.Seed), g.EncodeScalar(seed))
}

func TestRemoveServerLockAfterRotation(t *testing.T) {
	srv, client := newTestRelay(t)
	ctx := context.Background()
	g := shamir3pass.DefaultGroup()

	blinded, err := g.EncryptKEK(rand.Reader)
	require.NoError(t, err)
	applied, err := client.ApplyServerLock(ctx, g.EncodeScalar(blinded.KekC))
	require.NoError(t, err)

	_, err = srv.Keys().Rotate()
	require.NoError(t, err)

	// The stored key ID still routes to the retired key.
	kekCS, err := g.DecodeScalar(applied.KekCSB64u)
	require.NoError(t, err)
	kekS := g.Unblind(kekCS, blinded.Key)
	fresh, err := g.GenerateKey(rand.Reader)
	require.NoError(t, err)

	removed, err := client.RemoveServerLock(ctx,
		g.EncodeScalar(g.Blind(kekS, fresh.E)), applied.ServerKeyID)
	require.NoError(t, err)

	kekC2, err := g.DecodeScalar(removed.KekCB64u)
	require.NoError(t, err)
	assert.Equal(t, g.EncodeScalar(blinded.Seed), g.EncodeScalar(g.Unblind(kekC2, fresh)))
}

func TestApplyServerLockRejectsBadScalar(t *testing.T) {
	_, client := newTestRelay(t)

	_, err := client.ApplyServerLock(context.Background(), "not base64url!!")
	require.ErrorIs(t, err, ErrServerRejected)
}

func TestRemoveServerLockUnknownKey(t *testing.T) {
	_, client := newTestRelay(t)
	g := shamir3pass.DefaultGroup()

	blinded, err := g.EncryptKEK(rand.Reader)
	require.NoError(t, err)

	_, err = client.RemoveServerLock(context.Background(),
		g.EncodeScalar(blinded.KekC), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrServerRejected)
}

func TestClientNetworkError(t *testing.T) {
	client, err := NewClient(&ClientConfig{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.ApplyServerLock(context.Background(), types.EncodeB64u([]byte{1, 2, 3}))
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "apply-server-lock", netErr.Op)
}

func TestClientCancelledContext(t *testing.T) {
	_, client := newTestRelay(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ApplyServerLock(ctx, types.EncodeB64u([]byte{1, 2, 3}))
	require.ErrorIs(t, err, context.Canceled)
}

func TestClientBaseURLNormalization(t *testing.T) {
	c, err := NewClient(&ClientConfig{BaseURL: "relay.localhost:8090/"})
	require.NoError(t, err)
	rc := c.(*restClient)
	assert.Equal(t, "http://relay.localhost:8090", rc.baseURL)

	_, err = NewClient(nil)
	require.Error(t, err)
}

func TestRateLimitedRequestsRejected(t *testing.T) {
	srv, err := NewServer(&ServerConfig{
		Group:     shamir3pass.DefaultGroup(),
		RateLimit: &ratelimit.Config{Enabled: true, RequestsPerMinute: 60, Burst: 1},
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + HealthRoute)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + HealthRoute)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestCorrelationIDEchoed(t *testing.T) {
	srv, err := NewServer(&ServerConfig{Group: shamir3pass.DefaultGroup()})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodGet, ts.URL+HealthRoute, nil)
	require.NoError(t, err)
	req.Header.Set(correlation.Header, "trace-me")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-me", resp.Header.Get(correlation.Header))
}
