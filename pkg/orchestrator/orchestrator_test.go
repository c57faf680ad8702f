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

package orchestrator

import (
	"bytes"
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3authn/go-vrf-sdk/pkg/relay"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
	"github.com/web3authn/go-vrf-sdk/pkg/storage"
	"github.com/web3authn/go-vrf-sdk/pkg/storage/file"
	"github.com/web3authn/go-vrf-sdk/pkg/storage/memory"
	"github.com/web3authn/go-vrf-sdk/pkg/types"
	"github.com/web3authn/go-vrf-sdk/pkg/vrf"
	"github.com/web3authn/go-vrf-sdk/pkg/vrfworker"
	"github.com/web3authn/go-vrf-sdk/pkg/webauthn"
)

const (
	testAccount = types.AccountID("alice.testnet")
	testRpID    = "example.localhost"
	testDevice  = types.DeviceNumber(1)
)

var testNow = time.Unix(1725000000, 0)

func testBlock() BlockRef {
	return BlockRef{Height: 120398, Hash: bytes.Repeat([]byte{7}, 32)}
}

type testEnv struct {
	orch      *Orchestrator
	worker    *vrfworker.Worker
	records   *storage.RecordStore
	auth      *webauthn.MockAuthenticator
	relaySrv  *relay.Server
	relayHTTP *httptest.Server
}

// newTestEnv assembles a full client stack. With withRelay, a real relay
// server runs behind httptest and the worker is configured for its group.
func newTestEnv(t *testing.T, withRelay bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{}
	env.worker = vrfworker.New(vrfworker.SessionPolicy{})
	t.Cleanup(env.worker.Close)
	env.records = storage.NewRecordStore(memory.New())

	auth, err := webauthn.NewMockAuthenticator()
	require.NoError(t, err)
	env.auth = auth

	cfg := &Config{
		Worker:        env.worker,
		Records:       env.records,
		Authenticator: auth,
		RpID:          testRpID,
		Now:           func() time.Time { return testNow },
	}

	if withRelay {
		srv, err := relay.NewServer(&relay.ServerConfig{Group: shamir3pass.DefaultGroup()})
		require.NoError(t, err)
		env.relaySrv = srv
		env.relayHTTP = httptest.NewServer(srv.Handler())
		t.Cleanup(env.relayHTTP.Close)

		client, err := relay.NewClient(&relay.ClientConfig{BaseURL: env.relayHTTP.URL})
		require.NoError(t, err)
		cfg.Relay = client

		require.NoError(t, env.worker.ConfigureShamirP(ctx, shamir3pass.DefaultPrimeB64u))
		require.NoError(t, env.worker.ConfigureShamirServerUrls(ctx, &vrfworker.ConfigServerUrlsRequest{
			RelayServerURL: env.relayHTTP.URL,
		}))
	}

	orch, err := New(cfg)
	require.NoError(t, err)
	env.orch = orch
	return env
}

func TestRegisterCreatesRecord(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	result, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	assert.NotEmpty(t, result.VrfPublicKeyB64u)
	assert.NotEmpty(t, result.CredentialIDB64u)
	assert.False(t, result.SilentLoginEnabled)

	record, err := env.records.Get(testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, result.VrfPublicKeyB64u, record.VrfPublicKeyB64u)
	require.NotNil(t, record.EncryptedVrfKeypair)
	assert.Nil(t, record.ServerEncryptedVrfKeypair)

	// Registration leaves the session unlocked with the derived keypair.
	status, err := env.orch.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, result.VrfPublicKeyB64u, status.VrfPublicKeyB64u)
}

func TestRegisterWithRelayEnablesSilentLogin(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	result, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	assert.True(t, result.SilentLoginEnabled)

	record, err := env.records.Get(testAccount, testDevice)
	require.NoError(t, err)
	require.NotNil(t, record.ServerEncryptedVrfKeypair)
	assert.Equal(t, env.relaySrv.Keys().Current().ID, record.ServerEncryptedVrfKeypair.ServerKeyID)
	assert.NotEmpty(t, record.ServerEncryptedVrfKeypair.KekSB64u)
	assert.NotEmpty(t, record.ServerEncryptedVrfKeypair.CiphertextVrfB64u)

	assert.True(t, env.orch.SilentLoginAvailable(testAccount, testDevice))
}

func TestRegisterCancelledCeremonyPersistsNothing(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	env.auth.CancelNext = true
	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.ErrorIs(t, err, webauthn.ErrCeremonyCancelled)

	_, err = env.records.Get(testAccount, testDevice)
	require.ErrorIs(t, err, storage.ErrNotFound)

	status, err := env.orch.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestRegisterRelayDownDegradesGracefully(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	// Kill the relay before registering: the record must still be written,
	// just without the server-locked half.
	env.relayHTTP.Close()

	result, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	assert.False(t, result.SilentLoginEnabled)

	record, err := env.records.Get(testAccount, testDevice)
	require.NoError(t, err)
	assert.Nil(t, record.ServerEncryptedVrfKeypair)
}

func TestSilentLoginRoundTrip(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	registered, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)

	// Browser restart.
	require.NoError(t, env.orch.Logout(ctx))

	login, err := env.orch.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, LoginMethodSilent, login.Method)
	assert.Equal(t, registered.VrfPublicKeyB64u, login.VrfPublicKeyB64u)

	challenge, err := env.orch.GenerateChallenge(ctx, testAccount, testBlock())
	require.NoError(t, err)
	assert.Equal(t, registered.VrfPublicKeyB64u, challenge.VrfPublicKeyB64u)
}

func TestLoginFallsBackWhenRelayUnreachable(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	registered, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.NoError(t, env.orch.Logout(ctx))

	env.relayHTTP.Close()

	login, err := env.orch.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, LoginMethodWebAuthn, login.Method)
	assert.Equal(t, registered.VrfPublicKeyB64u, login.VrfPublicKeyB64u)
}

func TestLoginFallsBackWhenServerKeyGone(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	registered, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.NoError(t, env.orch.Logout(ctx))

	// Rotate and prune: the key the record references no longer exists.
	_, err = env.relaySrv.Keys().Rotate()
	require.NoError(t, err)
	env.relaySrv.Keys().Prune(0)

	login, err := env.orch.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, LoginMethodWebAuthn, login.Method)
	assert.Equal(t, registered.VrfPublicKeyB64u, login.VrfPublicKeyB64u)
}

func TestLoginUnknownAccount(t *testing.T) {
	env := newTestEnv(t, false)
	_, err := env.orch.Login(context.Background(), "nobody.testnet", testDevice)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLoginCancelledContext(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.NoError(t, env.orch.Logout(ctx))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = env.orch.Login(cancelled, testAccount, testDevice)
	require.ErrorIs(t, err, context.Canceled)

	// A cancelled silent attempt leaves no stuck transaction behind.
	login, err := env.orch.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.NotEmpty(t, login.VrfPublicKeyB64u)
}

// gatedAuthenticator blocks Authenticate until released, so tests can hold
// a login open deterministically.
type gatedAuthenticator struct {
	*webauthn.MockAuthenticator
	started chan struct{}
	release chan struct{}
}

func (g *gatedAuthenticator) Authenticate(ctx context.Context, accountID types.AccountID, challenge protocol.URLEncodedBase64) (*webauthn.CeremonyResult, error) {
	close(g.started)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.MockAuthenticator.Authenticate(ctx, accountID, challenge)
}

func TestConcurrentLoginOneWins(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.NoError(t, env.orch.Logout(ctx))

	gated := &gatedAuthenticator{
		MockAuthenticator: env.auth,
		started:           make(chan struct{}),
		release:           make(chan struct{}),
	}
	orch, err := New(&Config{
		Worker:        env.worker,
		Records:       env.records,
		Authenticator: gated,
		RpID:          testRpID,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = orch.Login(ctx, testAccount, testDevice)
	}()

	// Wait until the first login is inside its ceremony, then race it.
	<-gated.started
	_, err = orch.Login(ctx, testAccount, testDevice)
	require.ErrorIs(t, err, vrfworker.ErrAlreadyUnlocking)

	close(gated.release)
	wg.Wait()
	require.NoError(t, firstErr)
}

func TestLogoutLocksSession(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.NoError(t, env.orch.Logout(ctx))

	_, err = env.orch.GenerateChallenge(ctx, testAccount, testBlock())
	require.ErrorIs(t, err, vrfworker.ErrNotUnlocked)

	// The record survives; login recovers the same keypair.
	login, err := env.orch.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, LoginMethodWebAuthn, login.Method)
}

func TestDeleteRecordRequiresReRegistration(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)

	require.NoError(t, env.orch.DeleteRecord(ctx, testAccount, testDevice))

	status, err := env.orch.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Active)

	_, err = env.orch.Login(ctx, testAccount, testDevice)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, env.orch.DeleteRecord(ctx, testAccount, testDevice))
}

func TestSilentLoginSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	srv, err := relay.NewServer(&relay.ServerConfig{Group: shamir3pass.DefaultGroup()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	auth, err := webauthn.NewMockAuthenticator()
	require.NoError(t, err)

	newStack := func() (*Orchestrator, *vrfworker.Worker) {
		backend, err := file.New(dir)
		require.NoError(t, err)

		worker := vrfworker.New(vrfworker.SessionPolicy{})
		t.Cleanup(worker.Close)
		require.NoError(t, worker.ConfigureShamirP(ctx, shamir3pass.DefaultPrimeB64u))
		require.NoError(t, worker.ConfigureShamirServerUrls(ctx, &vrfworker.ConfigServerUrlsRequest{
			RelayServerURL: ts.URL,
		}))

		client, err := relay.NewClient(&relay.ClientConfig{BaseURL: ts.URL})
		require.NoError(t, err)

		orch, err := New(&Config{
			Worker:        worker,
			Records:       storage.NewRecordStore(backend),
			Authenticator: auth,
			Relay:         client,
			RpID:          testRpID,
		})
		require.NoError(t, err)
		return orch, worker
	}

	first, _ := newStack()
	registered, err := first.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)
	require.True(t, registered.SilentLoginEnabled)

	// Fresh worker and store over the same directory, as after a restart.
	second, _ := newStack()
	login, err := second.Login(ctx, testAccount, testDevice)
	require.NoError(t, err)
	assert.Equal(t, LoginMethodSilent, login.Method)
	assert.Equal(t, registered.VrfPublicKeyB64u, login.VrfPublicKeyB64u)
}

func TestGeneratedChallengeVerifies(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.orch.Register(ctx, testAccount, testDevice, testBlock())
	require.NoError(t, err)

	challenge, err := env.orch.GenerateChallenge(ctx, testAccount, testBlock())
	require.NoError(t, err)

	// Rebuild the exact input the orchestrator hashed.
	input := &vrf.ChallengeInput{
		AccountID:   testAccount,
		RpID:        testRpID,
		BlockHeight: testBlock().Height,
		BlockHash:   testBlock().Hash,
		Timestamp:   testNow.Unix(),
	}
	ok, err := vrf.VerifyChallenge(challenge, input)
	require.NoError(t, err)
	assert.True(t, ok)
}
