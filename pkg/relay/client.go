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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the SDK side of the relay protocol. Implementations make
// exactly one attempt per call; a failed or cancelled call means the
// surrounding unlock transaction is aborted, never retried blind.
type Client interface {
	// ApplyServerLock exponentiates a client-blinded KEK with the relay's
	// current secret.
	ApplyServerLock(ctx context.Context, kekCB64u string) (*ApplyServerLockResponse, error)

	// RemoveServerLock strips the relay's lock from a doubly-locked KEK.
	// An empty serverKeyID selects the relay's current key.
	RemoveServerLock(ctx context.Context, kekCSB64u, serverKeyID string) (*RemoveServerLockResponse, error)

	// Health verifies reachability and returns the relay's Shamir
	// parameters.
	Health(ctx context.Context) (*HealthResponse, error)

	// Close releases idle connections.
	Close() error
}

// ClientConfig configures the HTTP relay client.
type ClientConfig struct {
	// BaseURL is the relay server base URL. A bare host:port gets an
	// http:// prefix.
	BaseURL string

	// ApplyRoute and RemoveRoute override the default endpoints.
	ApplyRoute  string
	RemoveRoute string

	// Timeout bounds each request (default 10s). Per-call contexts can
	// shorten it further.
	Timeout time.Duration

	// HTTPClient overrides the transport, used by tests.
	HTTPClient *http.Client
}

type restClient struct {
	baseURL     string
	applyRoute  string
	removeRoute string
	httpClient  *http.Client
}

// NewClient creates an HTTP relay client.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("relay: base URL is required")
	}

	baseURL := cfg.BaseURL
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	applyRoute := cfg.ApplyRoute
	if applyRoute == "" {
		applyRoute = ApplyServerLockRoute
	}
	removeRoute := cfg.RemoveRoute
	if removeRoute == "" {
		removeRoute = RemoveServerLockRoute
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &restClient{
		baseURL:     baseURL,
		applyRoute:  applyRoute,
		removeRoute: removeRoute,
		httpClient:  httpClient,
	}, nil
}

func (c *restClient) ApplyServerLock(ctx context.Context, kekCB64u string) (*ApplyServerLockResponse, error) {
	var resp ApplyServerLockResponse
	err := c.doRequest(ctx, "apply-server-lock", c.applyRoute,
		&ApplyServerLockRequest{KekCB64u: kekCB64u}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *restClient) RemoveServerLock(ctx context.Context, kekCSB64u, serverKeyID string) (*RemoveServerLockResponse, error) {
	var resp RemoveServerLockResponse
	err := c.doRequest(ctx, "remove-server-lock", c.removeRoute,
		&RemoveServerLockRequest{KekCSB64u: kekCSB64u, ServerKeyID: serverKeyID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *restClient) Health(ctx context.Context) (*HealthResponse, error) {
	reqURL := c.baseURL + HealthRoute
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: create request: %w", err)
	}
	var resp HealthResponse
	if err := c.send(req, "health", reqURL, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *restClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doRequest performs a single JSON POST to the relay.
func (c *restClient) doRequest(ctx context.Context, op, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("relay: marshal request body: %w", err)
	}

	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("relay: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, op, reqURL, out)
}

func (c *restClient) send(req *http.Request, op, reqURL string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, URL: reqURL, Err: err}
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: %s (status %d)", ErrServerRejected, errResp.Error, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", ErrServerRejected, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("relay: parse %s response: %w", op, err)
	}
	return nil
}
