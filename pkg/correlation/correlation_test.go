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

package correlation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithIDRoundTrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc-123")
	if got := ID(ctx); got != "abc-123" {
		t.Errorf("ID() = %v, want abc-123", got)
	}
}

func TestIDMissing(t *testing.T) {
	if got := ID(context.Background()); got != "" {
		t.Errorf("ID() = %v, want empty", got)
	}
	if got := ID(nil); got != "" { //nolint:staticcheck // exercising nil handling
		t.Errorf("ID(nil) = %v, want empty", got)
	}
}

func TestGetOrGenerate(t *testing.T) {
	ctx := WithID(context.Background(), "existing")
	if got := GetOrGenerate(ctx); got != "existing" {
		t.Errorf("GetOrGenerate() = %v, want existing", got)
	}

	generated := GetOrGenerate(context.Background())
	if generated == "" {
		t.Error("GetOrGenerate() returned empty ID")
	}
}

func TestNewIDUnique(t *testing.T) {
	if NewID() == NewID() {
		t.Error("NewID() returned duplicate IDs")
	}
}

func TestMiddlewarePropagatesInboundID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "inbound-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "inbound-id" {
		t.Errorf("handler saw correlation ID %v, want inbound-id", seen)
	}
	if got := rec.Header().Get(Header); got != "inbound-id" {
		t.Errorf("response header = %v, want inbound-id", got)
	}
}

func TestMiddlewareGeneratesID(t *testing.T) {
	var seen string
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Error("middleware did not generate a correlation ID")
	}
	if rec.Header().Get(Header) != seen {
		t.Error("response header does not match context ID")
	}
}
