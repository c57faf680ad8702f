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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3authn/go-vrf-sdk/pkg/correlation"
	"github.com/web3authn/go-vrf-sdk/pkg/logging"
	"github.com/web3authn/go-vrf-sdk/pkg/metrics"
	"github.com/web3authn/go-vrf-sdk/pkg/ratelimit"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
)

// ServerConfig holds the relay server configuration.
type ServerConfig struct {
	// Addr is the listen address (default ":8090").
	Addr string

	// Group is the Shamir 3-pass group shared with clients.
	Group *shamir3pass.Group

	// Keys is the server key store. A fresh store is created when nil.
	Keys *KeyStore

	// Logger defaults to logging.DefaultLogger.
	Logger *logging.Logger

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next
	// request.
	IdleTimeout time.Duration

	// RateLimit throttles clients per IP. Nil disables limiting.
	RateLimit *ratelimit.Config
}

// Server is the reference relay: it applies and removes the server-side
// lock of the 3-pass protocol. It is stateless apart from its key store
// and never sees VRF key material or unblinded KEK seeds.
type Server struct {
	group   *shamir3pass.Group
	keys    *KeyStore
	logger  *logging.Logger
	limiter *ratelimit.Limiter
	router  chi.Router
	server  *http.Server
}

// NewServer creates a relay server.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("relay: config is required")
	}
	if cfg.Group == nil {
		return nil, fmt.Errorf("relay: group is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	keys := cfg.Keys
	if keys == nil {
		var err error
		keys, err = NewKeyStore(cfg.Group, nil)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		group:   cfg.Group,
		keys:    keys,
		logger:  logger,
		limiter: ratelimit.New(cfg.RateLimit),
	}

	r := chi.NewRouter()
	r.Use(correlation.Middleware)
	r.Use(metrics.HTTPMiddleware)
	r.Use(ratelimit.Middleware(s.limiter))
	r.Get(HealthRoute, s.handleHealth)
	r.Handle(MetricsRoute, promhttp.Handler())
	r.Post(ApplyServerLockRoute, s.handleApplyServerLock)
	r.Post(RemoveServerLockRoute, s.handleRemoveServerLock)
	s.router = r

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Keys exposes the key store for rotation tooling.
func (s *Server) Keys() *KeyStore { return s.keys }

// ListenAndServe blocks serving HTTP until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.logger.Info("relay server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	defer metrics.TimeOperation(metrics.OpHealthCheck, time.Now(), nil)
	writeJSON(w, http.StatusOK, &HealthResponse{
		Status:       "ok",
		ShamirPB64u:  s.group.PrimeB64u(),
		CurrentKeyID: s.keys.Current().ID,
	})
}

func (s *Server) handleApplyServerLock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req ApplyServerLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err), start, metrics.OpApplyServerLock)
		return
	}
	kekC, err := s.group.DecodeScalar(req.KekCB64u)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: kek_c: %v", ErrInvalidRequest, err), start, metrics.OpApplyServerLock)
		return
	}

	key := s.keys.Current()
	kekCS := s.group.ApplyServerLock(kekC, key.Key)

	metrics.TimeOperation(metrics.OpApplyServerLock, start, nil)
	writeJSON(w, http.StatusOK, &ApplyServerLockResponse{
		KekCSB64u:   s.group.EncodeScalar(kekCS),
		ServerKeyID: key.ID,
	})
}

func (s *Server) handleRemoveServerLock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req RemoveServerLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %v", ErrInvalidRequest, err), start, metrics.OpRemoveServerLock)
		return
	}
	kekCS, err := s.group.DecodeScalar(req.KekCSB64u)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: kek_cs: %v", ErrInvalidRequest, err), start, metrics.OpRemoveServerLock)
		return
	}

	key := s.keys.Current()
	if req.ServerKeyID != "" {
		key, err = s.keys.Get(req.ServerKeyID)
		if err != nil {
			s.writeError(w, r, err, start, metrics.OpRemoveServerLock)
			return
		}
	}

	kekC := s.group.RemoveServerLock(kekCS, key.Key)

	metrics.TimeOperation(metrics.OpRemoveServerLock, start, nil)
	writeJSON(w, http.StatusOK, &RemoveServerLockResponse{
		KekCB64u: s.group.EncodeScalar(kekC),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, start time.Time, op string) {
	metrics.TimeOperation(op, start, err)
	s.logger.Warn("relay request failed",
		"operation", op,
		"correlationId", correlation.ID(r.Context()),
		"error", err.Error())

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		code = http.StatusBadRequest
	case errors.Is(err, ErrUnknownServerKey):
		code = http.StatusNotFound
	}
	writeJSON(w, code, &ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
