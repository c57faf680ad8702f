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

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/web3authn/go-vrf-sdk/internal/config"
	"github.com/web3authn/go-vrf-sdk/pkg/logging"
	"github.com/web3authn/go-vrf-sdk/pkg/metrics"
	"github.com/web3authn/go-vrf-sdk/pkg/ratelimit"
	"github.com/web3authn/go-vrf-sdk/pkg/relay"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func serve(cfg *config.Config) error {
	logger := logging.NewLogger(cfg.Debug())

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	group, err := shamir3pass.NewGroup(cfg.Shamir.PB64u)
	if err != nil {
		return err
	}

	keys, err := relay.NewKeyStore(group, nil)
	if err != nil {
		return err
	}

	srv, err := relay.NewServer(&relay.ServerConfig{
		Addr:         cfg.Addr(),
		Group:        group,
		Keys:         keys,
		Logger:       logger,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		RateLimit: &ratelimit.Config{
			Enabled:           cfg.RateLimit.Enabled,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.Burst,
		},
	})
	if err != nil {
		return err
	}

	stopRotation := startKeyRotation(keys, cfg, logger)
	defer stopRotation()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("relay server listening", "addr", cfg.Addr())
		errChan <- srv.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("relay server: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// startKeyRotation rotates the server key on the configured interval and
// prunes retired keys past their retention window. Records sealed under a
// pruned key fall back to a WebAuthn ceremony on the client, so the
// retention window bounds how long silent login survives without a
// re-registration.
func startKeyRotation(keys *relay.KeyStore, cfg *config.Config, logger *logging.Logger) func() {
	interval := cfg.Keys.RotateInterval.Std()
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				key, err := keys.Rotate()
				if err != nil {
					logger.Errorf("key rotation failed: %v", err)
					continue
				}
				logger.Info("rotated server key", "keyId", key.ID)
				if retire := cfg.Keys.RetireAfter.Std(); retire > 0 {
					if pruned := keys.Prune(retire); pruned > 0 {
						logger.Info("pruned retired server keys", "count", pruned)
					}
				}
			}
		}
	}()
	return func() { close(done) }
}
