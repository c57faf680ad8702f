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
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/web3authn/go-vrf-sdk/internal/config"
	"github.com/web3authn/go-vrf-sdk/pkg/shamir3pass"
)

// keygenCmd mints a relay server keypair offline. The printed scalars can
// seed a key store out of band; a relay started through serve generates its
// own key instead.
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a server lock keypair for the configured prime",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		group, err := shamir3pass.NewGroup(cfg.Shamir.PB64u)
		if err != nil {
			return err
		}
		key, err := group.GenerateKey(nil)
		if err != nil {
			return err
		}

		fmt.Printf("serverKeyId: %s\n", uuid.NewString())
		fmt.Printf("lock (s):    %s\n", group.EncodeScalar(key.E))
		fmt.Printf("unlock (d):  %s\n", group.EncodeScalar(key.D))
		return nil
	},
}
