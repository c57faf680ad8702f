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

	"github.com/spf13/cobra"

	"github.com/web3authn/go-vrf-sdk/internal/config"
)

// primeCmd prints the configured group prime so client deployments can
// be provisioned with the exact value the relay serves.
var primeCmd = &cobra.Command{
	Use:   "prime",
	Short: "Print the configured Shamir 3-pass prime (base64url)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		fmt.Println(cfg.Shamir.PB64u)
		return nil
	},
}
