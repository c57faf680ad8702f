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

// Package cli implements the vrf-relay command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "vrf-relay",
	Short: "Shamir 3-pass relay server for VRF keypair unlocking",
	Long: `vrf-relay holds the server-side exponents of the Shamir 3-pass
commutative encryption scheme used to lock VRF keypairs at rest.

Clients register by having the relay apply its lock to a blinded key
encryption key, and later unlock silently by having the relay remove
it. The relay only ever sees blinded values; it cannot decrypt any
keypair on its own, and clients cannot decrypt without it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (defaults apply when unset)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(primeCmd)
	rootCmd.AddCommand(versionCmd)
}
