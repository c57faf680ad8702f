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

package main

import (
	"fmt"
	"os"

	"github.com/web3authn/go-vrf-sdk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
