// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/skybridge-core/p2pcore/suite"
	"github.com/spf13/cobra"
)

var suitesCmd = &cobra.Command{
	Use:   "suites",
	Short: "List registered handshake suites",
	RunE:  runSuites,
}

func init() {
	rootCmd.AddCommand(suitesCmd)
}

func runSuites(cmd *cobra.Command, args []string) error {
	for _, id := range suite.KnownSuites() {
		info, ok := suite.Lookup(id)
		if !ok {
			continue
		}
		fmt.Printf("0x%04x  %-24s tier=%-8s kem=%-14s sig=%s\n",
			uint16(id), info.Name, suite.ClassifyTier(id), info.KEM, info.Sig)
	}
	return nil
}
