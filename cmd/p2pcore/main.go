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
	"os"
	"strings"

	"github.com/skybridge-core/p2pcore/internal/logger"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "p2pcore",
	Short: "p2pcore CLI - PQC-capable peer handshake and trust tooling",
	Long: `p2pcore is the command-line entry point for the post-quantum-capable
peer handshake core: key generation, suite inspection, PAKE-based device
pairing, local trust-store management, and a two-party handshake demo
that exercises the same driver a real transport uses.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.GetDefaultLogger().SetLevel(parseLogLevel(logLevel))
	},
}

func parseLogLevel(s string) logger.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return logger.DebugLevel
	case "WARN":
		return logger.WarnLevel
	case "ERROR":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	// Commands are registered in their respective files:
	// - keygen.go: keygenCmd and its rotate subcommand
	// - suites.go: suitesCmd
	// - trust.go: trustCmd and its subcommands
	// - pair.go: pairCmd
	// - handshake.go: handshakeCmd
	// - config.go: configCmd and its subcommands
}
