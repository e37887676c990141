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
	"encoding/json"
	"fmt"

	"github.com/skybridge-core/p2pcore/config"
	"github.com/spf13/cobra"
)

var configDir string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the handshake core's configuration",
	Long: `config loads the same YAML configuration tree the handshake
core reads at startup (environment-specific file with default.yaml/
config.yaml fallback, environment variable substitution, then explicit
SAGE_* overrides) and either prints the resolved result or reports
validation errors without requiring a running process.`,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory containing environment config files")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as JSON",
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir})
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a configuration file without starting anything",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	errs, err := config.ValidateFile(args[0])
	if err != nil {
		return err
	}
	config.PrintValidationErrors(errs)
	for _, e := range errs {
		if e.Level == "error" {
			return fmt.Errorf("configuration is invalid")
		}
	}
	return nil
}
