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

package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error", "warning", "info"
}

// ValidateConfiguration validates the entire configuration
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errors []ValidationError

	errors = append(errors, validateEnvironment(cfg.Environment)...)

	if cfg.Handshake != nil {
		errors = append(errors, validateHandshakeConfig(cfg.Handshake)...)
	}

	if cfg.PAKE != nil {
		errors = append(errors, validatePAKEConfig(cfg.PAKE)...)
	}

	if cfg.TrustStore != nil {
		errors = append(errors, validateTrustStoreConfig(cfg.TrustStore)...)
	}

	if cfg.Session != nil {
		errors = append(errors, validateSessionConfig(cfg.Session)...)
	}

	return errors
}

// validateHandshakeConfig validates handshake retry/timeout settings
func validateHandshakeConfig(cfg *HandshakeConfig) []ValidationError {
	var errors []ValidationError

	if cfg.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "Handshake.Timeout",
			Message: "Timeout cannot be negative",
			Level:   "error",
		})
	}

	if cfg.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "Handshake.MaxRetries",
			Message: "Max retries cannot be negative",
			Level:   "error",
		})
	}

	if cfg.RetryBackoff < 0 {
		errors = append(errors, ValidationError{
			Field:   "Handshake.RetryBackoff",
			Message: "Retry backoff cannot be negative",
			Level:   "error",
		})
	}

	return errors
}

// validatePAKEConfig validates PAKE rate-limiter settings
func validatePAKEConfig(cfg *PAKEConfig) []ValidationError {
	var errors []ValidationError

	if cfg.MaxAttempts <= 0 {
		errors = append(errors, ValidationError{
			Field:   "PAKE.MaxAttempts",
			Message: "Max attempts should be positive",
			Level:   "warning",
		})
	}

	if cfg.MaxBackoff < cfg.BaseBackoff {
		errors = append(errors, ValidationError{
			Field:   "PAKE.MaxBackoff",
			Message: "Max backoff should not be smaller than base backoff",
			Level:   "warning",
		})
	}

	return errors
}

// validateTrustStoreConfig validates the trust store backend selection
func validateTrustStoreConfig(cfg *TrustStoreConfig) []ValidationError {
	var errors []ValidationError

	switch cfg.Backend {
	case "", "memory":
		// memory backend needs no DSN
	case "postgres":
		if cfg.DSN == "" {
			errors = append(errors, ValidationError{
				Field:   "TrustStore.DSN",
				Message: "postgres trust store backend requires a DSN",
				Level:   "error",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "TrustStore.Backend",
			Message: fmt.Sprintf("unknown trust store backend: %s (valid: memory, postgres)", cfg.Backend),
			Level:   "error",
		})
	}

	return errors
}

// validateSessionConfig validates session lifecycle limits
func validateSessionConfig(cfg *SessionConfig) []ValidationError {
	var errors []ValidationError

	if cfg.MaxSessions < 0 {
		errors = append(errors, ValidationError{
			Field:   "Session.MaxSessions",
			Message: "Max sessions cannot be negative",
			Level:   "error",
		})
	}

	return errors
}

// validateEnvironment validates environment settings
func validateEnvironment(env string) []ValidationError {
	var errors []ValidationError

	validEnvs := []string{"local", "development", "staging", "production"}
	env = strings.ToLower(env)

	valid := false
	for _, v := range validEnvs {
		if env == v {
			valid = true
			break
		}
	}

	if !valid {
		errors = append(errors, ValidationError{
			Field:   "Environment",
			Message: fmt.Sprintf("Invalid environment: %s (valid: %v)", env, validEnvs),
			Level:   "error",
		})
	}

	if env == "production" {
		errors = append(errors, ValidationError{
			Field:   "Environment",
			Message: "Running in production mode - ensure all security settings are configured",
			Level:   "info",
		})
	}

	return errors
}

// ValidateFile validates a configuration file
func ValidateFile(path string) ([]ValidationError, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", path)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return ValidateConfiguration(cfg), nil
}

// PrintValidationErrors prints validation errors in a formatted way
func PrintValidationErrors(errors []ValidationError) {
	if len(errors) == 0 {
		fmt.Println("configuration is valid")
		return
	}

	var errorCount, warningCount, infoCount int
	for _, e := range errors {
		switch e.Level {
		case "error":
			errorCount++
		case "warning":
			warningCount++
		case "info":
			infoCount++
		}
	}

	fmt.Printf("configuration validation found %d errors, %d warnings, %d info messages\n\n",
		errorCount, warningCount, infoCount)

	for _, e := range errors {
		if e.Level == "error" {
			fmt.Printf("ERROR: %s - %s\n", e.Field, e.Message)
		}
	}
	for _, e := range errors {
		if e.Level == "warning" {
			fmt.Printf("WARNING: %s - %s\n", e.Field, e.Message)
		}
	}
	for _, e := range errors {
		if e.Level == "info" {
			fmt.Printf("INFO: %s - %s\n", e.Field, e.Message)
		}
	}
}
