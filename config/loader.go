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
	"path/filepath"
	"strconv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables environment variable substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: it tries
// <dir>/<env>.yaml, then <dir>/default.yaml, then <dir>/config.yaml, and
// finally falls back to Default() if none exist.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFile(filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)))
	if err != nil {
		cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "default.yaml"))
		if err != nil {
			cfg, err = loadConfigFile(filepath.Join(options.ConfigDir, "config.yaml"))
			if err != nil {
				cfg = &Config{}
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, issue := range ValidateConfiguration(cfg) {
			if issue.Level == "error" {
				return nil, fmt.Errorf("configuration validation failed: %s - %s", issue.Field, issue.Message)
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides cfg with SPDM_* environment
// variables, the highest-priority layer.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("SPDM_MAX_MSG_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Connection.MaxSPDMMsgSize = uint32(n)
		}
	}
	if v := os.Getenv("SPDM_MAX_CERT_CHAIN_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Connection.MaxCertChainSize = uint32(n)
		}
	}
	if v := os.Getenv("SPDM_MAX_SESSION_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Connection.MaxSessionCount = n
		}
	}
	if v := os.Getenv("SPDM_RETRY_TIMES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.Times = n
		}
	}
	if v := os.Getenv("SPDM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPDM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SPDM_METRICS_ENABLED"); v == "true" {
		cfg.Metrics.Enabled = true
	} else if v == "false" {
		cfg.Metrics.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	return Load(LoaderOptions{ConfigDir: "config", Environment: environment})
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
