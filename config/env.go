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
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables
// in every string field of cfg that plausibly carries a ${VAR} reference.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)
	cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
	cfg.Logging.FilePath = SubstituteEnvVars(cfg.Logging.FilePath)
	cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
	cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)
}

// GetEnvironment returns the current environment from SPDM_ENV or
// ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	env := os.Getenv("SPDM_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment is "production".
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether GetEnvironment is "development" or "local".
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
