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
	"time"

	"gopkg.in/yaml.v3"
)

// Default returns a Config with the same conservative defaults libspdm's
// sample requester app ships: a 4 KiB message bound, a 64 KiB certificate
// chain bound, 4 concurrent sessions, buffered transcripts, and every
// optional capability gate enabled.
func Default() *Config {
	return &Config{
		Environment: "development",
		Connection: ConnectionConfig{
			MaxSPDMMsgSize:              4096,
			MaxCertChainSize:            65536,
			MaxCertChainBlockLen:        1024,
			MaxSessionCount:             4,
			RecordTranscriptDataSupport: true,
		},
		Features: FeatureGates{
			MutAuth:     true,
			PSKExchange: true,
			GetCSR:      true,
			Measurement: true,
			Certificate: true,
			Challenge:   true,
		},
		Retry: RetryConfig{
			Times:    3,
			Delay:    50 * time.Millisecond,
			MaxDelay: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
	}
}

// setDefaults fills zero-valued fields of cfg from Default(), so a
// partially-specified YAML document still produces a usable Config.
func setDefaults(cfg *Config) {
	d := Default()
	if cfg.Environment == "" {
		cfg.Environment = d.Environment
	}
	if cfg.Connection.MaxSPDMMsgSize == 0 {
		cfg.Connection.MaxSPDMMsgSize = d.Connection.MaxSPDMMsgSize
	}
	if cfg.Connection.MaxCertChainSize == 0 {
		cfg.Connection.MaxCertChainSize = d.Connection.MaxCertChainSize
	}
	if cfg.Connection.MaxCertChainBlockLen == 0 {
		cfg.Connection.MaxCertChainBlockLen = d.Connection.MaxCertChainBlockLen
	}
	if cfg.Connection.MaxSessionCount == 0 {
		cfg.Connection.MaxSessionCount = d.Connection.MaxSessionCount
	}
	if cfg.Retry.Times == 0 {
		cfg.Retry.Times = d.Retry.Times
	}
	if cfg.Retry.Delay == 0 {
		cfg.Retry.Delay = d.Retry.Delay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = d.Retry.MaxDelay
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = d.Metrics.Addr
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = d.Metrics.Path
	}
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ValidationIssue is one finding from ValidateConfiguration.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// ValidateConfiguration checks cfg against the constraints spec.md section
// 3/6 impose: message and chain sizes must be nonzero and chain-block-len
// must not exceed the message bound (a chunk can't itself be chunked), the
// session count must be positive, and retry policy must be coherent.
func ValidateConfiguration(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Connection.MaxSPDMMsgSize == 0 {
		issues = append(issues, ValidationIssue{"connection.max_spdm_msg_size", "must be greater than zero", "error"})
	}
	if cfg.Connection.MaxCertChainSize == 0 {
		issues = append(issues, ValidationIssue{"connection.max_cert_chain_size", "must be greater than zero", "error"})
	}
	if cfg.Connection.MaxCertChainBlockLen == 0 {
		issues = append(issues, ValidationIssue{"connection.max_cert_chain_block_len", "must be greater than zero", "error"})
	} else if cfg.Connection.MaxSPDMMsgSize != 0 && uint32(cfg.Connection.MaxCertChainBlockLen) > cfg.Connection.MaxSPDMMsgSize {
		issues = append(issues, ValidationIssue{"connection.max_cert_chain_block_len", "must not exceed max_spdm_msg_size", "error"})
	}
	if cfg.Connection.MaxSessionCount <= 0 {
		issues = append(issues, ValidationIssue{"connection.max_session_count", "must be greater than zero", "error"})
	}
	if cfg.Retry.Times < 0 {
		issues = append(issues, ValidationIssue{"retry.times", "must not be negative", "error"})
	}
	if cfg.Retry.MaxDelay > 0 && cfg.Retry.Delay > cfg.Retry.MaxDelay {
		issues = append(issues, ValidationIssue{"retry.delay", "must not exceed retry.max_delay", "warning"})
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error", "fatal":
	default:
		issues = append(issues, ValidationIssue{"logging.level", "unrecognized level, falling back to info", "warning"})
	}
	return issues
}
