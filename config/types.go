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

// Package config loads and validates the Requester's init-time options:
// message and certificate-chain size bounds, session limits, BUSY retry
// policy, per-capability feature gates, and the transcript backing mode
// (buffer vs running hash), plus the ambient logging/metrics sections
// every deployment of this engine carries regardless of which SPDM
// capabilities are enabled.
package config

import "time"

// Config is the top-level Requester configuration, loadable from YAML and
// overridable by environment variables (see env.go and loader.go).
type Config struct {
	Environment string        `yaml:"environment" json:"environment"`
	Connection  ConnectionConfig `yaml:"connection" json:"connection"`
	Features    FeatureGates  `yaml:"features" json:"features"`
	Retry       RetryConfig   `yaml:"retry" json:"retry"`
	Logging     LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ConnectionConfig bounds message and certificate-chain sizes and session
// counts, per spec.md section 6's configuration option table.
type ConnectionConfig struct {
	// MaxSPDMMsgSize upper-bounds a single SPDM payload (excluding any
	// transport framing).
	MaxSPDMMsgSize uint32 `yaml:"max_spdm_msg_size" json:"max_spdm_msg_size"`
	// MaxCertChainSize upper-bounds the peer certificate chain this
	// connection will reassemble from GET_CERTIFICATE chunks.
	MaxCertChainSize uint32 `yaml:"max_cert_chain_size" json:"max_cert_chain_size"`
	// MaxCertChainBlockLen is the chunk size requested by each
	// GET_CERTIFICATE round trip.
	MaxCertChainBlockLen uint16 `yaml:"max_cert_chain_block_len" json:"max_cert_chain_block_len"`
	// MaxSessionCount is the configured bound on concurrent sessions. It is
	// defaulted and validated here; session.Store does not read it and
	// always holds session.MaxSessions slots.
	MaxSessionCount int `yaml:"max_session_count" json:"max_session_count"`
	// RecordTranscriptDataSupport names ModeBuffer (true) or
	// ModeRunningHash (false) for transcripts. connection.New does not read
	// it; the transcript mode is the explicit mode argument New takes.
	RecordTranscriptDataSupport bool `yaml:"record_transcript_data_support" json:"record_transcript_data_support"`
}

// FeatureGates name the optional capability groups as configuration
// switches. They are loaded and defaulted with the rest of the
// configuration, but no handler consults them: whether a handler runs
// depends on the peer's advertised capabilities only.
type FeatureGates struct {
	MutAuth     bool `yaml:"mut_auth" json:"mut_auth"`
	PSKExchange bool `yaml:"psk_exchange" json:"psk_exchange"`
	GetCSR      bool `yaml:"get_csr" json:"get_csr"`
	Measurement bool `yaml:"measurement" json:"measurement"`
	Certificate bool `yaml:"certificate" json:"certificate"`
	Challenge   bool `yaml:"challenge" json:"challenge"`
}

// RetryConfig governs the BUSY back-off loop of handlers that go through
// the shared exchange helper. CHALLENGE, KEY_EXCHANGE, PSK_EXCHANGE, FINISH,
// PSK_FINISH, GET_MEASUREMENTS, chunking and mutual auth send once and do
// not retry on BUSY.
type RetryConfig struct {
	Times        int           `yaml:"times" json:"times"`
	Delay        time.Duration `yaml:"delay" json:"delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

// LoggingConfig controls the structured logger every component writes
// through (internal/logger).
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // text, json
	Output string `yaml:"output" json:"output"` // stdout, stderr, file
	FilePath string `yaml:"file_path" json:"file_path"`
}

// MetricsConfig controls the Prometheus exporter (internal/metrics).
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}
