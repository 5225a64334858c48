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

// Package session implements the post-handshake session store and the
// DSP0277 secured-message layer: per-direction AEAD keys, sequence
// numbers, and key-update epochs.
package session

import (
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/cryptoadapter"
	"github.com/sage-x-project/spdm-requester/wire"
)

// State is a session's handshake lifecycle stage.
type State int

const (
	StateNotStarted State = iota
	StateHandshaking
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// Direction selects which traffic secret a secured-message operation uses.
type Direction int

const (
	DirectionRequest Direction = iota
	DirectionResponse
)

// Params carries everything a Session needs to derive its traffic secrets,
// computed by the KEY_EXCHANGE/PSK_EXCHANGE handler from the negotiated
// algorithms, the DHE shared secret (or PSK), and the handshake transcript.
type Params struct {
	SessionID    uint32
	HashAlgo     wire.HashAlgo
	AEADSuite    wire.AEADSuite
	SharedSecret []byte // DHE shared secret, or the PSK itself for PSK_EXCHANGE
	// TranscriptHash is TH1: the hash of message_a||message_b||message_c||
	// message_k up to (excluding) the exchange response's verify_data. It is
	// the HKDF-Expand-Label context for the handshake secrets, binding the
	// session keys to the transcript both sides observed.
	TranscriptHash []byte
	IsPSK          bool
}

// Session is one post-handshake logical channel: derived keys, independent
// per-direction sequence numbers, and its own transcript (message_k,
// message_f, and a per-session message_m).
type Session struct {
	ID    uint32
	State State

	adapter cryptoadapter.Adapter
	hash    wire.HashAlgo
	aead    wire.AEADSuite

	reqSecret []byte
	rspSecret []byte
	reqSeq    uint64
	rspSeq    uint64

	// keyUpdateBackup holds the previous traffic secret for exactly one
	// message after update_key, so a peer that hasn't yet applied its own
	// update can still be decoded once more.
	keyUpdateBackup map[Direction][]byte

	Transcript *transcript.Manager // message_k, message_f
	Measurement *transcript.Manager // per-session message_m
}
