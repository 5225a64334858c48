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

// Package transcript accumulates the exact bytes a signature or MAC must
// cover, one stream per named transcript (message_a, message_b, ...). Two
// backing modes are supported so constrained callers can trade memory for
// re-hash cost; see Mode.
package transcript

import (
	"hash"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// Stream names a transcript buffer. The SPDM message flow binds each
// exchange to a fixed set of these.
type Stream string

const (
	StreamA Stream = "message_a" // VERSION..ALGORITHMS
	StreamB Stream = "message_b" // DIGESTS..CERTIFICATE (connection-scoped)
	StreamC Stream = "message_c" // CHALLENGE..CHALLENGE_AUTH
	StreamM Stream = "message_m" // GET_MEASUREMENTS (per-session copy once a session exists)
	StreamK Stream = "message_k" // KEY_EXCHANGE/PSK_EXCHANGE through the responder's half of FINISH
	StreamF Stream = "message_f" // FINISH/PSK_FINISH payloads

	// StreamMutC accumulates the encapsulated CHALLENGE/CHALLENGE_AUTH pair
	// the Responder issues back at this Requester during mutual
	// authentication (Param1 bit of KEY_EXCHANGE_RSP/FINISH), kept separate
	// from message_c since it authenticates the opposite direction.
	StreamMutC Stream = "message_mut_c"
)

// Mode selects how a stream holds its accumulated bytes.
type Mode int

const (
	// ModeBuffer keeps the full byte concatenation, re-hashed on each
	// SnapshotHash call. Simplest, and the only mode that lets Get return
	// the exact bytes (needed before any hash algorithm is negotiated).
	ModeBuffer Mode = iota
	// ModeRunningHash feeds bytes into a live hash.Hash as they arrive and
	// never retains them, for constrained callers; Get is unavailable once
	// the stream has committed to a running hash.
	ModeRunningHash
)

// HashFactory returns a fresh hash.Hash for a negotiated hash algorithm, so
// a ModeRunningHash stream can be told which algorithm to run without the
// transcript package depending on the crypto adapter.
type HashFactory func() hash.Hash

// MaxBufferSize bounds ModeBuffer streams; SPDM message sizes are
// transport-limited, but a monotonically growing certificate chain or
// measurement record must not be allowed to grow a stream unbounded.
const MaxBufferSize = 1 << 20

type bufferedStream struct {
	buf []byte
}

type hashedStream struct {
	factory HashFactory
	h       hash.Hash
	written bool
}

// Manager owns every named stream for one connection or one session. A
// connection's Manager and each of its sessions' Managers are independent;
// spec.md's session_transcript is simply a second Manager scoped to
// message_k/message_f/message_m.
type Manager struct {
	mode      Mode
	factory   HashFactory
	buffers   map[Stream]*bufferedStream
	hashes    map[Stream]*hashedStream
}

// NewManager creates a transcript Manager. factory is ignored in
// ModeBuffer and must be non-nil in ModeRunningHash.
func NewManager(mode Mode, factory HashFactory) *Manager {
	return &Manager{
		mode:    mode,
		factory: factory,
		buffers: make(map[Stream]*bufferedStream),
		hashes:  make(map[Stream]*hashedStream),
	}
}

// Append adds bytes to stream, growing its buffer or feeding its running
// hash depending on Mode. Returns BufferFull if ModeBuffer would exceed
// MaxBufferSize.
func (m *Manager) Append(stream Stream, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	switch m.mode {
	case ModeBuffer:
		s, ok := m.buffers[stream]
		if !ok {
			s = &bufferedStream{}
			m.buffers[stream] = s
		}
		if len(s.buf)+len(data) > MaxBufferSize {
			return spdmerr.New("transcript.Append", spdmerr.CodeBufferFull)
		}
		s.buf = append(s.buf, data...)
		return nil
	case ModeRunningHash:
		s, ok := m.hashes[stream]
		if !ok {
			if m.factory == nil {
				return spdmerr.New("transcript.Append", spdmerr.CodeInvalidStateLocal)
			}
			s = &hashedStream{factory: m.factory, h: m.factory()}
			m.hashes[stream] = s
		}
		s.h.Write(data)
		s.written = true
		return nil
	default:
		return spdmerr.New("transcript.Append", spdmerr.CodeInvalidStateLocal)
	}
}

// Reset clears stream, as happens on a VERSION/CAPABILITIES redo.
func (m *Manager) Reset(stream Stream) {
	delete(m.buffers, stream)
	delete(m.hashes, stream)
}

// ResetAll clears every stream this Manager holds.
func (m *Manager) ResetAll() {
	m.buffers = make(map[Stream]*bufferedStream)
	m.hashes = make(map[Stream]*hashedStream)
}

// SnapshotHash returns the digest of stream under hashAlgo without
// consuming it. In ModeBuffer it hashes the retained bytes with a
// caller-supplied hasher; in ModeRunningHash it clones the live hash state
// (hash.Hash implementations that don't support cloning must not be used
// with this mode -- the crypto adapter's sha256/sha512 wrappers do).
func (m *Manager) SnapshotHash(stream Stream, hasher func([]byte) []byte) ([]byte, error) {
	switch m.mode {
	case ModeBuffer:
		s, ok := m.buffers[stream]
		if !ok {
			return hasher(nil), nil
		}
		return hasher(s.buf), nil
	case ModeRunningHash:
		s, ok := m.hashes[stream]
		if !ok || !s.written {
			return hasher(nil), nil
		}
		cloner, ok := s.h.(interface{ Sum([]byte) []byte })
		if !ok {
			return nil, spdmerr.New("transcript.SnapshotHash", spdmerr.CodeInvalidStateLocal)
		}
		return cloner.Sum(nil), nil
	default:
		return nil, spdmerr.New("transcript.SnapshotHash", spdmerr.CodeInvalidStateLocal)
	}
}

// Get returns the raw accumulated bytes of stream. Only valid in
// ModeBuffer; ModeRunningHash streams never retain bytes.
func (m *Manager) Get(stream Stream) ([]byte, error) {
	if m.mode != ModeBuffer {
		return nil, spdmerr.New("transcript.Get", spdmerr.CodeInvalidStateLocal)
	}
	s, ok := m.buffers[stream]
	if !ok {
		return nil, nil
	}
	return append([]byte{}, s.buf...), nil
}

// Concat returns the concatenation of several streams' raw bytes, in
// order, for signing inputs that span more than one stream (e.g.
// message_a || message_b || message_c for CHALLENGE_AUTH).
func (m *Manager) Concat(streams ...Stream) ([]byte, error) {
	var out []byte
	for _, s := range streams {
		b, err := m.Get(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}
