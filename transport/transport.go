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

// Package transport defines the binding between the Requester engine and
// whatever carries SPDM bytes to the Responder (MCTP, PCIe DOE, a raw
// socket, ...). Concrete bindings live in subpackages; this package only
// holds the contract and the arena sizing helpers every binding shares.
package transport

import "context"

// Transport sends and receives raw SPDM messages, with the connection's
// buffer-acquire/release discipline modeled explicitly so a binding can
// reuse fixed arenas instead of allocating per message.
type Transport interface {
	// HeaderSize returns the byte count this binding reserves in front of
	// every message (e.g. an MCTP or PCIe DOE transport header).
	HeaderSize() int
	// MaxMessageSize returns the largest single message this binding can
	// carry without chunking.
	MaxMessageSize() int

	// AcquireSenderBuffer returns a buffer at least MaxMessageSize bytes
	// long for the caller to encode a request into, starting at
	// HeaderSize() to leave room for the binding's own framing.
	AcquireSenderBuffer() ([]byte, error)
	// ReleaseSenderBuffer returns ownership of the buffer obtained from
	// AcquireSenderBuffer.
	ReleaseSenderBuffer([]byte)

	// AcquireReceiverBuffer returns a buffer for Receive to fill.
	AcquireReceiverBuffer() ([]byte, error)
	// ReleaseReceiverBuffer returns ownership of the buffer obtained from
	// AcquireReceiverBuffer.
	ReleaseReceiverBuffer([]byte)

	// Send transmits message (already including any transport header the
	// binding asked for via HeaderSize).
	Send(ctx context.Context, message []byte) error
	// Receive blocks until a message arrives and returns the bytes
	// (transport header already stripped).
	Receive(ctx context.Context) ([]byte, error)
}
