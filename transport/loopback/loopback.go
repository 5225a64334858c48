// SPDX-License-Identifier: LGPL-3.0-or-later

// Package loopback provides an in-memory back-to-back transport.Transport
// pair for exercising the Requester engine without a real link -- the same
// role libspdm's test suite gives its "socket_transport_test" spdm_device.
package loopback

import (
	"context"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// headerSize is zero: loopback carries no outer transport framing.
const headerSize = 0

// maxMessageSize mirrors SPDM's common data_transfer_size default.
const maxMessageSize = 4096

// Pair is two Transport endpoints wired to each other's channels.
type Pair struct {
	toResponder chan []byte
	toRequester chan []byte
}

// NewPair creates a connected requester/responder Transport pair.
func NewPair() (requester *Endpoint, responder *Endpoint) {
	p := &Pair{
		toResponder: make(chan []byte, 4),
		toRequester: make(chan []byte, 4),
	}
	return &Endpoint{send: p.toResponder, recv: p.toRequester},
		&Endpoint{send: p.toRequester, recv: p.toResponder}
}

// Endpoint is one side of a Pair.
type Endpoint struct {
	send chan []byte
	recv chan []byte
}

func (e *Endpoint) HeaderSize() int      { return headerSize }
func (e *Endpoint) MaxMessageSize() int  { return maxMessageSize }

func (e *Endpoint) AcquireSenderBuffer() ([]byte, error) {
	return make([]byte, maxMessageSize), nil
}
func (e *Endpoint) ReleaseSenderBuffer([]byte) {}

func (e *Endpoint) AcquireReceiverBuffer() ([]byte, error) {
	return make([]byte, maxMessageSize), nil
}
func (e *Endpoint) ReleaseReceiverBuffer([]byte) {}

func (e *Endpoint) Send(ctx context.Context, message []byte) error {
	buf := append([]byte{}, message...)
	select {
	case e.send <- buf:
		return nil
	case <-ctx.Done():
		return spdmerr.Wrap("loopback.Send", spdmerr.CodeSendFail, ctx.Err())
	}
}

func (e *Endpoint) Receive(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-e.recv:
		return buf, nil
	case <-ctx.Done():
		return nil, spdmerr.Wrap("loopback.Receive", spdmerr.CodeReceiveFail, ctx.Err())
	}
}
