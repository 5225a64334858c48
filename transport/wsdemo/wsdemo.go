// SPDX-License-Identifier: LGPL-3.0-or-later

// Package wsdemo is a reference transport.Transport binding over
// github.com/gorilla/websocket, showing how an embedder frames SPDM
// payloads on top of a message-oriented socket instead of this module's
// in-memory loopback pair. It is wired into cmd/spdm-requester's demo
// subcommand, not into the core engine -- spec.md section 1 scopes real
// transport bindings (MCTP, PCIe DOE, storage framing) out of this module.
package wsdemo

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// maxMessageSize mirrors the loopback transport's data_transfer_size
// default; a real binding would read this from its link's MTU negotiation.
const maxMessageSize = 4096

// Transport wraps one end of a gorilla/websocket connection as a
// transport.Transport. It carries no outer transport header of its own --
// websocket frames already delimit messages -- so HeaderSize is zero.
type Transport struct {
	conn *websocket.Conn
}

// New wraps an already-established *websocket.Conn (dialed or accepted by
// the caller) as a transport.Transport.
func New(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

func (t *Transport) HeaderSize() int     { return 0 }
func (t *Transport) MaxMessageSize() int { return maxMessageSize }

func (t *Transport) AcquireSenderBuffer() ([]byte, error) {
	return make([]byte, maxMessageSize), nil
}
func (t *Transport) ReleaseSenderBuffer([]byte) {}

func (t *Transport) AcquireReceiverBuffer() ([]byte, error) {
	return make([]byte, maxMessageSize), nil
}
func (t *Transport) ReleaseReceiverBuffer([]byte) {}

// Send writes message as one binary websocket frame. ctx cancellation is
// honored via the connection's write deadline since gorilla/websocket has
// no native context-aware Write.
func (t *Transport) Send(ctx context.Context, message []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(dl); err != nil {
			return spdmerr.Wrap("wsdemo.Send", spdmerr.CodeSendFail, err)
		}
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
		return spdmerr.Wrap("wsdemo.Send", spdmerr.CodeSendFail, err)
	}
	return nil
}

// Receive blocks for the next binary frame and returns its payload.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(dl); err != nil {
			return nil, spdmerr.Wrap("wsdemo.Receive", spdmerr.CodeReceiveFail, err)
		}
	}
	kind, payload, err := t.conn.ReadMessage()
	if err != nil {
		return nil, spdmerr.Wrap("wsdemo.Receive", spdmerr.CodeReceiveFail, err)
	}
	if kind != websocket.BinaryMessage {
		return nil, spdmerr.New("wsdemo.Receive", spdmerr.CodeInvalidMsgField)
	}
	return payload, nil
}

// Close closes the underlying websocket connection.
func (t *Transport) Close() error { return t.conn.Close() }
