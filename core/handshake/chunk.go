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

package handshake

import (
	"context"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// ChunkedSend fragments payload into CHUNK_SEND/CHUNK_SEND_ACK exchanges when
// it exceeds the transport's single-message ceiling. Callers reach for this
// only when CapChunkCap was negotiated on both ends and an outgoing message
// -- most commonly a large SET_CERTIFICATE payload -- would otherwise not
// fit; ordinary requests always fit in one message and never call it.
func ChunkedSend(ctx context.Context, c *connection.Connection, payload []byte) error {
	const op = "handshake.ChunkedSend"
	if err := c.RequireCapability(op, wire.CapChunkCap); err != nil {
		return err
	}

	maxChunk := c.Transport.MaxMessageSize() - wire.HeaderSize - 10
	if maxChunk <= 0 {
		return spdmerr.New(op, spdmerr.CodeBufferTooSmall)
	}

	total := len(payload)
	seq := uint16(0)
	for off := 0; off < total; {
		end := off + maxChunk
		if end > total {
			end = total
		}
		req := wire.ChunkSendRequest{
			Header: wire.Header{
				SPDMVersion:         c.Version,
				RequestResponseCode: wire.CodeChunkSend,
			},
			ChunkSeqNo: seq,
			ChunkSize:  uint32(end - off),
			ChunkData:  payload[off:end],
		}
		if seq == 0 {
			req.LargeMessageSize = uint32(total)
		}
		if end == total {
			req.Header.Param1 = wire.ChunkLastFlag
		}
		buf, err := req.Encode()
		if err != nil {
			return err
		}
		raw, err := rawExchange(ctx, c, op, buf)
		if err != nil {
			return err
		}
		hdr, err := decodeResponseHeader(op, buf, raw)
		if err != nil {
			return err
		}
		if hdr.RequestResponseCode == wire.CodeError {
			if _, err := handleError(ctx, c, op, wire.CodeChunkSend, raw); err != nil {
				return err
			}
		}
		ack, err := wire.DecodeChunkSendAckResponse(raw)
		if err != nil {
			return err
		}
		if ack.ChunkSeqNo != seq {
			return spdmerr.New(op, spdmerr.CodeUnexpectedResponse)
		}
		off = end
		seq++
	}
	return nil
}

// ChunkedReceive drives CHUNK_GET/CHUNK_RESPONSE until the Responder's
// large_message_size worth of data has been reassembled.
func ChunkedReceive(ctx context.Context, c *connection.Connection) ([]byte, error) {
	const op = "handshake.ChunkedReceive"
	if err := c.RequireCapability(op, wire.CapChunkCap); err != nil {
		return nil, err
	}

	var out []byte
	var total uint32
	seq := uint16(0)
	for {
		req := wire.ChunkGetRequest{
			Header: wire.Header{
				SPDMVersion:         c.Version,
				RequestResponseCode: wire.CodeChunkGet,
			},
			ChunkSeqNo: seq,
		}
		buf, err := req.Encode()
		if err != nil {
			return nil, err
		}
		raw, err := rawExchange(ctx, c, op, buf)
		if err != nil {
			return nil, err
		}
		hdr, err := decodeResponseHeader(op, buf, raw)
		if err != nil {
			return nil, err
		}
		if hdr.RequestResponseCode == wire.CodeError {
			if _, err := handleError(ctx, c, op, wire.CodeChunkGet, raw); err != nil {
				return nil, err
			}
		}
		resp, err := wire.DecodeChunkResponseResponse(raw)
		if err != nil {
			return nil, err
		}
		if resp.ChunkSeqNo != seq {
			return nil, spdmerr.New(op, spdmerr.CodeUnexpectedResponse)
		}
		if seq == 0 {
			total = resp.LargeMessageSize
		}
		out = append(out, resp.ChunkData...)
		seq++
		if uint32(len(out)) >= total {
			break
		}
	}
	return out, nil
}
