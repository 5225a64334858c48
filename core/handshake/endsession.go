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
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// EndSession exchanges END_SESSION/END_SESSION_ACK over the secured message
// layer and tears the session down locally once the Responder acknowledges.
// preserveState keeps negotiated algorithms and certificates valid for a
// follow-up KEY_EXCHANGE/PSK_EXCHANGE on the same Connection.
func EndSession(ctx context.Context, c *connection.Connection, sessionID uint32, preserveState bool) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.EndSession"
	sess, ok := c.Sessions.Find(sessionID)
	if !ok {
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	}

	req := wire.EndSessionRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeEndSession,
	}}
	if preserveState {
		req.Header.Param1 = wire.EndSessionPreserveState
	}
	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := securedExchange(ctx, c, sess, op, reqBuf)
	if err != nil {
		return err
	}
	if _, err := wire.DecodeEndSessionAckResponse(resp); err != nil {
		return err
	}

	wasActive := false
	if active, ok := c.ActiveSession(); ok && active.ID == sessionID {
		wasActive = true
	}
	c.Sessions.Close(sessionID)
	if wasActive {
		c.BindSession(0)
	}
	metrics.GlobalStats().RecordSessionClosed()
	return nil
}
