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

// Heartbeat exchanges HEARTBEAT/HEARTBEAT_ACK over sessionID's secured
// channel, keeping the session alive within the Responder's advertised
// HeartbeatPeriod. The caller is responsible for the cadence; this handler
// performs a single beat.
func Heartbeat(ctx context.Context, c *connection.Connection, sessionID uint32) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.Heartbeat"
	if err := c.RequireCapability(op, wire.CapHBeatCap); err != nil {
		return err
	}
	sess, ok := c.Sessions.Find(sessionID)
	if !ok {
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	}

	req := wire.HeartbeatRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeHeartbeat,
	}}
	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := securedExchange(ctx, c, sess, op, reqBuf)
	if err != nil {
		return err
	}
	if _, err := wire.DecodeHeartbeatAckResponse(resp); err != nil {
		return err
	}
	return nil
}
