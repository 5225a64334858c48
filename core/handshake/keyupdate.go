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
	"crypto/rand"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// keyUpdateStep sends one KEY_UPDATE operation and checks the ACK echoes it.
func keyUpdateStep(ctx context.Context, c *connection.Connection, sess *session.Session, op string, operation wire.KeyUpdateOperation, tag byte) error {
	req := wire.KeyUpdateRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeKeyUpdate,
		Param1:              byte(operation),
		Param2:              tag,
	}}
	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}
	resp, err := securedExchange(ctx, c, sess, op, reqBuf)
	if err != nil {
		return err
	}
	ack, err := wire.DecodeKeyUpdateAckResponse(resp)
	if err != nil {
		return err
	}
	if !ack.Matches(req) {
		return spdmerr.New(op, spdmerr.CodeUnexpectedResponse)
	}
	return nil
}

// KeyUpdate runs the three-step UPDATE_KEY/VERIFY_NEW_KEY/COMMIT_NEW_KEY
// sequence that rotates sessionID's request-direction traffic secret: once
// UPDATE_KEY is acknowledged the session switches to the next secret
// (Session.UpdateKey keeps the old one as a backup), VERIFY_NEW_KEY
// round-trips one exchange under the new secret proving the Responder applied
// the same update, and COMMIT_NEW_KEY ends the sequence. The response
// direction is not rotated, and no step here discards the backup secret.
func KeyUpdate(ctx context.Context, c *connection.Connection, sessionID uint32) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.KeyUpdate"
	sess, ok := c.Sessions.Find(sessionID)
	if !ok {
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	}

	tag := byte(1)
	if err := keyUpdateStep(ctx, c, sess, op, wire.KeyUpdateOperationUpdateKey, tag); err != nil {
		return err
	}
	if err := sess.UpdateKey(session.DirectionRequest); err != nil {
		return err
	}

	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}
	verifyTag := b[0]
	if err := keyUpdateStep(ctx, c, sess, op, wire.KeyUpdateOperationVerifyNewKey, verifyTag); err != nil {
		return err
	}

	if err := keyUpdateStep(ctx, c, sess, op, wire.KeyUpdateOperationCommitNewKey, tag); err != nil {
		return err
	}
	metrics.GlobalStats().RecordKeyUpdate()
	return nil
}
