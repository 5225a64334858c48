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
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// GetDigests exchanges GET_DIGESTS/DIGESTS, caching one hash-sized digest
// per set bit of the response's slot mask in PeerDigests, indexed by slot
// number, for GetCertificate's check of a reassembled chain's hash.
func GetDigests(ctx context.Context, c *connection.Connection) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetDigests"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return err
	}
	if err := c.RequireCapability(op, wire.CapCertCap); err != nil {
		return err
	}

	req := wire.GetDigestsRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeGetDigests,
	}}
	buf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := exchange(ctx, c, op, wire.CodeGetDigests, transcript.StreamB, buf)
	if err != nil {
		return err
	}
	hashSize := c.Algo.BaseHash.HashSize()
	if hashSize == 0 {
		return spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
	}
	dig, err := wire.DecodeDigestsResponse(resp, hashSize)
	if err != nil {
		return err
	}

	c.PeerDigests = make(map[uint8][]byte, len(dig.Digests))
	idx := 0
	for slot := uint8(0); slot < 8; slot++ {
		if dig.Header.Param2&wire.SlotBit(slot) == 0 {
			continue
		}
		c.PeerDigests[slot] = dig.Digests[idx]
		idx++
	}

	c.Advance(connection.StateAfterDigests)
	return nil
}
