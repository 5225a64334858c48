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

// SetCertificate exchanges SET_CERTIFICATE/SET_CERTIFICATE_RSP, writing
// chain (full cert_chain layout, CertChainHeader included) into the peer's
// slot. Any cached copy of that slot is invalidated so the next
// GET_CERTIFICATE refetches it.
func SetCertificate(ctx context.Context, c *connection.Connection, slot uint8, chain []byte) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.SetCertificate"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return err
	}
	if err := c.RequireCapability(op, wire.CapSetCertCap); err != nil {
		return err
	}
	if slot >= uint8(len(c.PeerCertSlots)) {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	if len(chain) == 0 {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}

	req := wire.SetCertificateRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeSetCertificate,
			Param1:              slot & 0x0F,
		},
		CertChain: chain,
	}
	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := exchange(ctx, c, op, wire.CodeSetCertificate, transcript.Stream(""), reqBuf)
	if err != nil {
		return err
	}
	ack, err := wire.DecodeSetCertificateRspResponse(resp)
	if err != nil {
		return err
	}
	if ack.Header.Param1&0x0F != slot&0x0F {
		return spdmerr.New(op, spdmerr.CodeUnexpectedResponse)
	}

	c.PeerCertSlots[slot] = nil
	delete(c.PeerDigests, slot)
	return nil
}
