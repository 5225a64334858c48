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

// GetCSR exchanges GET_CSR/CSR, copying the Responder's certificate signing
// request into buf. When buf is too small for the returned CSR it returns the
// CSR's full length together with CodeBufferTooSmall (the exchange has no
// transcript effect), mirroring libspdm_try_get_csr's *csr_len growth
// protocol.
func GetCSR(ctx context.Context, c *connection.Connection, buf []byte, opaqueData, requesterInfo []byte) (int, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetCSR"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return 0, err
	}
	if err := c.RequireCapability(op, wire.CapCSRCap); err != nil {
		return 0, err
	}

	req := wire.GetCSRRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeGetCSR,
		},
		OpaqueData:    opaqueData,
		RequesterInfo: requesterInfo,
	}
	reqBuf, err := req.Encode()
	if err != nil {
		return 0, err
	}

	resp, err := exchange(ctx, c, op, wire.CodeGetCSR, transcript.Stream(""), reqBuf)
	if err != nil {
		return 0, err
	}
	csr, err := wire.DecodeCSRResponse(resp)
	if err != nil {
		return 0, err
	}
	if !csr.FitsBuffer(len(buf)) {
		return len(csr.CSR), spdmerr.New(op, spdmerr.CodeBufferTooSmall)
	}
	n := copy(buf, csr.CSR)
	return n, nil
}
