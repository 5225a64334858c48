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

// DefaultCapabilities is what this Requester advertises unless a caller
// overrides Connection.LocalCapabilities before calling GetCapabilities.
const DefaultCapabilities = wire.CapCertCap | wire.CapChalCap | wire.CapEncryptCap |
	wire.CapMacCap | wire.CapKeyExCap | wire.CapPSKCapRsp | wire.CapKeyUpdCap |
	wire.CapMeasCapSig | wire.CapHBeatCap | wire.CapCSRCap

// GetCapabilities exchanges CAPABILITIES: advertises this Requester's flags
// (defaulting LocalCapabilities if the caller never set them) and caches the
// peer's flags for every later handler's precondition checks.
func GetCapabilities(ctx context.Context, c *connection.Connection) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetCapabilities"
	if err := c.RequireState(op, connection.StateAfterVersion); err != nil {
		return err
	}
	if c.LocalCapabilities == 0 {
		c.LocalCapabilities = DefaultCapabilities
	}

	maxMsg := uint32(c.Transport.MaxMessageSize())
	if c.Cfg != nil && c.Cfg.Connection.MaxSPDMMsgSize > 0 && c.Cfg.Connection.MaxSPDMMsgSize < maxMsg {
		maxMsg = c.Cfg.Connection.MaxSPDMMsgSize
	}

	req := wire.GetCapabilitiesRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeGetCapabilities,
		},
		Flags:          c.LocalCapabilities,
		DataTransferSize: maxMsg,
		MaxSPDMMsgSize:   maxMsg,
	}
	buf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := exchange(ctx, c, op, wire.CodeGetCapabilities, transcript.StreamA, buf)
	if err != nil {
		return err
	}
	cap, err := wire.DecodeCapabilitiesResponse(resp)
	if err != nil {
		return err
	}
	if err := checkFlagCoherency(op, cap.Flags); err != nil {
		return err
	}

	c.PeerCapabilities = cap.Flags
	c.Advance(connection.StateAfterCapabilities)
	return nil
}

// checkFlagCoherency rejects peer flag combinations DSP0274 forbids: a
// session cipher capability (ENCRYPT_CAP/MAC_CAP) with no way to establish
// a session (KEY_EX_CAP or a PSK capability), HANDSHAKE_IN_THE_CLEAR
// without KEY_EX_CAP, and MUT_AUTH without ENCAP.
func checkFlagCoherency(op string, flags wire.CapabilityFlags) error {
	sessionCapable := flags.Has(wire.CapKeyExCap) ||
		flags.Has(wire.CapPSKCapRsp) || flags.Has(wire.CapPSKCapRsponly)
	if (flags.Has(wire.CapEncryptCap) || flags.Has(wire.CapMacCap)) && !sessionCapable {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	if flags.Has(wire.CapHandshakeInC) && !flags.Has(wire.CapKeyExCap) {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	if flags.Has(wire.CapMutAuthCap) && !flags.Has(wire.CapEncapCap) {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	return nil
}
