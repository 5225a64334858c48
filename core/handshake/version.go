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

// SupportedVersions lists every SPDM wire version this Requester can speak,
// newest first, so GetVersion always negotiates the highest mutual version.
var SupportedVersions = []wire.Version{wire.Version13, wire.Version12, wire.Version11, wire.Version10}

// GetVersion drives the VERSION exchange: it resets any prior negotiation
// state (a connection may legally redo VERSION to restart a handshake),
// sends GET_VERSION, and picks the highest version both ends support.
// Always the first handler run on a fresh Connection.
func GetVersion(ctx context.Context, c *connection.Connection) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetVersion"
	c.Reset()

	req := wire.GetVersionRequest{Header: wire.Header{
		SPDMVersion:         wire.Version10,
		RequestResponseCode: wire.CodeGetVersion,
	}}
	buf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := exchange(ctx, c, op, wire.CodeGetVersion, transcript.StreamA, buf)
	if err != nil {
		return err
	}
	ver, err := wire.DecodeVersionResponse(resp)
	if err != nil {
		return err
	}
	if ver.VersionCount == 0 {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}

	peerVersions := make(map[wire.Version]bool, len(ver.Entries))
	for _, e := range ver.Entries {
		peerVersions[e.Version()] = true
	}

	chosen, err := selectVersion(peerVersions)
	if err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeVersionMismatch, err)
	}

	c.Version = chosen
	c.Advance(connection.StateAfterVersion)
	c.Log.Info("negotiated SPDM version")
	return nil
}

func selectVersion(peer map[wire.Version]bool) (wire.Version, error) {
	for _, v := range SupportedVersions {
		if peer[v] {
			return v, nil
		}
	}
	return 0, spdmerr.New("handshake.selectVersion", spdmerr.CodeVersionMismatch)
}
