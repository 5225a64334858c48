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

// Offered*Algos are the sets this Requester advertises in
// NEGOTIATE_ALGORITHMS; the Responder picks exactly one bit per category.
var (
	OfferedHashAlgos = wire.HashSHA256 | wire.HashSHA384 | wire.HashSHA512 |
		wire.HashSHA3_256 | wire.HashSHA3_384 | wire.HashSHA3_512
	OfferedAsymAlgos = wire.AsymECDSAP256 | wire.AsymECDSAP384 |
		wire.AsymEdDSA25519 | wire.AsymSecp256k1Ext
	OfferedDHEGroups  = wire.DHEX25519 | wire.DHEP256 | wire.DHEP384
	OfferedAEADSuites = wire.AEADAES256GCM | wire.AEADChaCha20Poly1305
)

// NegotiateAlgorithms exchanges NEGOTIATE_ALGORITHMS/ALGORITHMS: the
// Responder selects exactly one bit per category from what this Requester
// offered, and this handler validates each selection is a single bit that
// was actually offered before caching it on the Connection.
func NegotiateAlgorithms(ctx context.Context, c *connection.Connection) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.NegotiateAlgorithms"
	if err := c.RequireState(op, connection.StateAfterCapabilities); err != nil {
		return err
	}

	req := wire.NegotiateAlgorithmsRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeNegotiateAlgorithms,
		},
		MeasurementSpec: wire.MeasurementSpecDMTF,
		BaseAsymAlgo:    OfferedAsymAlgos,
		BaseHashAlgo:    OfferedHashAlgos,
		DHEGroups:       OfferedDHEGroups,
		AEADSuites:      OfferedAEADSuites,
		ReqBaseAsymAlgo: OfferedAsymAlgos,
		KeySchedules:    wire.KeyScheduleHKDF,
	}
	buf, err := req.Encode()
	if err != nil {
		return err
	}

	resp, err := exchange(ctx, c, op, wire.CodeNegotiateAlgorithms, transcript.StreamA, buf)
	if err != nil {
		return err
	}
	alg, err := wire.DecodeAlgorithmsResponse(resp)
	if err != nil {
		return err
	}

	if !isSingleBit32(uint32(alg.BaseHashSel)) || OfferedHashAlgos&alg.BaseHashSel == 0 {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}
	if !isSingleBit32(uint32(alg.BaseAsymSel)) || OfferedAsymAlgos&alg.BaseAsymSel == 0 {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}
	if !isSingleBit16(uint16(alg.DHEGroupSel)) || OfferedDHEGroups&alg.DHEGroupSel == 0 {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}
	if !isSingleBit16(uint16(alg.AEADSuiteSel)) || OfferedAEADSuites&alg.AEADSuiteSel == 0 {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}
	if alg.KeyScheduleSel != wire.KeyScheduleHKDF {
		return spdmerr.New(op, spdmerr.CodeNegotiationFail)
	}

	c.Algo = connection.NegotiatedAlgorithms{
		MeasurementSpec: alg.MeasurementSpec,
		MeasurementHash: alg.MeasurementHash,
		BaseHash:        alg.BaseHashSel,
		BaseAsym:        alg.BaseAsymSel,
		ReqBaseAsym:     alg.ReqBaseAsymSel,
		DHEGroup:        alg.DHEGroupSel,
		AEADSuite:       alg.AEADSuiteSel,
		KeySchedule:     alg.KeyScheduleSel,
	}
	c.Advance(connection.StateNegotiated)
	return nil
}

func isSingleBit32(v uint32) bool { return v != 0 && v&(v-1) == 0 }
func isSingleBit16(v uint16) bool { return v != 0 && v&(v-1) == 0 }
