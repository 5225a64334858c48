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
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// MeasurementsResult is GetMeasurements's caller-facing outcome: the parsed
// blocks for the operation requested, plus whatever the Responder signed
// over them (empty when signed was false).
type MeasurementsResult struct {
	Blocks    []wire.MeasurementBlock
	Signature []byte
}

// GetMeasurements exchanges GET_MEASUREMENTS/MEASUREMENTS. operation selects
// wire.MeasurementOperationAll, wire.MeasurementOperationTotalNumber, or a
// specific block index; signed requests the Responder sign the L1 record
// (message_a||message_b||message_c||this exchange) with a fresh nonce.
func GetMeasurements(ctx context.Context, c *connection.Connection, operation byte, signed bool, slot connection.SlotRef) (MeasurementsResult, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetMeasurements"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return MeasurementsResult{}, err
	}
	neededCap := wire.CapMeasCapNoSig
	if signed {
		neededCap = wire.CapMeasCapSig
	}
	if err := c.RequireCapability(op, neededCap); err != nil {
		return MeasurementsResult{}, err
	}

	req := wire.GetMeasurementsRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeGetMeasurements,
			Param2:              operation,
		},
		SlotIDParam: slot.Param1(),
	}
	if signed {
		req.Header.Param1 = 1
		if _, err := rand.Read(req.Nonce[:]); err != nil {
			return MeasurementsResult{}, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
	}
	reqBuf, err := req.Encode(signed)
	if err != nil {
		return MeasurementsResult{}, err
	}

	raw, err := transact(ctx, c, op, reqBuf)
	if err != nil {
		return MeasurementsResult{}, err
	}
	hdr, err := decodeResponseHeader(op, reqBuf, raw)
	if err != nil {
		return MeasurementsResult{}, err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		raw, err = handleError(ctx, c, op, wire.CodeGetMeasurements, raw)
		if err != nil {
			return MeasurementsResult{}, err
		}
	}

	sigSize := 0
	if signed {
		sigSize = c.Adapter.SignatureSize(c.Algo.BaseAsym)
	}
	resp, record, err := wire.DecodeMeasurementsResponse(raw, signed, sigSize)
	if err != nil {
		return MeasurementsResult{}, err
	}

	blocks, err := wire.ParseMeasurementBlocks(record)
	if err != nil {
		return MeasurementsResult{}, err
	}

	if signed {
		priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB, transcript.StreamC)
		if err != nil {
			return MeasurementsResult{}, err
		}
		presig := raw[:len(raw)-sigSize]
		signedData := append(append([]byte{}, priorTranscript...), reqBuf...)
		signedData = append(signedData, presig...)

		pub, err := peerPublicKey(c, slot)
		if err != nil {
			return MeasurementsResult{}, err
		}
		ok, err := c.Adapter.Verify(c.Algo.BaseAsym, c.Algo.BaseHash, false, pub, signedData, resp.Signature)
		if err != nil {
			return MeasurementsResult{}, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		if !ok {
			return MeasurementsResult{}, spdmerr.New(op, spdmerr.CodeVerifyFail)
		}
	}

	if err := c.Transcript.Append(transcript.StreamM, reqBuf); err != nil {
		return MeasurementsResult{}, err
	}
	if sigSize > 0 {
		if err := c.Transcript.Append(transcript.StreamM, raw[:len(raw)-sigSize]); err != nil {
			return MeasurementsResult{}, err
		}
	} else if err := c.Transcript.Append(transcript.StreamM, raw); err != nil {
		return MeasurementsResult{}, err
	}

	return MeasurementsResult{Blocks: blocks, Signature: resp.Signature}, nil
}
