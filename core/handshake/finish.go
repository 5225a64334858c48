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
	"crypto/hmac"
	"time"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// Finish exchanges FINISH/FINISH_RSP over sessionID, completing a
// KEY_EXCHANGE handshake. When mutAuth is set, this Requester signs TH over
// its own LocalPrivateKey before computing verify_data, answering the
// Responder's mut_auth_requested bit from KEY_EXCHANGE_RSP.
func Finish(ctx context.Context, c *connection.Connection, sessionID uint32, mutAuth bool, slot connection.SlotRef) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	start := time.Now()
	const op = "handshake.Finish"
	sess, ok := c.Sessions.Find(sessionID)
	if !ok {
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	}

	priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB, transcript.StreamC, transcript.StreamK)
	if err != nil {
		return err
	}

	req := wire.FinishRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeFinish,
		Param2:              slot.Param1(),
	}}
	if mutAuth {
		req.Header.Param1 = 1
		if c.LocalPrivateKey == nil {
			return spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
		}
		sigData := append([]byte{}, priorTranscript...)
		sig, err := c.Adapter.Sign(c.Algo.ReqBaseAsym, c.Algo.BaseHash, false, c.LocalPrivateKey, sigData)
		if err != nil {
			return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		req.Signature = sig
	}

	reqPresig, err := req.Encode() // VerifyData unset: header + optional signature only
	if err != nil {
		return err
	}
	thBeforeVerify := append(append([]byte{}, priorTranscript...), reqPresig...)
	verify, err := sess.FinishedVerifyData(session.DirectionRequest, thBeforeVerify)
	if err != nil {
		return err
	}
	req.VerifyData = verify

	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	raw, err := rawExchange(ctx, c, op, reqBuf)
	if err != nil {
		return err
	}
	hdr, err := decodeResponseHeader(op, reqBuf, raw)
	if err != nil {
		return err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		raw, err = handleError(ctx, c, op, wire.CodeFinish, raw)
		if err != nil {
			return err
		}
	}

	hashSize := c.Algo.BaseHash.HashSize()
	expectVerifyData := !c.LocalCapabilities.Has(wire.CapHandshakeInC)
	resp, err := wire.DecodeFinishRspResponse(raw, hashSize, expectVerifyData)
	if err != nil {
		return err
	}

	if expectVerifyData {
		thRsp := append(append([]byte{}, thBeforeVerify...), req.VerifyData...)
		expected, err := sess.FinishedVerifyData(session.DirectionResponse, thRsp)
		if err != nil {
			return err
		}
		if !hmac.Equal(expected, resp.VerifyData) {
			return spdmerr.New(op, spdmerr.CodeVerifyFail)
		}
	}

	if err := c.Transcript.Append(transcript.StreamF, reqBuf); err != nil {
		return err
	}
	if err := c.Transcript.Append(transcript.StreamF, raw); err != nil {
		return err
	}

	sess.Establish()
	metrics.GlobalStats().RecordSessionEstablish(time.Since(start))
	return nil
}

// PskFinish exchanges PSK_FINISH/PSK_FINISH_RSP, the PSK_EXCHANGE
// counterpart to Finish with no signature step.
func PskFinish(ctx context.Context, c *connection.Connection, sessionID uint32) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	start := time.Now()
	const op = "handshake.PskFinish"
	sess, ok := c.Sessions.Find(sessionID)
	if !ok {
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	}

	priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB, transcript.StreamK)
	if err != nil {
		return err
	}

	req := wire.PSKFinishRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodePSKFinish,
	}}
	reqPresig, err := req.Encode() // VerifyData unset: header bytes only
	if err != nil {
		return err
	}
	thBeforeVerify := append(append([]byte{}, priorTranscript...), reqPresig...)
	verify, err := sess.FinishedVerifyData(session.DirectionRequest, thBeforeVerify)
	if err != nil {
		return err
	}
	req.VerifyData = verify

	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	raw, err := rawExchange(ctx, c, op, reqBuf)
	if err != nil {
		return err
	}
	hdr, err := decodeResponseHeader(op, reqBuf, raw)
	if err != nil {
		return err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		raw, err = handleError(ctx, c, op, wire.CodePSKFinish, raw)
		if err != nil {
			return err
		}
	}
	if _, err := wire.DecodePSKFinishRspResponse(raw); err != nil {
		return err
	}

	if err := c.Transcript.Append(transcript.StreamF, reqBuf); err != nil {
		return err
	}
	if err := c.Transcript.Append(transcript.StreamF, raw); err != nil {
		return err
	}

	sess.Establish()
	metrics.GlobalStats().RecordSessionEstablish(time.Since(start))
	return nil
}
