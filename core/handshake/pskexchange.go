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
	"crypto/rand"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// PskExchange exchanges PSK_EXCHANGE/PSK_EXCHANGE_RSP: no DHE is performed,
// the pre-shared key itself seeds DeriveTrafficSecrets, and the Responder
// proves possession of the same PSK via verify_data instead of a signature.
func PskExchange(ctx context.Context, c *connection.Connection, pskHint []byte, measurementSummaryType byte) (uint32, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.PskExchange"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return 0, err
	}
	if err := c.RequireCapability(op, wire.CapPSKCapRsp); err != nil {
		return 0, err
	}

	reqSessionID := uint16(0)
	for reqSessionID == 0 {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		reqSessionID = uint16(b[0])<<8 | uint16(b[1])
	}
	reqContext := make([]byte, 8)
	if _, err := rand.Read(reqContext); err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	req := wire.PSKExchangeRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodePSKExchange,
			Param1:              measurementSummaryType,
		},
		ReqSessionID:     reqSessionID,
		PSKHint:          pskHint,
		RequesterContext: reqContext,
	}
	reqBuf, err := req.Encode()
	if err != nil {
		return 0, err
	}

	raw, err := rawExchange(ctx, c, op, reqBuf)
	if err != nil {
		return 0, err
	}
	hdr, err := decodeResponseHeader(op, reqBuf, raw)
	if err != nil {
		return 0, err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		raw, err = handleError(ctx, c, op, wire.CodePSKExchange, raw)
		if err != nil {
			return 0, err
		}
	}

	hashSize := c.Algo.BaseHash.HashSize()
	resp, err := wire.DecodePSKExchangeRspResponse(raw, hashSize, measurementSummaryType != 0)
	if err != nil {
		return 0, err
	}

	priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB)
	if err != nil {
		return 0, err
	}
	th1Input := append(append([]byte{}, priorTranscript...), reqBuf...)
	th1Input = append(th1Input, raw[:len(raw)-hashSize]...)
	th1, err := c.Adapter.Hash(c.Algo.BaseHash, th1Input)
	if err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	sessionID := sessionIDFromParts(reqSessionID, resp.RspSessionID)
	params := session.Params{
		SessionID:      sessionID,
		HashAlgo:       c.Algo.BaseHash,
		AEADSuite:      c.Algo.AEADSuite,
		SharedSecret:   pskHint,
		TranscriptHash: th1,
		IsPSK:          true,
	}
	reqSecret, rspSecret, err := session.DeriveTrafficSecrets(c.Adapter, params)
	if err != nil {
		return 0, err
	}
	sess := session.New(c.Adapter, params, reqSecret, rspSecret)

	expectedVerify, err := sess.FinishedVerifyData(session.DirectionResponse, th1Input)
	if err != nil {
		return 0, err
	}
	if !hmac.Equal(expectedVerify, resp.VerifyData) {
		return 0, spdmerr.New(op, spdmerr.CodeVerifyFail)
	}

	if err := c.Sessions.Allocate(sess); err != nil {
		return 0, err
	}

	if err := c.Transcript.Append(transcript.StreamK, reqBuf); err != nil {
		return 0, err
	}
	if err := c.Transcript.Append(transcript.StreamK, raw); err != nil {
		return 0, err
	}

	c.BindSession(sessionID)
	return sessionID, nil
}
