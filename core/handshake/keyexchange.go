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

// sessionIDFromParts combines the Requester- and Responder-chosen 16-bit
// session id halves into the 32-bit session_id every later secured-message
// and KEY_UPDATE/FINISH exchange addresses the session by, matching
// libspdm's req_session_id | (rsp_session_id << 16) packing.
func sessionIDFromParts(req, rsp uint16) uint32 {
	return uint32(req) | uint32(rsp)<<16
}

// KeyExchange exchanges KEY_EXCHANGE/KEY_EXCHANGE_RSP: generates an
// ephemeral DHE keypair under the negotiated group, computes the shared
// secret once the Responder's ephemeral public key arrives, verifies the
// Responder's TH1 signature (against the cached certificate slot or the
// provisioned public key) and HMAC verify_data,
// and allocates a handshaking Session. Returns the session id on success.
func KeyExchange(ctx context.Context, c *connection.Connection, slot connection.SlotRef, measurementSummaryType byte) (uint32, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.KeyExchange"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return 0, err
	}
	if err := c.RequireCapability(op, wire.CapKeyExCap); err != nil {
		return 0, err
	}
	// The Responder's TH1 signature needs a key to verify against before
	// anything goes on the wire: a reassembled certificate slot or the
	// provisioned raw public key.
	if idx, ok := slot.Index(); ok {
		if idx >= uint8(len(c.PeerCertSlots)) {
			return 0, spdmerr.New(op, spdmerr.CodeInvalidMsgField)
		}
		if c.PeerCertSlots[idx] == nil {
			return 0, spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
		}
	} else if c.PeerProvisionedPublicKey == nil {
		return 0, spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}

	pub, priv, err := c.Adapter.GenerateEphemeral(c.Algo.DHEGroup)
	if err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	reqSessionID := uint16(0)
	for reqSessionID == 0 {
		var b [2]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		reqSessionID = uint16(b[0])<<8 | uint16(b[1])
	}

	req := wire.KeyExchangeRequest{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeKeyExchange,
			Param1:              measurementSummaryType,
			Param2:              slot.Param1(),
		},
		ReqSessionID: reqSessionID,
		ExchangeData: pub,
	}
	if _, err := rand.Read(req.RandomData[:]); err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
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
		raw, err = handleError(ctx, c, op, wire.CodeKeyExchange, raw)
		if err != nil {
			return 0, err
		}
	}

	hashSize := c.Algo.BaseHash.HashSize()
	exchSize := c.Adapter.PublicKeySize(c.Algo.DHEGroup)
	// This Requester never negotiates HANDSHAKE_IN_THE_CLEAR, so the
	// Responder always signs TH1.
	const hasSig = true
	sigSize := c.Adapter.SignatureSize(c.Algo.BaseAsym)
	resp, err := wire.DecodeKeyExchangeRspResponse(raw, exchSize, hashSize, measurementSummaryType != 0, sigSize, hasSig)
	if err != nil {
		return 0, err
	}

	shared, err := c.Adapter.ComputeShared(c.Algo.DHEGroup, resp.ExchangeData, priv)
	if err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB, transcript.StreamC)
	if err != nil {
		return 0, err
	}
	// The signature covers everything up to itself; verify_data (TH1 HMAC)
	// additionally covers the signature.
	sigInput := append(append([]byte{}, priorTranscript...), reqBuf...)
	sigInput = append(sigInput, resp.BytesBeforeSignature()...)
	th1Input := append(append([]byte{}, sigInput...), resp.Signature...)

	if len(resp.Signature) > 0 {
		pub, err := peerPublicKey(c, slot)
		if err != nil {
			return 0, err
		}
		ok, err := c.Adapter.Verify(c.Algo.BaseAsym, c.Algo.BaseHash, false, pub, sigInput, resp.Signature)
		if err != nil {
			return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		if !ok {
			return 0, spdmerr.New(op, spdmerr.CodeVerifyFail)
		}
	}

	th1, err := c.Adapter.Hash(c.Algo.BaseHash, th1Input)
	if err != nil {
		return 0, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	sessionID := sessionIDFromParts(reqSessionID, resp.RspSessionID)
	params := session.Params{
		SessionID:      sessionID,
		HashAlgo:       c.Algo.BaseHash,
		AEADSuite:      c.Algo.AEADSuite,
		SharedSecret:   shared,
		TranscriptHash: th1,
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
