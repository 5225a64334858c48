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
	"time"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// AnswerMutualAuth drains the Responder's encapsulated-request queue,
// answering every nested CHALLENGE with a CHALLENGE_AUTH this Requester
// signs over its own LocalPrivateKey/LocalCertChain, per the
// mut_auth_requested bit KEY_EXCHANGE_RSP/FINISH can set. It loops
// GET_ENCAPSULATED_REQUEST/DELIVER_ENCAPSULATED_RESPONSE until the Responder
// reports no further queued request (NextRequestID == 0).
func AnswerMutualAuth(ctx context.Context, c *connection.Connection) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.AnswerMutualAuth"
	if err := c.RequireCapability(op, wire.CapEncapCap); err != nil {
		return err
	}
	if c.LocalPrivateKey == nil || c.LocalCertChain == nil {
		return spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
	}

	for {
		getReq := wire.GetEncapsulatedRequestRequest{Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeGetEncapsulatedReq,
		}}
		getBuf, err := getReq.Encode()
		if err != nil {
			return err
		}
		raw, err := rawExchange(ctx, c, op, getBuf)
		if err != nil {
			return err
		}
		hdr, err := decodeResponseHeader(op, getBuf, raw)
		if err != nil {
			return err
		}
		if hdr.RequestResponseCode == wire.CodeError {
			if _, err := handleError(ctx, c, op, wire.CodeGetEncapsulatedReq, raw); err != nil {
				return err
			}
		}
		encapReq, err := wire.DecodeEncapsulatedRequestResponse(raw)
		if err != nil {
			return err
		}

		nestedResp, err := answerNestedChallenge(c, encapReq.NestedRequest)
		if err != nil {
			return err
		}

		deliver := wire.DeliverEncapsulatedResponseRequest{
			Header: wire.Header{
				SPDMVersion:         c.Version,
				RequestResponseCode: wire.CodeDeliverEncapsulatedR,
			},
			RequestID:      encapReq.RequestID,
			NestedResponse: nestedResp,
		}
		deliverBuf, err := deliver.Encode()
		if err != nil {
			return err
		}
		ackRaw, err := rawExchange(ctx, c, op, deliverBuf)
		if err != nil {
			return err
		}
		ackHdr, err := decodeResponseHeader(op, deliverBuf, ackRaw)
		if err != nil {
			return err
		}
		if ackHdr.RequestResponseCode == wire.CodeError {
			if _, err := handleError(ctx, c, op, wire.CodeDeliverEncapsulatedR, ackRaw); err != nil {
				return err
			}
		}
		ack, err := wire.DecodeEncapsulatedResponseAckResponse(ackRaw)
		if err != nil {
			return err
		}
		if ack.NextRequestID == 0 {
			return nil
		}
	}
}

// answerNestedChallenge builds a CHALLENGE_AUTH for a nested CHALLENGE
// request the Responder delivered via ENCAPSULATED_REQUEST, signing over
// message_mut_c (this Requester's own certificate chain hash, the echoed
// nonce, and the request/presig-response bytes) instead of message_c, which
// authenticates the opposite direction.
func answerNestedChallenge(c *connection.Connection, nestedReq []byte) ([]byte, error) {
	const op = "handshake.answerNestedChallenge"
	reqHdr, err := wire.DecodeHeader(nestedReq)
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeInvalidMsgSize, err)
	}
	if reqHdr.RequestResponseCode != wire.CodeChallenge {
		return nil, spdmerr.New(op, spdmerr.CodeUnexpectedRequest)
	}
	if len(nestedReq) != int(wire.HeaderSize)+wire.NonceSize {
		return nil, spdmerr.New(op, spdmerr.CodeInvalidMsgSize)
	}
	var nonce [wire.NonceSize]byte
	copy(nonce[:], nestedReq[wire.HeaderSize:])

	certHash, err := c.Adapter.Hash(c.Algo.BaseHash, c.LocalCertChain)
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	resp := wire.ChallengeAuthResponse{
		Header: wire.Header{
			SPDMVersion:         c.Version,
			RequestResponseCode: wire.CodeChallengeAuth,
			Param1:              reqHdr.Param1,
		},
		CertChainHash: certHash,
		Nonce:         nonce,
	}
	presig := resp.PreSignatureBytes()

	priorMutC, err := c.Transcript.Get(transcript.StreamMutC)
	if err != nil {
		return nil, err
	}
	signed := append(append([]byte{}, priorMutC...), nestedReq...)
	signed = append(signed, presig...)

	signStart := time.Now()
	sig, err := c.Adapter.Sign(c.Algo.ReqBaseAsym, c.Algo.BaseHash, false, c.LocalPrivateKey, signed)
	metrics.GlobalStats().RecordSign(time.Since(signStart))
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}

	if err := c.Transcript.Append(transcript.StreamMutC, nestedReq); err != nil {
		return nil, err
	}
	if err := c.Transcript.Append(transcript.StreamMutC, presig); err != nil {
		return nil, err
	}

	return append(presig, sig...), nil
}
