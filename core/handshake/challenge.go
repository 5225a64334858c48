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
	"bytes"
	"context"
	"crypto/rand"
	"time"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// Challenge exchanges CHALLENGE/CHALLENGE_AUTH against slot, proving the peer
// holds the private key behind either a certificate-chain slot or the
// provisioned raw public key. measurementSummary requests the Responder
// fold its measurement summary hash into the signed payload.
func Challenge(ctx context.Context, c *connection.Connection, slot connection.SlotRef, measurementSummary bool) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.Challenge"
	// A provisioned raw public key lets CHALLENGE run straight from
	// Negotiated; a certificate slot needs GET_CERTIFICATE to have cached
	// the chain first.
	minState := connection.StateAfterCertificate
	if slot.IsProvisionedKey() {
		minState = connection.StateNegotiated
	}
	if err := c.RequireState(op, minState); err != nil {
		return err
	}
	if err := c.RequireCapability(op, wire.CapChalCap); err != nil {
		return err
	}
	// Reject a bad slot reference locally, before any wire or crypto work:
	// an out-of-range slot index, a slot GET_CERTIFICATE never cached, or the
	// provisioned-key sentinel on a connection with no provisioned key.
	if idx, ok := slot.Index(); ok {
		if idx >= uint8(len(c.PeerCertSlots)) {
			return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
		}
		if c.PeerCertSlots[idx] == nil {
			return spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
		}
	} else if c.PeerProvisionedPublicKey == nil {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}

	req := wire.ChallengeRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeChallenge,
		Param1:              slot.Param1(),
	}}
	if measurementSummary {
		req.Header.Param2 = 1
	}
	if _, err := rand.Read(req.Nonce[:]); err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}
	reqBuf, err := req.Encode()
	if err != nil {
		return err
	}

	// Challenge signs over the pre-signature bytes only, so it bypasses
	// exchange's blanket req+full-response transcript append and instead
	// appends req + PreSignatureBytes() itself below.
	raw, err := rawExchange(ctx, c, op, reqBuf)
	if err != nil {
		return err
	}
	hdr, err := decodeResponseHeader(op, reqBuf, raw)
	if err != nil {
		return err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		raw, err = handleError(ctx, c, op, wire.CodeChallenge, raw)
		if err != nil {
			return err
		}
	}

	hashSize := c.Algo.BaseHash.HashSize()
	sigSize := c.Adapter.SignatureSize(c.Algo.BaseAsym)
	resp, err := wire.DecodeChallengeAuthResponse(raw, hashSize, !slot.IsProvisionedKey(), measurementSummary, sigSize)
	if err != nil {
		return err
	}

	if !slot.IsProvisionedKey() {
		idx, _ := slot.Index()
		if !bytes.Equal(resp.CertChainHash, c.PeerCertSlots[idx].Digest) {
			return spdmerr.New(op, spdmerr.CodeVerifyCertFail)
		}
	}

	priorTranscript, err := c.Transcript.Concat(transcript.StreamA, transcript.StreamB)
	if err != nil {
		return err
	}
	signed := append(append([]byte{}, priorTranscript...), reqBuf...)
	signed = append(signed, resp.PreSignatureBytes()...)

	pub, err := peerPublicKey(c, slot)
	if err != nil {
		return err
	}
	verifyStart := time.Now()
	ok, err := c.Adapter.Verify(c.Algo.BaseAsym, c.Algo.BaseHash, false, pub, signed, resp.Signature)
	metrics.GlobalStats().RecordVerify(err == nil && ok, time.Since(verifyStart))
	if err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}
	if !ok {
		return spdmerr.New(op, spdmerr.CodeVerifyFail)
	}

	if err := c.Transcript.Append(transcript.StreamC, reqBuf); err != nil {
		return err
	}
	if err := c.Transcript.Append(transcript.StreamC, resp.PreSignatureBytes()); err != nil {
		return err
	}

	c.Advance(connection.StateAuthenticated)
	return nil
}
