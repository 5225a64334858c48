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
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/internal/logger"
	"github.com/sage-x-project/spdm-requester/internal/metrics"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// connRetryPolicy converts a Connection's configured retry parameters into
// the RetryPolicy withRetry understands, falling back to DefaultRetryPolicy
// when no Config is attached (e.g. a handler exercised directly in a test).
func connRetryPolicy(c *connection.Connection) RetryPolicy {
	if c.Cfg == nil {
		return DefaultRetryPolicy
	}
	return RetryPolicy{
		Times:        c.Cfg.Retry.Times,
		InitialDelay: c.Cfg.Retry.Delay,
		MaxDelay:     c.Cfg.Retry.MaxDelay,
	}
}

// rawExchange sends req as one SPDM message and returns the raw response
// bytes, routing through the connection's transport buffer-acquire/release
// discipline. It never touches the transcript or interprets ERROR
// responses -- callers layer that on top via exchange.
func rawExchange(ctx context.Context, c *connection.Connection, op string, req []byte) ([]byte, error) {
	hs := c.Transport.HeaderSize()

	sender, err := c.Transport.AcquireSenderBuffer()
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeSendFail, err)
	}
	defer c.Transport.ReleaseSenderBuffer(sender)

	if len(sender) < hs+len(req) {
		return nil, spdmerr.New(op, spdmerr.CodeBufferTooSmall)
	}
	copy(sender[hs:hs+len(req)], req)
	if err := c.Transport.Send(ctx, sender[:hs+len(req)]); err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeSendFail, err)
	}
	metrics.MessagesProcessed.WithLabelValues("request", "sent").Inc()
	metrics.MessageSize.Observe(float64(len(req)))

	receiver, err := c.Transport.AcquireReceiverBuffer()
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeReceiveFail, err)
	}
	defer c.Transport.ReleaseReceiverBuffer(receiver)

	resp, err := c.Transport.Receive(ctx)
	if err != nil {
		return nil, spdmerr.Wrap(op, spdmerr.CodeReceiveFail, err)
	}
	metrics.MessagesProcessed.WithLabelValues("response", "received").Inc()
	metrics.MessageSize.Observe(float64(len(resp)))
	return resp, nil
}

// decodeResponseHeader decodes raw's header and confirms its SPDMVersion
// matches reqBuf's, per spec.md 3's "any response whose spdm_version header
// byte disagrees with the request is rejected (INVALID_MSG_FIELD)" rule and
// 4.6 step 8's explicit version check. Every handler that decodes a
// response header -- whether through exchange/securedExchange or directly
// after rawExchange -- routes through this so the check can't be skipped.
func decodeResponseHeader(op string, reqBuf, raw []byte) (wire.Header, error) {
	reqHdr, err := wire.DecodeHeader(reqBuf)
	if err != nil {
		return wire.Header{}, spdmerr.Wrap(op, spdmerr.CodeInvalidMsgSize, err)
	}
	hdr, err := wire.DecodeHeader(raw)
	if err != nil {
		return wire.Header{}, spdmerr.Wrap(op, spdmerr.CodeInvalidMsgSize, err)
	}
	if hdr.SPDMVersion != reqHdr.SPDMVersion {
		return wire.Header{}, spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	return hdr, nil
}

// transact performs one request/response round trip, sealed under the
// bound session's secured-message context when one is active (a
// post-handshake GET_DIGESTS or GET_MEASUREMENTS travels encrypted) and as
// cleartext framing otherwise. Either way the caller sees the SPDM
// plaintext.
func transact(ctx context.Context, c *connection.Connection, op string, req []byte) ([]byte, error) {
	if sess, ok := c.ActiveSession(); ok {
		return securedTransact(ctx, c, sess, op, req)
	}
	return rawExchange(ctx, c, op, req)
}

// exchange runs transact, interpreting an ERROR response through
// handleError, and re-issues the request on BUSY per the connection's retry
// policy, whatever its opcode. On success it
// appends req and the (non-error) response to stream, when stream is
// non-empty, matching libspdm's append-both-sides-of-the-wire-exchange
// transcript discipline.
func exchange(ctx context.Context, c *connection.Connection, op string, requestCode wire.RequestResponseCode, stream transcript.Stream, req []byte) ([]byte, error) {
	var resp []byte
	err := withRetry(ctx, connRetryPolicy(c), func() error {
		r, err := transact(ctx, c, op, req)
		if err != nil {
			return err
		}
		hdr, err := decodeResponseHeader(op, req, r)
		if err != nil {
			return err
		}
		if hdr.RequestResponseCode == wire.CodeError {
			r, err = handleError(ctx, c, op, requestCode, r)
			if err != nil {
				return err
			}
		}
		resp = r
		return nil
	})
	if err != nil {
		c.Log.Error("handshake exchange failed", logger.String("op", op), logger.Error(err))
		return nil, err
	}
	if stream != "" {
		if err := c.Transcript.Append(stream, req); err != nil {
			return nil, err
		}
		if err := c.Transcript.Append(stream, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// securedTransact is the sealed round trip shared by securedExchange and
// transact: seal the plaintext request under sess, send it, and unwrap the
// matching response record. No header or ERROR interpretation happens here.
func securedTransact(ctx context.Context, c *connection.Connection, sess *session.Session, op string, plaintextReq []byte) ([]byte, error) {
	rec, err := sess.Seal(session.DirectionRequest, plaintextReq)
	if err != nil {
		return nil, err
	}
	wireReq, err := rec.Encode()
	if err != nil {
		return nil, err
	}

	raw, err := rawExchange(ctx, c, op, wireReq)
	if err != nil {
		return nil, err
	}

	respRec, err := wire.DecodeSecuredMessageRecord(raw, c.Adapter.IVSize(c.Algo.AEADSuite), c.Adapter.TagSize(c.Algo.AEADSuite))
	if err != nil {
		return nil, err
	}
	return sess.Open(session.DirectionResponse, respRec)
}

// securedExchange wraps plaintextReq in a DSP0277 secured-message record
// under sess, sends it, and unwraps the matching response -- the framing
// END_SESSION and KEY_UPDATE use once a session is established, unlike the
// cleartext exchange every pre-session handler uses.
func securedExchange(ctx context.Context, c *connection.Connection, sess *session.Session, op string, plaintextReq []byte) ([]byte, error) {
	plaintextResp, err := securedTransact(ctx, c, sess, op, plaintextReq)
	if err != nil {
		return nil, err
	}

	hdr, err := decodeResponseHeader(op, plaintextReq, plaintextResp)
	if err != nil {
		return nil, err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		return nil, handleErrorNoRetry(op, plaintextResp)
	}
	return plaintextResp, nil
}
