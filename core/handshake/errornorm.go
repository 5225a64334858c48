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
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// handleError normalizes an ERROR response received while waiting for
// requestCode's reply. BUSY is surfaced as a typed CodeBusyPeer error so the
// enclosing withRetry loop re-issues the request; RESPONSE_NOT_READY is
// handled inline with a single RESPOND_IF_READY retry (one nesting level,
// per spec.md 4.8 -- a second NOT_READY is surfaced as an error rather than
// looping again); every other code maps to its spdmerr taxonomy entry with
// no retry.
func handleError(ctx context.Context, c *connection.Connection, op string, requestCode wire.RequestResponseCode, raw []byte) ([]byte, error) {
	errResp, err := wire.DecodeErrorResponse(raw)
	if err != nil {
		return nil, err
	}

	switch errResp.Code {
	case wire.ErrorCodeBusy:
		return nil, spdmerr.New(op, spdmerr.CodeBusyPeer)

	case wire.ErrorCodeResponseNotReady:
		return respondIfReady(ctx, c, op, requestCode, errResp)

	case wire.ErrorCodeRequestResynch:
		c.Reset()
		return nil, spdmerr.New(op, spdmerr.CodeResynchPeer)

	case wire.ErrorCodeVersionMismatch:
		return nil, spdmerr.New(op, spdmerr.CodeVersionMismatch)

	case wire.ErrorCodeUnsupportedRequest:
		return nil, spdmerr.New(op, spdmerr.CodeUnsupportedCap)

	case wire.ErrorCodeUnexpectedRequest:
		return nil, spdmerr.New(op, spdmerr.CodeUnexpectedRequest)

	case wire.ErrorCodeInvalidSession:
		return nil, spdmerr.New(op, spdmerr.CodeInvalidStatePeer)

	case wire.ErrorCodeSessionLimitExceeded:
		return nil, spdmerr.New(op, spdmerr.CodeSessionLimitExceeded)

	case wire.ErrorCodeDecryptError:
		return nil, spdmerr.New(op, spdmerr.CodeCryptoError)

	case wire.ErrorCodeInvalidRequest:
		return nil, spdmerr.New(op, spdmerr.CodeInvalidMsgField)

	default:
		// Reserved/unrecognized error codes are treated as a malformed
		// response rather than guessed at.
		return nil, spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
}

// handleErrorNoRetry normalizes an ERROR response received over the secured
// message layer (END_SESSION, KEY_UPDATE): no RESPOND_IF_READY dance, since
// that exchange is itself a cleartext, pre-session message type.
func handleErrorNoRetry(op string, raw []byte) error {
	errResp, err := wire.DecodeErrorResponse(raw)
	if err != nil {
		return err
	}
	switch errResp.Code {
	case wire.ErrorCodeBusy:
		return spdmerr.New(op, spdmerr.CodeBusyPeer)
	case wire.ErrorCodeRequestResynch:
		return spdmerr.New(op, spdmerr.CodeResynchPeer)
	case wire.ErrorCodeInvalidSession:
		return spdmerr.New(op, spdmerr.CodeInvalidStatePeer)
	case wire.ErrorCodeDecryptError:
		return spdmerr.New(op, spdmerr.CodeCryptoError)
	default:
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
}

// respondIfReady sleeps for the peer-advertised delay (2^rd_exponent *
// rd_tm, in 100us units, per DSP0274's response-not-ready semantics) and
// re-issues the original request as RESPOND_IF_READY carrying the echoed
// token. Only one retry is attempted: a second RESPONSE_NOT_READY is
// surfaced as CodeNotReadyPeer rather than nesting further.
func respondIfReady(ctx context.Context, c *connection.Connection, op string, requestCode wire.RequestResponseCode, errResp wire.ErrorResponse) ([]byte, error) {
	ext, err := wire.DecodeResponseNotReadyExtData(errResp.ExtendedData)
	if err != nil {
		return nil, err
	}
	if ext.RequestCode != byte(requestCode) {
		return nil, spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}

	delay := time.Duration(1<<ext.RDExponent) * time.Duration(ext.RDTM) * 100 * time.Microsecond
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, spdmerr.Wrap(op, spdmerr.CodeTimeout, ctx.Err())
	}

	req := wire.RespondIfReadyRequest{Header: wire.Header{
		SPDMVersion:         c.Version,
		RequestResponseCode: wire.CodeRespondIfReady,
		Param1:              ext.RequestCode,
		Param2:              ext.Token,
	}}
	buf, err := req.Encode()
	if err != nil {
		return nil, err
	}

	resp, err := transact(ctx, c, op, buf)
	if err != nil {
		return nil, err
	}
	hdr, err := wire.DecodeHeader(resp)
	if err != nil {
		return nil, err
	}
	if hdr.RequestResponseCode == wire.CodeError {
		again, err := wire.DecodeErrorResponse(resp)
		if err != nil {
			return nil, err
		}
		if again.Code == wire.ErrorCodeResponseNotReady {
			return nil, spdmerr.New(op, spdmerr.CodeNotReadyPeer)
		}
		return handleError(ctx, c, op, requestCode, resp)
	}
	return resp, nil
}
