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

// Package spdmerr defines the typed error taxonomy returned by every
// Requester operation: protocol, state, transport, peer-transient,
// cryptographic, and buffer failures.
package spdmerr

import "fmt"

// Code identifies the kind of failure a Requester operation returned.
type Code int

const (
	// Protocol errors.
	CodeInvalidMsgSize Code = iota + 1
	CodeInvalidMsgField
	CodeUnsupportedCap
	CodeVersionMismatch
	CodeNegotiationFail
	CodeUnexpectedRequest
	CodeUnexpectedResponse

	// State errors.
	CodeInvalidStateLocal
	CodeInvalidStatePeer
	CodeSessionLimitExceeded

	// Transport errors.
	CodeSendFail
	CodeReceiveFail
	CodeTimeout

	// Peer-transient errors.
	CodeBusyPeer
	CodeResynchPeer
	CodeNotReadyPeer

	// Cryptographic errors.
	CodeCryptoError
	CodeVerifyFail
	CodeVerifyCertFail

	// Buffer errors.
	CodeBufferTooSmall
	CodeBufferFull
)

// String returns the taxonomy name used in logs and test assertions.
func (c Code) String() string {
	switch c {
	case CodeInvalidMsgSize:
		return "INVALID_MSG_SIZE"
	case CodeInvalidMsgField:
		return "INVALID_MSG_FIELD"
	case CodeUnsupportedCap:
		return "UNSUPPORTED_CAP"
	case CodeVersionMismatch:
		return "VERSION_MISMATCH"
	case CodeNegotiationFail:
		return "NEGOTIATION_FAIL"
	case CodeUnexpectedRequest:
		return "UNEXPECTED_REQUEST"
	case CodeUnexpectedResponse:
		return "UNEXPECTED_RESPONSE"
	case CodeInvalidStateLocal:
		return "INVALID_STATE_LOCAL"
	case CodeInvalidStatePeer:
		return "INVALID_STATE_PEER"
	case CodeSessionLimitExceeded:
		return "SESSION_LIMIT_EXCEEDED"
	case CodeSendFail:
		return "SEND_FAIL"
	case CodeReceiveFail:
		return "RECEIVE_FAIL"
	case CodeTimeout:
		return "TIMEOUT"
	case CodeBusyPeer:
		return "BUSY_PEER"
	case CodeResynchPeer:
		return "RESYNCH_PEER"
	case CodeNotReadyPeer:
		return "NOT_READY_PEER"
	case CodeCryptoError:
		return "CRYPTO_ERROR"
	case CodeVerifyFail:
		return "VERIFY_FAIL"
	case CodeVerifyCertFail:
		return "VERIFY_CERT_FAIL"
	case CodeBufferTooSmall:
		return "BUFFER_TOO_SMALL"
	case CodeBufferFull:
		return "BUFFER_FULL"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type every Requester operation returns.
type Error struct {
	Code Code
	Op   string // handler or component that raised it, e.g. "GetDigests"
	Err  error  // wrapped underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, spdmerr.CodeX) style checks via a sentinel
// value (see Sentinel), since Code itself is not an error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New constructs an *Error with no wrapped cause.
func New(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap constructs an *Error wrapping an underlying cause.
func Wrap(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Sentinel returns a comparable *Error carrying only a code, for use with
// errors.Is(err, spdmerr.Sentinel(spdmerr.CodeBusyPeer)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// CodeOf extracts the Code from err if it is (or wraps) an *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Code, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
