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

// Package handshake implements the per-opcode SPDM protocol handlers: one
// function per request/response pair, each following the canonical
// try-then-retry shape libspdm uses throughout spdm_requester_lib (send,
// receive, maybe loop on BUSY, return on anything else).
package handshake

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// RetryPolicy bounds how many times a handler reissues a request after the
// peer replies BUSY, and how long it waits between attempts. Zero Times
// disables retrying.
type RetryPolicy struct {
	Times        int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy mirrors libspdm's default retry_times (3) and a
// modest exponential backoff between attempts.
var DefaultRetryPolicy = RetryPolicy{
	Times:        3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

// tryFunc is one attempt at a handler's wire exchange. It returns a typed
// *spdmerr.Error so withRetry can recognize CodeBusyPeer and loop.
type tryFunc func() error

// withRetry runs try, reissuing it while the peer reports BUSY, up to
// policy.Times retries (policy.Times+1 attempts in all), using an
// exponential backoff between tries --
// the same retry_times/retry_delay_time loop every libspdm_get_* and
// libspdm_try_get_* pair implements.
func withRetry(ctx context.Context, policy RetryPolicy, try tryFunc) error {
	if policy.Times <= 0 {
		return try()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialDelay
	b.MaxInterval = policy.MaxDelay
	bctx := backoff.WithContext(b, ctx)

	attempts := 0
	operation := func() error {
		err := try()
		if err == nil {
			return nil
		}
		code, ok := spdmerr.CodeOf(err)
		if !ok || code != spdmerr.CodeBusyPeer {
			return backoff.Permanent(err)
		}
		attempts++
		if attempts > policy.Times {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, bctx)
}
