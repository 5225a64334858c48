// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

func errorResponse(version wire.Version, code wire.ErrorCode, data byte, ext []byte) []byte {
	buf := make([]byte, wire.HeaderSize+len(ext))
	hdr := wire.Header{
		SPDMVersion:         version,
		RequestResponseCode: wire.CodeError,
		Param1:              byte(code),
		Param2:              data,
	}
	_ = hdr.Encode(buf)
	copy(buf[wire.HeaderSize:], ext)
	return buf
}

// TestResponseNotReadyThenSuccess is spec.md section 8 scenario 4: the
// Responder defers with RESPONSE_NOT_READY{rd_exponent=1, rd_tm=1,
// request_code=GET_DIGESTS, token=1}; after the advertised delay the
// Requester issues RESPOND_IF_READY carrying the token and receives the
// original DIGESTS.
func TestResponseNotReadyThenSuccess(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	chain := []byte("deferred-responder-chain")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()

		req, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetDigests, hdr.RequestResponseCode)

		ext := []byte{1, byte(wire.CodeGetDigests), 1, 1} // rd_exponent, request_code, token, rd_tm
		require.NoError(t, responderEP.Send(ctx, errorResponse(wire.Version11, wire.ErrorCodeResponseNotReady, 0, ext)))

		rif, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		rifHdr, err := wire.DecodeHeader(rif)
		require.NoError(t, err)
		require.Equal(t, wire.CodeRespondIfReady, rifHdr.RequestResponseCode)
		require.Equal(t, byte(wire.CodeGetDigests), rifHdr.Param1)
		require.Equal(t, byte(1), rifHdr.Param2) // echoed token

		require.NoError(t, responderEP.Send(ctx, singleSlotDigestsResponse(wire.Version11, 0, chain)))
	}()

	err := GetDigests(context.Background(), c)
	<-done
	require.NoError(t, err)
	require.Equal(t, connection.StateAfterDigests, c.State)
}

// TestBusyRetryBound: with retry_times=3 the request is issued at most four
// times (the original plus three retries) before BUSY_PEER surfaces.
func TestBusyRetryBound(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	exchanges := make(chan int, 1)
	go func() {
		ctx := context.Background()
		n := 0
		for {
			if _, err := responderEP.Receive(ctx); err != nil {
				break
			}
			n++
			if err := responderEP.Send(ctx, busyErrorResponse(wire.Version11, wire.CodeGetDigests)); err != nil {
				break
			}
			if n == 4 {
				break
			}
		}
		exchanges <- n
	}()

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeBusyPeer, code)
	require.Equal(t, 4, <-exchanges)
	require.Equal(t, connection.StateNegotiated, c.State)
}

// TestRequestResynchResetsConnection: REQUEST_RESYNCH forces the connection
// back to NotStarted and surfaces RESYNCH_PEER for the caller to renegotiate.
func TestRequestResynchResetsConnection(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	go func() {
		ctx := context.Background()
		if _, err := responderEP.Receive(ctx); err != nil {
			return
		}
		_ = responderEP.Send(ctx, errorResponse(wire.Version11, wire.ErrorCodeRequestResynch, 0, nil))
	}()

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeResynchPeer, code)
	require.Equal(t, connection.StateNotStarted, c.State)
}

// TestReservedErrorCodeIsMalformed: an ERROR carrying a reserved code maps
// to INVALID_MSG_FIELD rather than being guessed at.
func TestReservedErrorCodeIsMalformed(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	go func() {
		ctx := context.Background()
		if _, err := responderEP.Receive(ctx); err != nil {
			return
		}
		_ = responderEP.Send(ctx, errorResponse(wire.Version11, wire.ErrorCode(0x3C), 0, nil))
	}()

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeInvalidMsgField, code)
}

// TestUnexpectedSuccessOpcode: a successful-looking response whose opcode
// is not the expected one (a CERTIFICATE where DIGESTS belongs) is
// UNEXPECTED_RESPONSE, never interpreted as some other exchange.
func TestUnexpectedSuccessOpcode(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	go func() {
		ctx := context.Background()
		if _, err := responderEP.Receive(ctx); err != nil {
			return
		}
		resp, _ := wire.EncodeCertificateResponse(wire.CertificateResponse{
			Header: wire.Header{SPDMVersion: wire.Version11, RequestResponseCode: wire.CodeCertificate},
		})
		_ = responderEP.Send(ctx, resp)
	}()

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeUnexpectedResponse, code)
}
