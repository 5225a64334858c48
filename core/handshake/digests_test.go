// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"crypto/sha256"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/config"
	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/cryptoadapter/algorithms"
	"github.com/sage-x-project/spdm-requester/internal/logger"
	"github.com/sage-x-project/spdm-requester/transport"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

func testConfig() *config.Config {
	return &config.Config{
		Retry: config.RetryConfig{
			Times:        3,
			Delay:        time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

func newTestConnection(t transport.Transport) *connection.Connection {
	log := logger.NewLogger(io.Discard, logger.ErrorLevel)
	c := connection.New(t, algorithms.New(), testConfig(), log, transcript.ModeBuffer)
	c.Version = wire.Version11
	c.State = connection.StateNegotiated
	c.PeerCapabilities = wire.CapCertCap
	c.Algo.BaseHash = wire.HashSHA256
	return c
}

func singleSlotDigestsResponse(version wire.Version, slot uint8, chainBytes []byte) []byte {
	digest := sha256.Sum256(chainBytes)
	resp := wire.DigestsResponse{
		Header:  wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeDigests, Param2: wire.SlotBit(slot)},
		Digests: [][]byte{digest[:]},
	}
	buf, err := wire.EncodeDigestsResponse(resp)
	if err != nil {
		panic(err)
	}
	return buf
}

func busyErrorResponse(version wire.Version, originalCode wire.RequestResponseCode) []byte {
	buf := make([]byte, wire.HeaderSize)
	hdr := wire.Header{
		SPDMVersion:         version,
		RequestResponseCode: wire.CodeError,
		Param1:              byte(wire.ErrorCodeBusy),
		Param2:              byte(originalCode),
	}
	_ = hdr.Encode(buf)
	return buf
}

// TestGetDigestsSingleSlotSuccess is spec.md section 8 scenario 1: version
// 1.1, peer CERT_CAP set, SHA-256 digests, one set slot bit.
func TestGetDigestsSingleSlotSuccess(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	chain := make([]byte, 4096)
	for i := range chain {
		chain[i] = 0xFF
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		req, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetDigests, hdr.RequestResponseCode)
		require.Equal(t, wire.Version11, hdr.SPDMVersion)

		resp := singleSlotDigestsResponse(wire.Version11, 0, chain)
		require.NoError(t, responderEP.Send(ctx, resp))
	}()

	err := GetDigests(context.Background(), c)
	<-done
	require.NoError(t, err)

	require.Equal(t, uint8(0x01), func() uint8 {
		var mask uint8
		for slot := range c.PeerDigests {
			mask |= wire.SlotBit(slot)
		}
		return mask
	}())
	want := sha256.Sum256(chain)
	require.Equal(t, want[:], c.PeerDigests[0])
	require.Equal(t, connection.StateAfterDigests, c.State)

	// message_b grew by exactly request header + response header + one digest.
	mb, err := c.Transcript.Get(transcript.StreamB)
	require.NoError(t, err)
	require.Len(t, mb, wire.HeaderSize+wire.HeaderSize+32)
}

// TestGetDigestsBusyThenSuccess is spec.md section 8 scenario 3.
func TestGetDigestsBusyThenSuccess(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	chain := []byte("firmware-manifest-bytes")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()

		_, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		require.NoError(t, responderEP.Send(ctx, busyErrorResponse(wire.Version11, wire.CodeGetDigests)))

		_, err = responderEP.Receive(ctx)
		require.NoError(t, err)
		require.NoError(t, responderEP.Send(ctx, singleSlotDigestsResponse(wire.Version11, 0, chain)))
	}()

	err := GetDigests(context.Background(), c)
	<-done
	require.NoError(t, err)
	require.Equal(t, connection.StateAfterDigests, c.State)
}

// TestGetDigestsRequiresCertCap checks capability gating fails before any
// wire I/O -- if it touched the wire here the test would hang forever
// waiting on a Responder that never runs.
func TestGetDigestsRequiresCertCap(t *testing.T) {
	requesterEP, _ := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.PeerCapabilities = 0 // CERT_CAP withheld

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
	require.Equal(t, connection.StateNegotiated, c.State)
}

// TestGetDigestsRequiresNegotiatedState checks the state-machine precondition.
func TestGetDigestsRequiresNegotiatedState(t *testing.T) {
	requesterEP, _ := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterCapabilities

	err := GetDigests(context.Background(), c)
	require.Error(t, err)
}
