// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

func versionResponse(entries ...wire.Version) []byte {
	resp := wire.VersionResponse{
		Header: wire.Header{SPDMVersion: wire.Version10, RequestResponseCode: wire.CodeVersion},
	}
	for _, v := range entries {
		resp.Entries = append(resp.Entries, wire.VersionEntry{Raw: uint16(v) << 8})
	}
	resp.VersionCount = byte(len(resp.Entries))
	buf, err := wire.EncodeVersionResponse(resp)
	if err != nil {
		panic(err)
	}
	return buf
}

func TestGetVersionPicksHighestMutual(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		req, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetVersion, hdr.RequestResponseCode)
		// GET_VERSION is always sent as 1.0 regardless of what ends up negotiated.
		require.Equal(t, wire.Version10, hdr.SPDMVersion)

		require.NoError(t, responderEP.Send(ctx, versionResponse(wire.Version10, wire.Version11, wire.Version12)))
	}()

	err := GetVersion(context.Background(), c)
	<-done
	require.NoError(t, err)
	require.Equal(t, wire.Version12, c.Version)
	require.Equal(t, connection.StateAfterVersion, c.State)

	// message_a holds request + response exactly.
	ma, err := c.Transcript.Get(transcript.StreamA)
	require.NoError(t, err)
	require.Len(t, ma, wire.HeaderSize+wire.HeaderSize+2+3*2)
}

func TestGetVersionNoMutualVersion(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	go func() {
		ctx := context.Background()
		if _, err := responderEP.Receive(ctx); err != nil {
			return
		}
		// An entry below anything this Requester speaks.
		resp := wire.VersionResponse{
			Header:  wire.Header{SPDMVersion: wire.Version10, RequestResponseCode: wire.CodeVersion},
			Entries: []wire.VersionEntry{{Raw: 0x0500}},
		}
		resp.VersionCount = 1
		buf, _ := wire.EncodeVersionResponse(resp)
		_ = responderEP.Send(ctx, buf)
	}()

	err := GetVersion(context.Background(), c)
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeVersionMismatch, code)
	require.Equal(t, connection.StateNotStarted, c.State)
}

func TestGetVersionEmptyList(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)

	go func() {
		ctx := context.Background()
		if _, err := responderEP.Receive(ctx); err != nil {
			return
		}
		_ = responderEP.Send(ctx, versionResponse())
	}()

	err := GetVersion(context.Background(), c)
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeNegotiationFail, code)
}
