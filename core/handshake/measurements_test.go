// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

// encodeMeasurementsResponse lays out a MEASUREMENTS payload (without
// signature) for the responder side: fixed prefix, measurement record,
// nonce, empty opaque data.
func encodeMeasurementsResponse(version wire.Version, blocks []wire.MeasurementBlock) []byte {
	var record []byte
	for _, b := range blocks {
		entry := make([]byte, 4+len(b.Measurement))
		entry[0] = b.Index
		entry[1] = b.MeasurementSpec
		binary.LittleEndian.PutUint16(entry[2:4], uint16(len(b.Measurement)))
		copy(entry[4:], b.Measurement)
		record = append(record, entry...)
	}

	buf := make([]byte, wire.HeaderSize+1+3+len(record)+wire.NonceSize+2)
	hdr := wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeMeasurements, Param1: byte(len(blocks))}
	_ = hdr.Encode(buf)
	buf[4] = byte(len(blocks))
	buf[5] = byte(len(record))
	buf[6] = byte(len(record) >> 8)
	buf[7] = byte(len(record) >> 16)
	copy(buf[8:], record)
	// Nonce and opaque length stay zero; the Requester binds freshness via
	// the signed transcript, not a nonce echo.
	return buf
}

func TestGetMeasurementsUnsignedManifest(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterDigests
	c.PeerCapabilities = wire.CapMeasCapNoSig

	blocks := []wire.MeasurementBlock{
		{Index: 1, MeasurementSpec: 1, MeasurementSize: 4, Measurement: []byte{1, 2, 3, 4}},
		{Index: 2, MeasurementSpec: 1, MeasurementSize: 2, Measurement: []byte{9, 9}},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		req, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetMeasurements, hdr.RequestResponseCode)
		require.Equal(t, wire.MeasurementOperationAll, hdr.Param2)
		require.Equal(t, byte(0), hdr.Param1) // no signature requested
		require.Len(t, req, wire.HeaderSize)  // unsigned request carries no nonce

		require.NoError(t, responderEP.Send(ctx, encodeMeasurementsResponse(wire.Version11, blocks)))
	}()

	result, err := GetMeasurements(context.Background(), c, wire.MeasurementOperationAll, false, connection.Slot(0))
	<-done
	require.NoError(t, err)
	require.Equal(t, blocks, result.Blocks)
	require.Empty(t, result.Signature)

	mm, err := c.Transcript.Get(transcript.StreamM)
	require.NoError(t, err)
	require.NotEmpty(t, mm)
}

func TestGetMeasurementsSigned(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateNegotiated
	c.PeerCapabilities = wire.CapMeasCapSig
	c.Algo.BaseAsym = wire.AsymEdDSA25519
	c.PeerProvisionedPublicKey = pub

	blocks := []wire.MeasurementBlock{
		{Index: 1, MeasurementSpec: 1, MeasurementSize: 3, Measurement: []byte{7, 8, 9}},
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		reqBuf, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(reqBuf)
		require.NoError(t, err)
		require.Equal(t, byte(1), hdr.Param1) // signature requested
		require.Len(t, reqBuf, wire.HeaderSize+wire.NonceSize+1)

		presig := encodeMeasurementsResponse(wire.Version11, blocks)
		signed := append(append([]byte{}, reqBuf...), presig...)
		sig := ed25519.Sign(priv, signed)
		require.NoError(t, responderEP.Send(ctx, append(presig, sig...)))
	}()

	result, err := GetMeasurements(context.Background(), c, wire.MeasurementOperationAll, true, connection.ProvisionedKeySlot())
	<-done
	require.NoError(t, err)
	require.Equal(t, blocks, result.Blocks)
	require.Len(t, result.Signature, ed25519.SignatureSize)
}

func TestGetMeasurementsRequiresMeasCap(t *testing.T) {
	requesterEP, _ := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterDigests
	c.PeerCapabilities = wire.CapCertCap

	_, err := GetMeasurements(context.Background(), c, wire.MeasurementOperationAll, false, connection.Slot(0))
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeUnsupportedCap, code)
}
