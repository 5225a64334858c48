// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// TestDecodeDigestsResponseSingleSlot mirrors spec scenario 1: version 1.1,
// SHA-256 (32 byte) digests, one set bit in the slot mask.
func TestDecodeDigestsResponseSingleSlot(t *testing.T) {
	chain := make([]byte, 4096)
	for i := range chain {
		chain[i] = 0xFF
	}
	want := sha256.Sum256(chain)

	resp := DigestsResponse{
		Header:  Header{SPDMVersion: Version11, RequestResponseCode: CodeDigests, Param1: 0, Param2: 0x01},
		Digests: [][]byte{want[:]},
	}
	buf, err := EncodeDigestsResponse(resp)
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize+32)

	got, err := DecodeDigestsResponse(buf, 32)
	require.NoError(t, err)
	require.Equal(t, byte(0x01), got.Header.Param2)
	require.Len(t, got.Digests, 1)
	require.Equal(t, want[:], got.Digests[0])
}

func TestDecodeDigestsResponseMultiSlot(t *testing.T) {
	d0 := make([]byte, 32)
	d7 := make([]byte, 32)
	d0[0] = 0xAA
	d7[0] = 0xBB
	resp := DigestsResponse{
		Header:  Header{SPDMVersion: Version12, RequestResponseCode: CodeDigests, Param2: 0x81}, // slots 0 and 7
		Digests: [][]byte{d0, d7},
	}
	buf, err := EncodeDigestsResponse(resp)
	require.NoError(t, err)

	got, err := DecodeDigestsResponse(buf, 32)
	require.NoError(t, err)
	require.Len(t, got.Digests, 2)
	require.Equal(t, d0, got.Digests[0])
	require.Equal(t, d7, got.Digests[1])
}

func TestDecodeDigestsResponseLengthMismatch(t *testing.T) {
	buf := make([]byte, HeaderSize+16) // half a SHA-256 digest short
	hdr := Header{SPDMVersion: Version11, RequestResponseCode: CodeDigests, Param2: 0x01}
	require.NoError(t, hdr.Encode(buf))

	_, err := DecodeDigestsResponse(buf, 32)
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeInvalidMsgSize, code)
}

func TestDecodeDigestsResponseWrongOpcode(t *testing.T) {
	buf := make([]byte, HeaderSize)
	hdr := Header{SPDMVersion: Version11, RequestResponseCode: CodeCertificate}
	require.NoError(t, hdr.Encode(buf))

	_, err := DecodeDigestsResponse(buf, 32)
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeUnexpectedResponse, code)
}

func TestSlotBit(t *testing.T) {
	require.Equal(t, byte(0x01), SlotBit(0))
	require.Equal(t, byte(0x80), SlotBit(7))
}

func TestGetDigestsRequestEncode(t *testing.T) {
	req := GetDigestsRequest{Header: Header{SPDMVersion: Version11, RequestResponseCode: CodeGetDigests}}
	buf, err := req.Encode()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)
	hdr, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, CodeGetDigests, hdr.RequestResponseCode)
}
