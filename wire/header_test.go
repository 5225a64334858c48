// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		SPDMVersion:         Version11,
		RequestResponseCode: CodeGetDigests,
		Param1:              0x01,
		Param2:              0x02,
	}
	buf := make([]byte, HeaderSize)
	require.NoError(t, h.Encode(buf))

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestHeaderEncodeRejectsShortBuffer(t *testing.T) {
	h := Header{SPDMVersion: Version11, RequestResponseCode: CodeGetVersion}
	err := h.Encode(make([]byte, HeaderSize-1))
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeBufferTooSmall, code)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader([]byte{0x11, 0x84})
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeInvalidMsgSize, code)
}

func TestPopCount8(t *testing.T) {
	require.Equal(t, 0, popCount8(0x00))
	require.Equal(t, 1, popCount8(0x01))
	require.Equal(t, 1, popCount8(0x80))
	require.Equal(t, 8, popCount8(0xFF))
	require.Equal(t, 3, popCount8(0b01010001))
}
