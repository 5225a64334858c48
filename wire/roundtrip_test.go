// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

func requireCode(t *testing.T, err error, want spdmerr.Code) {
	t.Helper()
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, want, code)
}

func TestVersionResponseRoundTrip(t *testing.T) {
	orig := VersionResponse{
		Header:       Header{SPDMVersion: Version10, RequestResponseCode: CodeVersion},
		VersionCount: 2,
		Entries:      []VersionEntry{{Raw: 0x1000}, {Raw: 0x1100}},
	}
	buf, err := EncodeVersionResponse(orig)
	require.NoError(t, err)

	got, err := DecodeVersionResponse(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)

	// Re-encoding yields the identical byte string.
	again, err := EncodeVersionResponse(got)
	require.NoError(t, err)
	require.Equal(t, buf, again)

	// Truncation fails length validation.
	_, err = DecodeVersionResponse(buf[:len(buf)-1])
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)
	_, err = DecodeVersionResponse(append(buf, 0))
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)
}

func TestCapabilitiesResponseRoundTrip(t *testing.T) {
	orig := CapabilitiesResponse{
		Header:           Header{SPDMVersion: Version12, RequestResponseCode: CodeCapabilities},
		CTExponent:       15,
		Flags:            CapCertCap | CapChalCap | CapKeyExCap,
		DataTransferSize: 4096,
		MaxSPDMMsgSize:   8192,
	}
	buf, err := EncodeCapabilitiesResponse(orig)
	require.NoError(t, err)

	got, err := DecodeCapabilitiesResponse(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)

	_, err = DecodeCapabilitiesResponse(buf[:HeaderSize+3])
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)
}

func TestAlgorithmsResponseRoundTrip(t *testing.T) {
	orig := AlgorithmsResponse{
		Header:          Header{SPDMVersion: Version11, RequestResponseCode: CodeAlgorithms},
		MeasurementSpec: MeasurementSpecDMTF,
		MeasurementHash: HashSHA384,
		BaseAsymSel:     AsymECDSAP384,
		BaseHashSel:     HashSHA384,
		DHEGroupSel:     DHEP384,
		AEADSuiteSel:    AEADChaCha20Poly1305,
		ReqBaseAsymSel:  AsymEdDSA25519,
		KeyScheduleSel:  KeyScheduleHKDF,
	}
	buf, err := EncodeAlgorithmsResponse(orig)
	require.NoError(t, err)

	got, err := DecodeAlgorithmsResponse(buf)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

func TestCertificateResponseRoundTrip(t *testing.T) {
	orig := CertificateResponse{
		Header:          Header{SPDMVersion: Version11, RequestResponseCode: CodeCertificate, Param1: 3},
		RemainderLength: 512,
		CertChain:       []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	buf, err := EncodeCertificateResponse(orig)
	require.NoError(t, err)

	got, err := DecodeCertificateResponse(buf)
	require.NoError(t, err)
	require.Equal(t, uint16(4), got.PortionLength)
	require.Equal(t, orig.RemainderLength, got.RemainderLength)
	require.Equal(t, orig.CertChain, got.CertChain)

	// A portion_length pointing past the end of the message is rejected.
	buf[4] = 0xFF
	_, err = DecodeCertificateResponse(buf)
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)
}

func TestGetCertificateRequestLayout(t *testing.T) {
	req := GetCertificateRequest{
		Header: Header{SPDMVersion: Version11, RequestResponseCode: CodeGetCertificate, Param1: 1},
		Offset: 0x1234,
		Length: 0x0400,
	}
	buf, err := req.Encode()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize+4)
	// Little-endian offset/length.
	require.Equal(t, byte(0x34), buf[4])
	require.Equal(t, byte(0x12), buf[5])
	require.Equal(t, byte(0x00), buf[6])
	require.Equal(t, byte(0x04), buf[7])
}

func TestErrorResponseDecode(t *testing.T) {
	buf := make([]byte, HeaderSize+4)
	hdr := Header{
		SPDMVersion:         Version11,
		RequestResponseCode: CodeError,
		Param1:              byte(ErrorCodeResponseNotReady),
	}
	require.NoError(t, hdr.Encode(buf))
	copy(buf[HeaderSize:], []byte{2, byte(CodeGetMeasurements), 0x55, 1})

	resp, err := DecodeErrorResponse(buf)
	require.NoError(t, err)
	require.Equal(t, ErrorCodeResponseNotReady, resp.Code)

	ext, err := DecodeResponseNotReadyExtData(resp.ExtendedData)
	require.NoError(t, err)
	require.Equal(t, byte(2), ext.RDExponent)
	require.Equal(t, byte(CodeGetMeasurements), ext.RequestCode)
	require.Equal(t, byte(0x55), ext.Token)
	require.Equal(t, byte(1), ext.RDTM)

	_, err = DecodeResponseNotReadyExtData(resp.ExtendedData[:3])
	requireCode(t, err, spdmerr.CodeInvalidMsgField)
}

func TestSecuredMessageRecordRoundTrip(t *testing.T) {
	orig := SecuredMessageRecord{
		SessionID:  0xFFFFFFFF,
		Nonce:      make([]byte, 12),
		Ciphertext: []byte("ciphertext bytes"),
		Tag:        make([]byte, 16),
	}
	buf, err := orig.Encode()
	require.NoError(t, err)

	got, err := DecodeSecuredMessageRecord(buf, 12, 16)
	require.NoError(t, err)
	require.Equal(t, orig, got)

	_, err = DecodeSecuredMessageRecord(buf[:len(buf)-1], 12, 16)
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)

	// A body shorter than nonce+tag can't hold a record at all.
	short := SecuredMessageRecord{SessionID: 1, Nonce: make([]byte, 4)}
	shortBuf, err := short.Encode()
	require.NoError(t, err)
	_, err = DecodeSecuredMessageRecord(shortBuf, 12, 16)
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)
}

func TestAdditionalAuthDataLayout(t *testing.T) {
	aad := AdditionalAuthData(0x04030201, 0x0807060504030201, 0x0201)
	require.Len(t, aad, 14)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, aad[0:4])
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}, aad[4:12])
	require.Equal(t, []byte{0x01, 0x02}, aad[12:14])
}

func TestKeyExchangeRspPreSignatureConsistency(t *testing.T) {
	resp := KeyExchangeRspResponse{
		Header:       Header{SPDMVersion: Version11, RequestResponseCode: CodeKeyExchangeRsp},
		RspSessionID: 0xBEEF,
		ExchangeData: make([]byte, 32),
		Signature:    make([]byte, 64),
		VerifyData:   make([]byte, 32),
	}
	pre := resp.BytesBeforeSignature()
	full := resp.BytesBeforeVerifyData()
	require.Equal(t, pre, full[:len(pre)])
	require.Equal(t, resp.Signature, full[len(pre):])

	// The wire form is bytes-before-verify plus verify_data; decoding it
	// recovers the same split.
	wireBuf := append(append([]byte{}, full...), resp.VerifyData...)
	got, err := DecodeKeyExchangeRspResponse(wireBuf, 32, 32, false, 64, true)
	require.NoError(t, err)
	require.Equal(t, resp.RspSessionID, got.RspSessionID)
	require.Equal(t, resp.Signature, got.Signature)
	require.Equal(t, resp.VerifyData, got.VerifyData)
}

func TestSetCertificateAndHeartbeatDecoders(t *testing.T) {
	ack := make([]byte, HeaderSize)
	require.NoError(t, Header{SPDMVersion: Version12, RequestResponseCode: CodeSetCertificateRsp, Param1: 5}.Encode(ack))
	got, err := DecodeSetCertificateRspResponse(ack)
	require.NoError(t, err)
	require.Equal(t, byte(5), got.Header.Param1)

	_, err = DecodeSetCertificateRspResponse(append(ack, 0))
	requireCode(t, err, spdmerr.CodeInvalidMsgSize)

	hb := make([]byte, HeaderSize)
	require.NoError(t, Header{SPDMVersion: Version12, RequestResponseCode: CodeHeartbeatAck}.Encode(hb))
	_, err = DecodeHeartbeatAckResponse(hb)
	require.NoError(t, err)

	// Wrong opcode in an otherwise well-formed header.
	hb[1] = byte(CodeHeartbeat)
	_, err = DecodeHeartbeatAckResponse(hb)
	requireCode(t, err, spdmerr.CodeUnexpectedResponse)
}
