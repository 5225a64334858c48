// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// PSKExchangeRequest. Param1 = measurement summary hash request type.
type PSKExchangeRequest struct {
	Header         Header
	ReqSessionID   uint16
	PSKHintLength  uint16
	RequesterContextLength uint16
	OpaqueDataLength uint16
	PSKHint        []byte
	RequesterContext []byte
	OpaqueData     []byte
}

func (r PSKExchangeRequest) Encode() ([]byte, error) {
	size := HeaderSize + 2 + 2 + 2 + 2 + len(r.PSKHint) + len(r.RequesterContext) + len(r.OpaqueData)
	buf := make([]byte, size)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[4:6], r.ReqSessionID)
	putUint16(buf[6:8], uint16(len(r.PSKHint)))
	putUint16(buf[8:10], uint16(len(r.RequesterContext)))
	putUint16(buf[10:12], uint16(len(r.OpaqueData)))
	off := HeaderSize + 8
	copy(buf[off:], r.PSKHint)
	off += len(r.PSKHint)
	copy(buf[off:], r.RequesterContext)
	off += len(r.RequesterContext)
	copy(buf[off:], r.OpaqueData)
	return buf, nil
}

// PSKExchangeRspResponse mirrors KeyExchangeRspResponse but without DHE
// ExchangeData or a Responder signature.
type PSKExchangeRspResponse struct {
	Header                  Header
	RspSessionID            uint16
	ResponderContextLength  uint16
	OpaqueDataLength        uint16
	MeasurementSummary      []byte
	ResponderContext        []byte
	OpaqueData              []byte
	VerifyData              []byte
}

func DecodePSKExchangeRspResponse(buf []byte, hashSize int, hasMeasurementSummary bool) (PSKExchangeRspResponse, error) {
	off := HeaderSize + 6
	if len(buf) < off {
		return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return PSKExchangeRspResponse{}, err
	}
	if hdr.RequestResponseCode != CodePSKExchangeRsp {
		return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeUnexpectedResponse)
	}
	rspSessionID := getUint16(buf[4:6])
	rspCtxLen := getUint16(buf[6:8])
	opaqueLen := getUint16(buf[8:10])

	var measSummary []byte
	if hasMeasurementSummary {
		if len(buf) < off+hashSize {
			return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
		}
		measSummary = append([]byte{}, buf[off:off+hashSize]...)
		off += hashSize
	}

	if len(buf) < off+int(rspCtxLen) {
		return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	rspCtx := append([]byte{}, buf[off:off+int(rspCtxLen)]...)
	off += int(rspCtxLen)

	if len(buf) < off+int(opaqueLen) {
		return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	opaque := append([]byte{}, buf[off:off+int(opaqueLen)]...)
	off += int(opaqueLen)

	if len(buf) != off+hashSize {
		return PSKExchangeRspResponse{}, spdmerr.New("wire.DecodePSKExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	verify := append([]byte{}, buf[off:off+hashSize]...)

	return PSKExchangeRspResponse{
		Header:                 hdr,
		RspSessionID:           rspSessionID,
		ResponderContextLength: rspCtxLen,
		OpaqueDataLength:       opaqueLen,
		MeasurementSummary:     measSummary,
		ResponderContext:       rspCtx,
		OpaqueData:             opaque,
		VerifyData:             verify,
	}, nil
}
