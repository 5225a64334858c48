// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// FinishRequest. Param1 bit0 = signature included (mutual auth), Param2 = req slot id.
type FinishRequest struct {
	Header      Header
	Signature   []byte // only when mutual auth requested
	VerifyData  []byte // HMAC(finished_key_req, TH), hash-sized
}

func (r FinishRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(r.Signature)+len(r.VerifyData))
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	off := HeaderSize
	copy(buf[off:], r.Signature)
	off += len(r.Signature)
	copy(buf[off:], r.VerifyData)
	return buf, nil
}

// FinishRspResponse carries the Responder's verify_data unless
// HANDSHAKE_IN_THE_CLEAR was negotiated, in which case the payload is empty.
type FinishRspResponse struct {
	Header     Header
	VerifyData []byte
}

func DecodeFinishRspResponse(buf []byte, hashSize int, expectVerifyData bool) (FinishRspResponse, error) {
	if len(buf) < HeaderSize {
		return FinishRspResponse{}, spdmerr.New("wire.DecodeFinishRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return FinishRspResponse{}, err
	}
	if hdr.RequestResponseCode != CodeFinishRsp {
		return FinishRspResponse{}, spdmerr.New("wire.DecodeFinishRspResponse", spdmerr.CodeUnexpectedResponse)
	}
	if expectVerifyData {
		if len(buf) != HeaderSize+hashSize {
			return FinishRspResponse{}, spdmerr.New("wire.DecodeFinishRspResponse", spdmerr.CodeInvalidMsgSize)
		}
		return FinishRspResponse{Header: hdr, VerifyData: append([]byte{}, buf[HeaderSize:]...)}, nil
	}
	if len(buf) != HeaderSize {
		return FinishRspResponse{}, spdmerr.New("wire.DecodeFinishRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	return FinishRspResponse{Header: hdr}, nil
}

// PSKFinishRequest carries only the verify_data (no signature, PSK has no asym step).
type PSKFinishRequest struct {
	Header     Header
	VerifyData []byte
}

func (r PSKFinishRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(r.VerifyData))
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], r.VerifyData)
	return buf, nil
}

// PSKFinishRspResponse carries no payload beyond the header.
type PSKFinishRspResponse struct {
	Header Header
}

func DecodePSKFinishRspResponse(buf []byte) (PSKFinishRspResponse, error) {
	if len(buf) != HeaderSize {
		return PSKFinishRspResponse{}, spdmerr.New("wire.DecodePSKFinishRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return PSKFinishRspResponse{}, err
	}
	if hdr.RequestResponseCode != CodePSKFinishRsp {
		return PSKFinishRspResponse{}, spdmerr.New("wire.DecodePSKFinishRspResponse", spdmerr.CodeUnexpectedResponse)
	}
	return PSKFinishRspResponse{Header: hdr}, nil
}
