// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// SPDM ERROR codes (DSP0274 Table 22), Param1 of an ERROR response.
type ErrorCode byte

const (
	ErrorCodeInvalidRequest        ErrorCode = 0x01
	ErrorCodeBusy                  ErrorCode = 0x03
	ErrorCodeUnexpectedRequest     ErrorCode = 0x04
	ErrorCodeInvalidSession        ErrorCode = 0x02
	ErrorCodeUnsupportedRequest    ErrorCode = 0x07
	ErrorCodeVersionMismatch       ErrorCode = 0x41
	ErrorCodeRequestResynch        ErrorCode = 0x43
	ErrorCodeSessionLimitExceeded  ErrorCode = 0x44
	ErrorCodeDecryptError          ErrorCode = 0x46
	ErrorCodeResponseNotReady      ErrorCode = 0x42
)

// ErrorResponse is the decoded ERROR message. Param2 carries additional
// error data whose meaning depends on Param1 (for RESPONSE_NOT_READY it is
// reserved and the real payload follows as ExtendedData).
type ErrorResponse struct {
	Header       Header
	Code         ErrorCode
	Data         byte
	ExtendedData []byte
}

func DecodeErrorResponse(buf []byte) (ErrorResponse, error) {
	if len(buf) < HeaderSize {
		return ErrorResponse{}, spdmerr.New("wire.DecodeErrorResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return ErrorResponse{}, err
	}
	if hdr.RequestResponseCode != CodeError {
		return ErrorResponse{}, spdmerr.New("wire.DecodeErrorResponse", spdmerr.CodeUnexpectedResponse)
	}
	return ErrorResponse{
		Header:       hdr,
		Code:         ErrorCode(hdr.Param1),
		Data:         hdr.Param2,
		ExtendedData: append([]byte{}, buf[HeaderSize:]...),
	}, nil
}

// ResponseNotReadyExtData is the extended error data for RESPONSE_NOT_READY.
type ResponseNotReadyExtData struct {
	RDExponent  byte
	RequestCode byte
	Token       byte
	RDTM        byte
}

func DecodeResponseNotReadyExtData(buf []byte) (ResponseNotReadyExtData, error) {
	if len(buf) != 4 {
		return ResponseNotReadyExtData{}, spdmerr.New("wire.DecodeResponseNotReadyExtData", spdmerr.CodeInvalidMsgField)
	}
	return ResponseNotReadyExtData{
		RDExponent:  buf[0],
		RequestCode: buf[1],
		Token:       buf[2],
		RDTM:        buf[3],
	}, nil
}

// RespondIfReadyRequest re-issues the original request with the token the
// RESPONSE_NOT_READY error carried. Param1 = original_request_code,
// Param2 = token.
type RespondIfReadyRequest struct {
	Header Header
}

func (r RespondIfReadyRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
