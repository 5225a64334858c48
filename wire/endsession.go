// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// END_SESSION Param1 bit0: preserve negotiated state across session teardown.
const EndSessionPreserveState byte = 0x01

type EndSessionRequest struct {
	Header Header
}

func (r EndSessionRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type EndSessionAckResponse struct {
	Header Header
}

func DecodeEndSessionAckResponse(buf []byte) (EndSessionAckResponse, error) {
	if len(buf) != HeaderSize {
		return EndSessionAckResponse{}, spdmerr.New("wire.DecodeEndSessionAckResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return EndSessionAckResponse{}, err
	}
	if hdr.RequestResponseCode != CodeEndSessionAck {
		return EndSessionAckResponse{}, spdmerr.New("wire.DecodeEndSessionAckResponse", spdmerr.CodeUnexpectedResponse)
	}
	return EndSessionAckResponse{Header: hdr}, nil
}
