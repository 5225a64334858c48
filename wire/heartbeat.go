// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// HeartbeatRequest keeps an established session alive; no payload.
type HeartbeatRequest struct {
	Header Header
}

func (r HeartbeatRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// HeartbeatAckResponse carries no payload beyond the header.
type HeartbeatAckResponse struct {
	Header Header
}

func DecodeHeartbeatAckResponse(buf []byte) (HeartbeatAckResponse, error) {
	if len(buf) != HeaderSize {
		return HeartbeatAckResponse{}, spdmerr.New("wire.DecodeHeartbeatAckResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return HeartbeatAckResponse{}, err
	}
	if hdr.RequestResponseCode != CodeHeartbeatAck {
		return HeartbeatAckResponse{}, spdmerr.New("wire.DecodeHeartbeatAckResponse", spdmerr.CodeUnexpectedResponse)
	}
	return HeartbeatAckResponse{Header: hdr}, nil
}
