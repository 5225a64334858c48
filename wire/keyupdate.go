// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// KEY_UPDATE operation codes (Param1).
type KeyUpdateOperation byte

const (
	KeyUpdateOperationUpdateKey        KeyUpdateOperation = 0x01
	KeyUpdateOperationVerifyNewKey     KeyUpdateOperation = 0x02
	KeyUpdateOperationCommitNewKey     KeyUpdateOperation = 0x03
)

// KeyUpdateRequest. Param2 is a caller-chosen tag echoed back by the
// Responder in KEY_UPDATE_ACK so the requester can correlate retries.
type KeyUpdateRequest struct {
	Header Header
}

func (r KeyUpdateRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

type KeyUpdateAckResponse struct {
	Header Header
}

func DecodeKeyUpdateAckResponse(buf []byte) (KeyUpdateAckResponse, error) {
	if len(buf) != HeaderSize {
		return KeyUpdateAckResponse{}, spdmerr.New("wire.DecodeKeyUpdateAckResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return KeyUpdateAckResponse{}, err
	}
	if hdr.RequestResponseCode != CodeKeyUpdateAck {
		return KeyUpdateAckResponse{}, spdmerr.New("wire.DecodeKeyUpdateAckResponse", spdmerr.CodeUnexpectedResponse)
	}
	return KeyUpdateAckResponse{Header: hdr}, nil
}

// Matches reports whether this ACK echoes the operation/tag of req,
// the correlation check libspdm performs before trusting a KEY_UPDATE_ACK.
func (a KeyUpdateAckResponse) Matches(req KeyUpdateRequest) bool {
	return a.Header.Param1 == req.Header.Param1 && a.Header.Param2 == req.Header.Param2
}
