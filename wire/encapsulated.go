// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// GetEncapsulatedRequestRequest carries no payload; it simply asks the
// Responder for its next queued encapsulated request.
type GetEncapsulatedRequestRequest struct {
	Header Header
}

func (r GetEncapsulatedRequestRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// EncapsulatedRequestResponse carries the Responder's request_id (echoed back
// in DELIVER_ENCAPSULATED_RESPONSE) and the nested request message -- a full
// SPDM request, e.g. CHALLENGE, addressed at this Requester.
type EncapsulatedRequestResponse struct {
	Header        Header
	RequestID     byte
	NestedRequest []byte
}

func DecodeEncapsulatedRequestResponse(buf []byte) (EncapsulatedRequestResponse, error) {
	const fixed = HeaderSize + 1
	if len(buf) < fixed {
		return EncapsulatedRequestResponse{}, spdmerr.New("wire.DecodeEncapsulatedRequestResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return EncapsulatedRequestResponse{}, err
	}
	if hdr.RequestResponseCode != CodeEncapsulatedRequest {
		return EncapsulatedRequestResponse{}, spdmerr.New("wire.DecodeEncapsulatedRequestResponse", spdmerr.CodeUnexpectedResponse)
	}
	return EncapsulatedRequestResponse{
		Header:        hdr,
		RequestID:     buf[HeaderSize],
		NestedRequest: append([]byte{}, buf[fixed:]...),
	}, nil
}

// DeliverEncapsulatedResponseRequest answers requestID with this
// Requester's nested response message (e.g. CHALLENGE_AUTH).
type DeliverEncapsulatedResponseRequest struct {
	Header         Header
	RequestID      byte
	NestedResponse []byte
}

func (r DeliverEncapsulatedResponseRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+1+len(r.NestedResponse))
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[HeaderSize] = r.RequestID
	copy(buf[HeaderSize+1:], r.NestedResponse)
	return buf, nil
}

// EncapsulatedResponseAckResponse acknowledges a delivered nested response.
// NextRequestID is non-zero when the Responder has another encapsulated
// request queued, letting the caller loop GET_ENCAPSULATED_REQUEST again.
type EncapsulatedResponseAckResponse struct {
	Header        Header
	NextRequestID byte
}

func DecodeEncapsulatedResponseAckResponse(buf []byte) (EncapsulatedResponseAckResponse, error) {
	if len(buf) != HeaderSize+1 {
		return EncapsulatedResponseAckResponse{}, spdmerr.New("wire.DecodeEncapsulatedResponseAckResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return EncapsulatedResponseAckResponse{}, err
	}
	if hdr.RequestResponseCode != CodeEncapsulatedResponse {
		return EncapsulatedResponseAckResponse{}, spdmerr.New("wire.DecodeEncapsulatedResponseAckResponse", spdmerr.CodeUnexpectedResponse)
	}
	return EncapsulatedResponseAckResponse{Header: hdr, NextRequestID: buf[HeaderSize]}, nil
}
