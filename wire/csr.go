// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// GetCSRRequest carries opaque data followed by requester info, grounded on
// libspdm_req_get_csr.c's wire layout (opaque_data_length, requester_info_length,
// then opaque_data bytes, then requester_info bytes).
type GetCSRRequest struct {
	Header                Header
	OpaqueDataLength      uint16
	RequesterInfoLength   uint16
	OpaqueData            []byte
	RequesterInfo         []byte
}

func (r GetCSRRequest) Encode() ([]byte, error) {
	size := HeaderSize + 4 + len(r.OpaqueData) + len(r.RequesterInfo)
	buf := make([]byte, size)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[4:6], uint16(len(r.OpaqueData)))
	putUint16(buf[6:8], uint16(len(r.RequesterInfo)))
	off := HeaderSize + 4
	copy(buf[off:], r.OpaqueData)
	off += len(r.OpaqueData)
	copy(buf[off:], r.RequesterInfo)
	return buf, nil
}

// CSRResponse carries the generated certificate signing request. CSRLength
// of zero is rejected (libspdm treats it as INVALID_MSG_FIELD); a
// caller-supplied buffer smaller than CSRLength maps to BUFFER_TOO_SMALL so
// the requester can retry with a bigger buffer, mirroring the *csr_len
// growth protocol in libspdm_try_get_csr.
type CSRResponse struct {
	Header    Header
	CSRLength uint16
	CSR       []byte
}

func DecodeCSRResponse(buf []byte) (CSRResponse, error) {
	const fixed = HeaderSize + 2
	if len(buf) < fixed {
		return CSRResponse{}, spdmerr.New("wire.DecodeCSRResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return CSRResponse{}, err
	}
	if hdr.RequestResponseCode != CodeCSR {
		return CSRResponse{}, spdmerr.New("wire.DecodeCSRResponse", spdmerr.CodeUnexpectedResponse)
	}
	csrLen := getUint16(buf[4:6])
	if csrLen == 0 {
		return CSRResponse{}, spdmerr.New("wire.DecodeCSRResponse", spdmerr.CodeInvalidMsgField)
	}
	if len(buf) != fixed+int(csrLen) {
		return CSRResponse{}, spdmerr.New("wire.DecodeCSRResponse", spdmerr.CodeInvalidMsgSize)
	}
	return CSRResponse{
		Header:    hdr,
		CSRLength: csrLen,
		CSR:       append([]byte{}, buf[fixed:]...),
	}, nil
}

// FitsBuffer reports whether the caller-supplied buffer of maxLen bytes can
// hold the CSR, mirroring libspdm's *csr_len-vs-response->csr_length check
// that precedes BUFFER_TOO_SMALL.
func (r CSRResponse) FitsBuffer(maxLen int) bool {
	return maxLen >= int(r.CSRLength)
}
