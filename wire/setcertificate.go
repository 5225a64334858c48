// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// SetCertificateRequest writes a certificate chain into one of the peer's
// slots. Param1 low nibble carries the slot number; CertChain is the full
// chain layout GET_CERTIFICATE would return for it (CertChainHeader
// included).
type SetCertificateRequest struct {
	Header    Header
	CertChain []byte
}

func (r SetCertificateRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(r.CertChain))
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], r.CertChain)
	return buf, nil
}

// SetCertificateRspResponse carries no payload; Param1 echoes the slot.
type SetCertificateRspResponse struct {
	Header Header
}

func DecodeSetCertificateRspResponse(buf []byte) (SetCertificateRspResponse, error) {
	if len(buf) != HeaderSize {
		return SetCertificateRspResponse{}, spdmerr.New("wire.DecodeSetCertificateRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return SetCertificateRspResponse{}, err
	}
	if hdr.RequestResponseCode != CodeSetCertificateRsp {
		return SetCertificateRspResponse{}, spdmerr.New("wire.DecodeSetCertificateRspResponse", spdmerr.CodeUnexpectedResponse)
	}
	return SetCertificateRspResponse{Header: hdr}, nil
}
