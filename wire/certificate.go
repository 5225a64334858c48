// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// GetCertificateRequest requests one chunk of the peer's certificate chain.
// Param1/Param2 low nibble carries the slot number (0..7).
type GetCertificateRequest struct {
	Header Header
	Offset uint16
	Length uint16
}

func (r GetCertificateRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+4)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[4:6], r.Offset)
	putUint16(buf[6:8], r.Length)
	return buf, nil
}

// CertificateResponse is one chunk of the chain plus the remainder count.
type CertificateResponse struct {
	Header          Header
	PortionLength   uint16
	RemainderLength uint16
	CertChain       []byte
}

func DecodeCertificateResponse(buf []byte) (CertificateResponse, error) {
	const fixed = HeaderSize + 4
	if len(buf) < fixed {
		return CertificateResponse{}, spdmerr.New("wire.DecodeCertificateResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return CertificateResponse{}, err
	}
	if hdr.RequestResponseCode != CodeCertificate {
		return CertificateResponse{}, spdmerr.New("wire.DecodeCertificateResponse", spdmerr.CodeUnexpectedResponse)
	}
	portion := getUint16(buf[4:6])
	remainder := getUint16(buf[6:8])
	want := fixed + int(portion)
	if len(buf) != want {
		return CertificateResponse{}, spdmerr.New("wire.DecodeCertificateResponse", spdmerr.CodeInvalidMsgSize)
	}
	chain := make([]byte, portion)
	copy(chain, buf[fixed:want])
	return CertificateResponse{
		Header:          hdr,
		PortionLength:   portion,
		RemainderLength: remainder,
		CertChain:       chain,
	}, nil
}

func EncodeCertificateResponse(c CertificateResponse) ([]byte, error) {
	buf := make([]byte, HeaderSize+4+len(c.CertChain))
	if err := c.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[4:6], uint16(len(c.CertChain)))
	putUint16(buf[6:8], c.RemainderLength)
	copy(buf[8:], c.CertChain)
	return buf, nil
}

// CertChainHeader prefixes the reassembled chain: Length || Reserved || RootHash.
type CertChainHeader struct {
	Length   uint16
	Reserved uint16
	RootHash []byte // hash-sized
}

func EncodeCertChainHeader(h CertChainHeader) []byte {
	buf := make([]byte, 4+len(h.RootHash))
	putUint16(buf[0:2], h.Length)
	putUint16(buf[2:4], h.Reserved)
	copy(buf[4:], h.RootHash)
	return buf
}

func DecodeCertChainHeader(buf []byte, hashSize int) (CertChainHeader, []byte, error) {
	if len(buf) < 4+hashSize {
		return CertChainHeader{}, nil, spdmerr.New("wire.DecodeCertChainHeader", spdmerr.CodeInvalidMsgSize)
	}
	length := getUint16(buf[0:2])
	reserved := getUint16(buf[2:4])
	root := make([]byte, hashSize)
	copy(root, buf[4:4+hashSize])
	if int(length) != len(buf) {
		return CertChainHeader{}, nil, spdmerr.New("wire.DecodeCertChainHeader", spdmerr.CodeInvalidMsgSize)
	}
	return CertChainHeader{Length: length, Reserved: reserved, RootHash: root}, buf[4+hashSize:], nil
}
