// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// CapabilityFlags is the 32-bit CAPABILITIES bitmask (DSP0274 Table 11/12).
type CapabilityFlags uint32

const (
	CapCacheCap      CapabilityFlags = 1 << 0
	CapCertCap       CapabilityFlags = 1 << 1
	CapChalCap       CapabilityFlags = 1 << 2
	CapMeasCapNoSig  CapabilityFlags = 1 << 3
	CapMeasCapSig    CapabilityFlags = 1 << 4
	CapMeasFreshCap  CapabilityFlags = 1 << 5
	CapEncryptCap    CapabilityFlags = 1 << 6
	CapMacCap        CapabilityFlags = 1 << 7
	CapMutAuthCap    CapabilityFlags = 1 << 8
	CapKeyExCap      CapabilityFlags = 1 << 9
	CapPSKCapRsp     CapabilityFlags = 1 << 10
	CapPSKCapRsponly CapabilityFlags = 1 << 11
	CapEncapCap      CapabilityFlags = 1 << 12
	CapHBeatCap      CapabilityFlags = 1 << 13
	CapKeyUpdCap     CapabilityFlags = 1 << 14
	CapHandshakeInC  CapabilityFlags = 1 << 15
	CapPubKeyIDCap   CapabilityFlags = 1 << 16
	CapChunkCap      CapabilityFlags = 1 << 17
	CapAliasCertCap  CapabilityFlags = 1 << 18
	CapSetCertCap    CapabilityFlags = 1 << 19
	CapCSRCap        CapabilityFlags = 1 << 20
	CapCertInstCap   CapabilityFlags = 1 << 21
)

func (f CapabilityFlags) Has(bit CapabilityFlags) bool { return f&bit != 0 }

// GetCapabilitiesRequest carries the Requester's ct_exponent and its own flags.
type GetCapabilitiesRequest struct {
	Header      Header
	CTExponent  byte
	Reserved1   uint16
	Flags       CapabilityFlags
	DataTransferSize   uint32
	MaxSPDMMsgSize     uint32
}

func (r GetCapabilitiesRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+4+4+4+4)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[4] = r.CTExponent
	putUint16(buf[5:7], r.Reserved1)
	// buf[7] is reserved byte
	putUint32(buf[8:12], uint32(r.Flags))
	putUint32(buf[12:16], r.DataTransferSize)
	putUint32(buf[16:20], r.MaxSPDMMsgSize)
	return buf, nil
}

// CapabilitiesResponse is the decoded CAPABILITIES message.
type CapabilitiesResponse struct {
	Header           Header
	CTExponent       byte
	Flags            CapabilityFlags
	DataTransferSize uint32
	MaxSPDMMsgSize   uint32
}

func DecodeCapabilitiesResponse(buf []byte) (CapabilitiesResponse, error) {
	const want = HeaderSize + 4 + 4 + 4 + 4
	if len(buf) < want {
		return CapabilitiesResponse{}, spdmerr.New("wire.DecodeCapabilitiesResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return CapabilitiesResponse{}, err
	}
	if hdr.RequestResponseCode != CodeCapabilities {
		return CapabilitiesResponse{}, spdmerr.New("wire.DecodeCapabilitiesResponse", spdmerr.CodeUnexpectedResponse)
	}
	ct := buf[4]
	flags := getUint32(buf[8:12])
	dts := getUint32(buf[12:16])
	maxMsg := getUint32(buf[16:20])
	return CapabilitiesResponse{
		Header:           hdr,
		CTExponent:       ct,
		Flags:            CapabilityFlags(flags),
		DataTransferSize: dts,
		MaxSPDMMsgSize:   maxMsg,
	}, nil
}

func EncodeCapabilitiesResponse(c CapabilitiesResponse) ([]byte, error) {
	buf := make([]byte, HeaderSize+4+4+4+4)
	if err := c.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[4] = c.CTExponent
	putUint32(buf[8:12], uint32(c.Flags))
	putUint32(buf[12:16], c.DataTransferSize)
	putUint32(buf[16:20], c.MaxSPDMMsgSize)
	return buf, nil
}
