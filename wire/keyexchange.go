// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// KeyExchangeRequest. Param1 = measurement summary hash request type.
type KeyExchangeRequest struct {
	Header          Header
	ReqSessionID    uint16
	SessionPolicy   byte
	Reserved        byte
	RandomData      [NonceSize]byte
	ExchangeData    []byte // DHE ephemeral public key bytes
	OpaqueData      []byte
}

func (r KeyExchangeRequest) Encode() ([]byte, error) {
	size := HeaderSize + 4 + NonceSize + len(r.ExchangeData) + 2 + len(r.OpaqueData)
	buf := make([]byte, size)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[4:6], r.ReqSessionID)
	buf[6] = r.SessionPolicy
	buf[7] = r.Reserved
	off := HeaderSize + 4
	copy(buf[off:off+NonceSize], r.RandomData[:])
	off += NonceSize
	copy(buf[off:off+len(r.ExchangeData)], r.ExchangeData)
	off += len(r.ExchangeData)
	putUint16(buf[off:off+2], uint16(len(r.OpaqueData)))
	off += 2
	copy(buf[off:], r.OpaqueData)
	return buf, nil
}

// KeyExchangeRspResponse is the decoded KEY_EXCHANGE_RSP payload. The
// trailing responder signature and verify_data are kept in their own fields
// so the caller can commit the bytes before them to the transcript before
// verification.
type KeyExchangeRspResponse struct {
	Header             Header // Param1 = mut_auth_requested bits, Param2 = req slot id
	RspSessionID       uint16
	MutAuthRequested   byte
	SlotIDParam        byte
	RandomData         [NonceSize]byte
	ExchangeData       []byte
	MeasurementSummary []byte
	OpaqueDataLength   uint16
	OpaqueData         []byte
	Signature          []byte // present unless HANDSHAKE_IN_THE_CLEAR
	VerifyData         []byte // HMAC(finished_key_rsp, TH1), hash-sized
}

func DecodeKeyExchangeRspResponse(buf []byte, exchangeSize, hashSize int, hasMeasurementSummary bool, sigSize int, hasSignature bool) (KeyExchangeRspResponse, error) {
	off := HeaderSize + 4
	if len(buf) < off {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return KeyExchangeRspResponse{}, err
	}
	if hdr.RequestResponseCode != CodeKeyExchangeRsp {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeUnexpectedResponse)
	}
	rspSessionID := getUint16(buf[4:6])
	mutAuth := buf[6]
	slotID := buf[7]

	if len(buf) < off+NonceSize+exchangeSize {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	var rnd [NonceSize]byte
	copy(rnd[:], buf[off:off+NonceSize])
	off += NonceSize
	exch := append([]byte{}, buf[off:off+exchangeSize]...)
	off += exchangeSize

	var measSummary []byte
	if hasMeasurementSummary {
		if len(buf) < off+hashSize {
			return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
		}
		measSummary = append([]byte{}, buf[off:off+hashSize]...)
		off += hashSize
	}

	if len(buf) < off+2 {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	opaqueLen := getUint16(buf[off : off+2])
	off += 2
	if len(buf) < off+int(opaqueLen) {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	opaque := append([]byte{}, buf[off:off+int(opaqueLen)]...)
	off += int(opaqueLen)

	var sig []byte
	if hasSignature {
		if len(buf) < off+sigSize {
			return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
		}
		sig = append([]byte{}, buf[off:off+sigSize]...)
		off += sigSize
	}

	if len(buf) != off+hashSize {
		return KeyExchangeRspResponse{}, spdmerr.New("wire.DecodeKeyExchangeRspResponse", spdmerr.CodeInvalidMsgSize)
	}
	verify := append([]byte{}, buf[off:off+hashSize]...)

	return KeyExchangeRspResponse{
		Header:             hdr,
		RspSessionID:       rspSessionID,
		MutAuthRequested:   mutAuth,
		SlotIDParam:        slotID,
		RandomData:         rnd,
		ExchangeData:       exch,
		MeasurementSummary: measSummary,
		OpaqueDataLength:   opaqueLen,
		OpaqueData:         opaque,
		Signature:          sig,
		VerifyData:         verify,
	}, nil
}

// BytesBeforeSignature re-encodes everything up to (not including) the
// Responder's signature -- the bytes the signature itself covers.
func (r KeyExchangeRspResponse) BytesBeforeSignature() []byte {
	hdr := make([]byte, HeaderSize)
	_ = r.Header.Encode(hdr)
	buf := append([]byte{}, hdr...)
	sess := make([]byte, 4)
	putUint16(sess[0:2], r.RspSessionID)
	sess[2] = r.MutAuthRequested
	sess[3] = r.SlotIDParam
	buf = append(buf, sess...)
	buf = append(buf, r.RandomData[:]...)
	buf = append(buf, r.ExchangeData...)
	buf = append(buf, r.MeasurementSummary...)
	ln := make([]byte, 2)
	putUint16(ln, r.OpaqueDataLength)
	buf = append(buf, ln...)
	buf = append(buf, r.OpaqueData...)
	return buf
}

// BytesBeforeVerifyData re-encodes everything except the trailing
// VerifyData field -- the TH1 transcript input (signature included).
func (r KeyExchangeRspResponse) BytesBeforeVerifyData() []byte {
	return append(r.BytesBeforeSignature(), r.Signature...)
}
