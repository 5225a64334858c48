// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

const NonceSize = 32

// ChallengeRequest sends a 32-byte nonce. Param1 carries the slot number
// (0..7) or 0xFF for "use provisioned public key, no chain".
type ChallengeRequest struct {
	Header              Header
	Nonce               [NonceSize]byte
}

func (r ChallengeRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+NonceSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	copy(buf[HeaderSize:], r.Nonce[:])
	return buf, nil
}

// ChallengeAuthResponse is the decoded CHALLENGE_AUTH payload. The trailing
// signature is kept in Signature, apart from the fields PreSignatureBytes
// re-encodes (the caller verifies the signature separately against the
// running transcript).
type ChallengeAuthResponse struct {
	Header               Header // Param1 low nibble = slot or 0x0F, Param2 = slot mask for cert hash
	CertChainHash        []byte // hash-sized, empty when provisioned-key mode
	Nonce                [NonceSize]byte
	MeasurementSummary   []byte // hash-sized, empty unless requested
	OpaqueDataLength     uint16
	OpaqueData           []byte
	Signature            []byte
}

// DecodeChallengeAuthResponse parses everything up to the signature and
// returns the signature separately so callers can feed it to Verify while
// the transcript only ever observes the pre-signature bytes.
func DecodeChallengeAuthResponse(buf []byte, hashSize int, hasCertChainHash bool, hasMeasurementSummary bool, sigSize int) (ChallengeAuthResponse, error) {
	off := HeaderSize
	if len(buf) < off {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return ChallengeAuthResponse{}, err
	}
	if hdr.RequestResponseCode != CodeChallengeAuth {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeUnexpectedResponse)
	}

	resp := ChallengeAuthResponse{Header: hdr}
	if hasCertChainHash {
		if len(buf) < off+hashSize {
			return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
		}
		resp.CertChainHash = append([]byte{}, buf[off:off+hashSize]...)
		off += hashSize
	}
	if len(buf) < off+NonceSize {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
	}
	copy(resp.Nonce[:], buf[off:off+NonceSize])
	off += NonceSize

	if hasMeasurementSummary {
		if len(buf) < off+hashSize {
			return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
		}
		resp.MeasurementSummary = append([]byte{}, buf[off:off+hashSize]...)
		off += hashSize
	}

	if len(buf) < off+2 {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
	}
	resp.OpaqueDataLength = getUint16(buf[off : off+2])
	off += 2

	if len(buf) < off+int(resp.OpaqueDataLength)+sigSize {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
	}
	resp.OpaqueData = append([]byte{}, buf[off:off+int(resp.OpaqueDataLength)]...)
	off += int(resp.OpaqueDataLength)

	if len(buf) != off+sigSize {
		return ChallengeAuthResponse{}, spdmerr.New("wire.DecodeChallengeAuthResponse", spdmerr.CodeInvalidMsgSize)
	}
	resp.Signature = append([]byte{}, buf[off:off+sigSize]...)
	return resp, nil
}

// PreSignatureBytes re-encodes everything up to (not including) the
// signature — exactly the bytes that belong in the transcript and that the
// signature was computed over.
func (r ChallengeAuthResponse) PreSignatureBytes() []byte {
	buf := make([]byte, 0, HeaderSize+len(r.CertChainHash)+NonceSize+len(r.MeasurementSummary)+2+len(r.OpaqueData))
	hdr := make([]byte, HeaderSize)
	_ = r.Header.Encode(hdr)
	buf = append(buf, hdr...)
	buf = append(buf, r.CertChainHash...)
	buf = append(buf, r.Nonce[:]...)
	buf = append(buf, r.MeasurementSummary...)
	ln := make([]byte, 2)
	putUint16(ln, r.OpaqueDataLength)
	buf = append(buf, ln...)
	buf = append(buf, r.OpaqueData...)
	return buf
}

// SlotOrProvisioned is the sum type for param1's low nibble: a real slot
// index 0..7, or the sentinel meaning "use the provisioned raw public key".
type SlotOrProvisioned struct {
	slot       uint8
	provisioned bool
}

func Slot(n uint8) SlotOrProvisioned { return SlotOrProvisioned{slot: n} }

func ProvisionedKeySlot() SlotOrProvisioned { return SlotOrProvisioned{provisioned: true} }

func (s SlotOrProvisioned) IsProvisionedKey() bool { return s.provisioned }

func (s SlotOrProvisioned) Index() (uint8, bool) {
	if s.provisioned {
		return 0, false
	}
	return s.slot, true
}

// Param1 encodes the slot (low nibble) for the request.
func (s SlotOrProvisioned) Param1() byte {
	if s.provisioned {
		return 0xFF
	}
	return s.slot & 0x0F
}
