// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// SecuredMessageHeaderSize is the DSP0277 session header preceding the AEAD
// ciphertext: a 4-byte session id and a 2-byte length of everything after it.
const SecuredMessageHeaderSize = 6

// SecuredMessageRecord is one DSP0277 secured message: the session id and
// length header, an AEAD nonce, the ciphertext (application data plus any
// padding), and the authentication tag. AAD is SessionID||SequenceNumber||
// Length and is never transmitted -- it is reconstructed by the caller from
// the header and the per-direction sequence counter before calling the AEAD
// adapter, so it is not a field here.
type SecuredMessageRecord struct {
	SessionID  uint32
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Encode lays out SessionID||Length||Nonce||Ciphertext||Tag. Length covers
// everything after the 2-byte length field.
func (r SecuredMessageRecord) Encode() ([]byte, error) {
	body := len(r.Nonce) + len(r.Ciphertext) + len(r.Tag)
	if body > 0xFFFF {
		return nil, spdmerr.New("wire.SecuredMessageRecord.Encode", spdmerr.CodeInvalidMsgSize)
	}
	buf := make([]byte, SecuredMessageHeaderSize+body)
	putUint32(buf[0:4], r.SessionID)
	putUint16(buf[4:6], uint16(body))
	off := SecuredMessageHeaderSize
	copy(buf[off:], r.Nonce)
	off += len(r.Nonce)
	copy(buf[off:], r.Ciphertext)
	off += len(r.Ciphertext)
	copy(buf[off:], r.Tag)
	return buf, nil
}

// DecodeSecuredMessageRecord splits a wire record back into its nonce,
// ciphertext, and tag given the adapter's fixed nonce and tag sizes.
func DecodeSecuredMessageRecord(buf []byte, nonceSize, tagSize int) (SecuredMessageRecord, error) {
	if len(buf) < SecuredMessageHeaderSize {
		return SecuredMessageRecord{}, spdmerr.New("wire.DecodeSecuredMessageRecord", spdmerr.CodeInvalidMsgSize)
	}
	sessionID := getUint32(buf[0:4])
	bodyLen := getUint16(buf[4:6])
	if len(buf) != SecuredMessageHeaderSize+int(bodyLen) {
		return SecuredMessageRecord{}, spdmerr.New("wire.DecodeSecuredMessageRecord", spdmerr.CodeInvalidMsgSize)
	}
	if int(bodyLen) < nonceSize+tagSize {
		return SecuredMessageRecord{}, spdmerr.New("wire.DecodeSecuredMessageRecord", spdmerr.CodeInvalidMsgSize)
	}
	off := SecuredMessageHeaderSize
	nonce := append([]byte{}, buf[off:off+nonceSize]...)
	off += nonceSize
	ctLen := int(bodyLen) - nonceSize - tagSize
	ct := append([]byte{}, buf[off:off+ctLen]...)
	off += ctLen
	tag := append([]byte{}, buf[off:off+tagSize]...)
	return SecuredMessageRecord{
		SessionID:  sessionID,
		Nonce:      nonce,
		Ciphertext: ct,
		Tag:        tag,
	}, nil
}

// AdditionalAuthData builds the AAD bound into the AEAD tag: the session id,
// the 64-bit per-direction sequence number, and the plaintext length. The
// sequence number and plaintext length are not carried on the wire, so the
// far end must reconstruct the same bytes from its own session and sequence
// state to verify.
func AdditionalAuthData(sessionID uint32, sequenceNumber uint64, plaintextLen uint16) []byte {
	aad := make([]byte, 4+8+2)
	putUint32(aad[0:4], sessionID)
	putUint64(aad[4:12], sequenceNumber)
	putUint16(aad[12:14], plaintextLen)
	return aad
}
