// SPDX-License-Identifier: LGPL-3.0-or-later

package session

import (
	"encoding/binary"

	"github.com/sage-x-project/spdm-requester/cryptoadapter"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// expandLabel implements the RFC 8446-style HKDF-Expand-Label SPDM defines
// for its key schedule: HKDF-Expand(secret, "spdm1.1 " || label || context,
// len). The exact framing byte layout (2-byte length, 1-byte label length,
// label bytes, 1-byte context length, context bytes) matches libspdm's
// bin_concat helper used throughout libspdm_key_schedule in the
// handshake/session derivation code.
func expandLabel(hashAlgo wire.HashAlgo, adapter interface {
	Expand(hashAlgo wire.HashAlgo, prk, info []byte, length int) ([]byte, error)
}, secret []byte, label string, context []byte, length int) ([]byte, error) {
	const prefix = "spdm1.1 "
	full := prefix + label
	info := make([]byte, 0, 2+1+len(full)+1+len(context))
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(length))
	info = append(info, lenBuf...)
	info = append(info, byte(len(full)))
	info = append(info, full...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	return adapter.Expand(hashAlgo, secret, info, length)
}

// DeriveTrafficSecrets computes the initial request and response handshake
// secrets for a freshly established session: one HKDF-Extract of the DHE
// (or PSK) shared secret with a zero salt, then two HKDF-Expand-Label calls
// with TH1 as context, binding "req" and "rsp" as the direction label.
func DeriveTrafficSecrets(adapter cryptoadapter.Adapter, p Params) (reqSecret, rspSecret []byte, err error) {
	hashSize := adapter.HashSize(p.HashAlgo)
	zeroSalt := make([]byte, hashSize)
	handshakeSecret, err := adapter.Extract(p.HashAlgo, zeroSalt, p.SharedSecret)
	if err != nil {
		return nil, nil, spdmerr.Wrap("session.DeriveTrafficSecrets", spdmerr.CodeCryptoError, err)
	}
	req, err := expandLabel(p.HashAlgo, adapter, handshakeSecret, "req traffic secret", p.TranscriptHash, hashSize)
	if err != nil {
		return nil, nil, spdmerr.Wrap("session.DeriveTrafficSecrets", spdmerr.CodeCryptoError, err)
	}
	rsp, err := expandLabel(p.HashAlgo, adapter, handshakeSecret, "rsp traffic secret", p.TranscriptHash, hashSize)
	if err != nil {
		return nil, nil, spdmerr.Wrap("session.DeriveTrafficSecrets", spdmerr.CodeCryptoError, err)
	}
	return req, rsp, nil
}

// New creates an established Session from derived traffic secrets.
func New(adapter cryptoadapter.Adapter, p Params, reqSecret, rspSecret []byte) *Session {
	return &Session{
		ID:              p.SessionID,
		State:           StateHandshaking,
		adapter:         adapter,
		hash:            p.HashAlgo,
		aead:            p.AEADSuite,
		reqSecret:       reqSecret,
		rspSecret:       rspSecret,
		keyUpdateBackup: make(map[Direction][]byte),
	}
}

func (s *Session) secretFor(dir Direction) []byte {
	if dir == DirectionRequest {
		return s.reqSecret
	}
	return s.rspSecret
}

func (s *Session) seqFor(dir Direction) uint64 {
	if dir == DirectionRequest {
		return s.reqSeq
	}
	return s.rspSeq
}

func (s *Session) advanceSeq(dir Direction) error {
	if dir == DirectionRequest {
		if s.reqSeq == ^uint64(0) {
			return spdmerr.New("session.advanceSeq", spdmerr.CodeCryptoError)
		}
		s.reqSeq++
	} else {
		if s.rspSeq == ^uint64(0) {
			return spdmerr.New("session.advanceSeq", spdmerr.CodeCryptoError)
		}
		s.rspSeq++
	}
	return nil
}

func (s *Session) keyIV(secret []byte) (key, iv []byte, err error) {
	keySize := s.adapter.KeySize(s.aead)
	ivSize := s.adapter.IVSize(s.aead)
	finalizedKey, err := expandLabel(s.hash, s.adapter, secret, "key", nil, keySize)
	if err != nil {
		return nil, nil, err
	}
	finalizedSalt, err := expandLabel(s.hash, s.adapter, secret, "iv", nil, ivSize)
	if err != nil {
		return nil, nil, err
	}
	return finalizedKey, finalizedSalt, nil
}

// applySequence XORs the little-endian sequence number into the
// right-aligned tail of salt to produce the per-message IV, per spec.md 4.5.
func applySequence(salt []byte, seq uint64) []byte {
	iv := append([]byte{}, salt...)
	seqBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(seqBuf, seq)
	off := len(iv) - 8
	for i := 0; i < 8 && off+i >= 0; i++ {
		iv[off+i] ^= seqBuf[i]
	}
	return iv
}

// Seal encrypts plaintext for direction dir and returns the DSP0277 wire
// record, advancing that direction's sequence number on success.
func (s *Session) Seal(dir Direction, plaintext []byte) (wire.SecuredMessageRecord, error) {
	secret := s.secretFor(dir)
	key, salt, err := s.keyIV(secret)
	if err != nil {
		return wire.SecuredMessageRecord{}, err
	}
	seq := s.seqFor(dir)
	iv := applySequence(salt, seq)
	aad := wire.AdditionalAuthData(s.ID, seq, uint16(len(plaintext)))
	ct, tag, err := s.adapter.Seal(s.aead, key, iv, aad, plaintext)
	if err != nil {
		return wire.SecuredMessageRecord{}, err
	}
	if err := s.advanceSeq(dir); err != nil {
		return wire.SecuredMessageRecord{}, err
	}
	return wire.SecuredMessageRecord{SessionID: s.ID, Nonce: iv, Ciphertext: ct, Tag: tag}, nil
}

// Open decrypts a DSP0277 record received for direction dir. On tag
// mismatch it retries once against the key-update backup secret (if one
// exists) before returning CRYPTO_ERROR, covering the one-message grace
// window the peer gets after our own update_key.
func (s *Session) Open(dir Direction, rec wire.SecuredMessageRecord) ([]byte, error) {
	if rec.SessionID != s.ID {
		return nil, spdmerr.New("session.Open", spdmerr.CodeInvalidMsgField)
	}
	secret := s.secretFor(dir)
	seq := s.seqFor(dir)
	pt, err := s.tryOpen(secret, rec, seq)
	if err == nil {
		_ = s.advanceSeq(dir)
		return pt, nil
	}
	if backup, ok := s.keyUpdateBackup[dir]; ok {
		pt, err2 := s.tryOpen(backup, rec, seq)
		if err2 == nil {
			delete(s.keyUpdateBackup, dir)
			_ = s.advanceSeq(dir)
			return pt, nil
		}
	}
	return nil, err
}

func (s *Session) tryOpen(secret []byte, rec wire.SecuredMessageRecord, seq uint64) ([]byte, error) {
	key, salt, err := s.keyIV(secret)
	if err != nil {
		return nil, err
	}
	iv := applySequence(salt, seq)
	aad := wire.AdditionalAuthData(s.ID, seq, uint16(len(rec.Ciphertext)))
	return s.adapter.Open(s.aead, key, iv, aad, rec.Ciphertext, rec.Tag)
}

// UpdateKey derives the next traffic secret for dir via HKDF-Expand-Label,
// keeping the outgoing secret as a one-message backup so a peer that
// hasn't yet applied the matching update can still be decoded.
func (s *Session) UpdateKey(dir Direction) error {
	hashSize := s.adapter.HashSize(s.hash)
	old := s.secretFor(dir)
	next, err := expandLabel(s.hash, s.adapter, old, "traffic upd", nil, hashSize)
	if err != nil {
		return spdmerr.Wrap("session.UpdateKey", spdmerr.CodeCryptoError, err)
	}
	s.keyUpdateBackup[dir] = old
	if dir == DirectionRequest {
		s.reqSecret = next
		s.reqSeq = 0
	} else {
		s.rspSecret = next
		s.rspSeq = 0
	}
	return nil
}

// finishedKey derives finished_key_{req,rsp} =
// HKDF-Expand-Label(handshake_secret_{req,rsp}, "finished", "") -- the MAC
// key for verify_data, kept distinct from the traffic secret that feeds the
// AEAD key schedule.
func (s *Session) finishedKey(dir Direction) ([]byte, error) {
	hashSize := s.adapter.HashSize(s.hash)
	return expandLabel(s.hash, s.adapter, s.secretFor(dir), "finished", nil, hashSize)
}

// FinishedVerifyData computes the HMAC(finished_key, data) verify_data
// FINISH, PSK_FINISH, and KEY_EXCHANGE_RSP all use, keyed by whichever
// direction's finished key that step authenticates.
func (s *Session) FinishedVerifyData(dir Direction, data []byte) ([]byte, error) {
	fk, err := s.finishedKey(dir)
	if err != nil {
		return nil, spdmerr.Wrap("session.FinishedVerifyData", spdmerr.CodeCryptoError, err)
	}
	mac, err := s.adapter.HMAC(s.hash, fk, data)
	if err != nil {
		return nil, spdmerr.Wrap("session.FinishedVerifyData", spdmerr.CodeCryptoError, err)
	}
	return mac, nil
}

// Establish transitions a handshaking session to StateEstablished once
// FINISH/PSK_FINISH has verified both sides' verify_data.
func (s *Session) Establish() {
	s.State = StateEstablished
}

// Close securely zeroes every key material this session holds.
func (s *Session) Close() {
	zero(s.reqSecret)
	zero(s.rspSecret)
	for _, b := range s.keyUpdateBackup {
		zero(b)
	}
	s.keyUpdateBackup = nil
	s.State = StateNotStarted
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
