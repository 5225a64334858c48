// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// SignatureSize implements cryptoadapter.Signer. ECDSA signatures use the
// SPDM wire's fixed-size r||s encoding, not ASN.1 DER.
func (a *Algorithms) SignatureSize(asym wire.AsymAlgo) int {
	switch asym {
	case wire.AsymEdDSA25519:
		return ed25519.SignatureSize
	case wire.AsymECDSAP256:
		return 64
	case wire.AsymECDSAP384:
		return 96
	case wire.AsymSecp256k1Ext:
		return 64
	default:
		return 0
	}
}

// hashInput returns either the raw data or its negotiated-hash digest
// depending on isDataHash, mirroring libspdm's is_data_hash flag on
// requester_data_sign/verify contracts.
func (a *Algorithms) hashInput(hashAlgo wire.HashAlgo, isDataHash bool, data []byte) ([]byte, error) {
	if isDataHash {
		return data, nil
	}
	return a.Hash(hashAlgo, data)
}

// Sign implements cryptoadapter.Signer, used only for the Requester's own
// mutual-auth CHALLENGE_AUTH/KEY_EXCHANGE responses.
func (a *Algorithms) Sign(asym wire.AsymAlgo, hashAlgo wire.HashAlgo, isDataHash bool, privateKey any, msg []byte) ([]byte, error) {
	digest, err := a.hashInput(hashAlgo, isDataHash, msg)
	if err != nil {
		return nil, err
	}
	switch asym {
	case wire.AsymEdDSA25519:
		key, ok := privateKey.(ed25519.PrivateKey)
		if !ok {
			return nil, spdmerr.New("algorithms.Sign", spdmerr.CodeInvalidMsgField)
		}
		// Ed25519 always signs the full message, never a pre-hash, per RFC 8032.
		if isDataHash {
			return nil, spdmerr.New("algorithms.Sign", spdmerr.CodeInvalidMsgField)
		}
		return ed25519.Sign(key, msg), nil
	case wire.AsymECDSAP256, wire.AsymECDSAP384:
		key, ok := privateKey.(*ecdsa.PrivateKey)
		if !ok {
			return nil, spdmerr.New("algorithms.Sign", spdmerr.CodeInvalidMsgField)
		}
		r, s, err := ecdsa.Sign(rand.Reader, key, digest)
		if err != nil {
			return nil, spdmerr.Wrap("algorithms.Sign", spdmerr.CodeCryptoError, err)
		}
		return fixedRS(r, s, a.SignatureSize(asym)/2), nil
	case wire.AsymSecp256k1Ext:
		key, ok := privateKey.(*secp256k1.PrivateKey)
		if !ok {
			return nil, spdmerr.New("algorithms.Sign", spdmerr.CodeInvalidMsgField)
		}
		sig := secp256k1ecdsa.Sign(key, digest)
		r, s := sig.R(), sig.S()
		rb, sb := r.Bytes(), s.Bytes()
		out := make([]byte, 64)
		copy(out[:32], rb[:])
		copy(out[32:], sb[:])
		return out, nil
	default:
		return nil, spdmerr.New("algorithms.Sign", spdmerr.CodeInvalidMsgField)
	}
}

// Verify implements cryptoadapter.Verifier, used to check every Responder
// signature (CHALLENGE_AUTH, signed MEASUREMENTS, KEY_EXCHANGE_RSP).
func (a *Algorithms) Verify(asym wire.AsymAlgo, hashAlgo wire.HashAlgo, isDataHash bool, publicKey any, data, sig []byte) (bool, error) {
	digest, err := a.hashInput(hashAlgo, isDataHash, data)
	if err != nil {
		return false, err
	}
	switch asym {
	case wire.AsymEdDSA25519:
		key, ok := publicKey.(ed25519.PublicKey)
		if !ok {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgField)
		}
		if isDataHash {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgField)
		}
		return ed25519.Verify(key, data, sig), nil
	case wire.AsymECDSAP256, wire.AsymECDSAP384:
		key, ok := publicKey.(*ecdsa.PublicKey)
		if !ok {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgField)
		}
		half := a.SignatureSize(asym) / 2
		if len(sig) != 2*half {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgSize)
		}
		r := new(big.Int).SetBytes(sig[:half])
		s := new(big.Int).SetBytes(sig[half:])
		return ecdsa.Verify(key, digest, r, s), nil
	case wire.AsymSecp256k1Ext:
		key, ok := publicKey.(*secp256k1.PublicKey)
		if !ok {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgField)
		}
		if len(sig) != 64 {
			return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgSize)
		}
		r := new(secp256k1.ModNScalar)
		r.SetByteSlice(sig[:32])
		s := new(secp256k1.ModNScalar)
		s.SetByteSlice(sig[32:])
		signature := secp256k1ecdsa.NewSignature(r, s)
		return signature.Verify(digest, key), nil
	default:
		return false, spdmerr.New("algorithms.Verify", spdmerr.CodeInvalidMsgField)
	}
}

func fixedRS(r, s *big.Int, size int) []byte {
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])
	return out
}
