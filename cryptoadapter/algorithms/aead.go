// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

func newAEAD(suite wire.AEADSuite, key []byte) (cipher.AEAD, error) {
	switch suite {
	case wire.AEADAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, spdmerr.Wrap("algorithms.newAEAD", spdmerr.CodeCryptoError, err)
		}
		return cipher.NewGCM(block)
	case wire.AEADChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, spdmerr.New("algorithms.newAEAD", spdmerr.CodeInvalidMsgField)
	}
}

// KeySize implements cryptoadapter.AEAD. Both negotiable suites use 256-bit
// keys.
func (a *Algorithms) KeySize(suite wire.AEADSuite) int {
	switch suite {
	case wire.AEADAES256GCM, wire.AEADChaCha20Poly1305:
		return 32
	default:
		return 0
	}
}

// IVSize implements cryptoadapter.AEAD.
func (a *Algorithms) IVSize(suite wire.AEADSuite) int {
	switch suite {
	case wire.AEADAES256GCM, wire.AEADChaCha20Poly1305:
		return 12
	default:
		return 0
	}
}

// TagSize implements cryptoadapter.AEAD.
func (a *Algorithms) TagSize(suite wire.AEADSuite) int {
	switch suite {
	case wire.AEADAES256GCM, wire.AEADChaCha20Poly1305:
		return 16
	default:
		return 0
	}
}

// Seal implements cryptoadapter.AEAD. Returns ciphertext and tag split
// apart, matching the secured-message wire layout (SessionID||Length||
// Ciphertext||Tag) rather than Go's append-the-tag convention.
func (a *Algorithms) Seal(suite wire.AEADSuite, key, iv, aad, plaintext []byte) ([]byte, []byte, error) {
	aead, err := newAEAD(suite, key)
	if err != nil {
		return nil, nil, err
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	tagSize := aead.Overhead()
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]
	return ct, tag, nil
}

// Open implements cryptoadapter.AEAD. A tag mismatch maps to CRYPTO_ERROR.
func (a *Algorithms) Open(suite wire.AEADSuite, key, iv, aad, ciphertext, tag []byte) ([]byte, error) {
	aead, err := newAEAD(suite, key)
	if err != nil {
		return nil, err
	}
	sealed := append(append([]byte{}, ciphertext...), tag...)
	pt, err := aead.Open(nil, iv, sealed, aad)
	if err != nil {
		return nil, spdmerr.Wrap("algorithms.Open", spdmerr.CodeCryptoError, err)
	}
	return pt, nil
}
