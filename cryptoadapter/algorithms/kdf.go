// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import (
	"crypto/hmac"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// Extract implements cryptoadapter.KDF.
func (a *Algorithms) Extract(hashAlgo wire.HashAlgo, salt, ikm []byte) ([]byte, error) {
	newH, err := hashConstructor(hashAlgo)
	if err != nil {
		return nil, err
	}
	return hkdf.Extract(newH, ikm, salt), nil
}

// Expand implements cryptoadapter.KDF.
func (a *Algorithms) Expand(hashAlgo wire.HashAlgo, prk, info []byte, length int) ([]byte, error) {
	newH, err := hashConstructor(hashAlgo)
	if err != nil {
		return nil, err
	}
	reader := hkdf.Expand(newH, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, spdmerr.Wrap("algorithms.Expand", spdmerr.CodeCryptoError, err)
	}
	return out, nil
}

// HMAC implements cryptoadapter.KDF, used for the FINISH/PSK_FINISH/
// KEY_EXCHANGE_RSP verify_data.
func (a *Algorithms) HMAC(hashAlgo wire.HashAlgo, key, data []byte) ([]byte, error) {
	newH, err := hashConstructor(hashAlgo)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newH, key)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func hashConstructor(algo wire.HashAlgo) (func() hash.Hash, error) {
	switch algo {
	case wire.HashSHA256, wire.HashSHA384, wire.HashSHA512,
		wire.HashSHA3_256, wire.HashSHA3_384, wire.HashSHA3_512:
		return func() hash.Hash {
			h, _ := newHash(algo)
			return h
		}, nil
	default:
		return nil, spdmerr.New("algorithms.hashConstructor", spdmerr.CodeInvalidMsgField)
	}
}
