// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package algorithms implements cryptoadapter.Adapter over the concrete
// primitives negotiated by NEGOTIATE_ALGORITHMS: standard-library SHA-2,
// golang.org/x/crypto/sha3 for the SHA-3 family, stdlib ed25519/ecdsa and
// decred's secp256k1 for signatures, stdlib crypto/ecdh and
// golang.org/x/crypto/curve25519 for DHE, stdlib AES-GCM and
// golang.org/x/crypto/chacha20poly1305 for AEAD, and golang.org/x/crypto/hkdf
// for key derivation.
package algorithms

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/sha3"

	"github.com/sage-x-project/spdm-requester/cryptoadapter"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

func newHash(algo wire.HashAlgo) (hash.Hash, error) {
	switch algo {
	case wire.HashSHA256:
		return sha256.New(), nil
	case wire.HashSHA384:
		return sha512.New384(), nil
	case wire.HashSHA512:
		return sha512.New(), nil
	case wire.HashSHA3_256:
		return sha3.New256(), nil
	case wire.HashSHA3_384:
		return sha3.New384(), nil
	case wire.HashSHA3_512:
		return sha3.New512(), nil
	default:
		return nil, spdmerr.New("algorithms.newHash", spdmerr.CodeInvalidMsgField)
	}
}

// Hash implements cryptoadapter.Hasher.
func (a *Algorithms) Hash(algo wire.HashAlgo, data []byte) ([]byte, error) {
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

// HashSize implements cryptoadapter.Hasher.
func (a *Algorithms) HashSize(algo wire.HashAlgo) int {
	return algo.HashSize()
}

// NewRunning implements cryptoadapter.Hasher for transcript.ModeRunningHash.
func (a *Algorithms) NewRunning(algo wire.HashAlgo) (cryptoadapter.RunningHash, error) {
	return newHash(algo)
}
