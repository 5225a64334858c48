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

// Package cryptoadapter dispatches every cryptographic operation a
// Requester needs by negotiated algorithm id, so core/handshake never
// imports a concrete curve or cipher package directly.
package cryptoadapter

import "github.com/sage-x-project/spdm-requester/wire"

// Hasher computes a digest under a negotiated base_hash algorithm.
type Hasher interface {
	Hash(algo wire.HashAlgo, data []byte) ([]byte, error)
	HashSize(algo wire.HashAlgo) int
	// NewRunning returns a fresh hash.Hash-compatible sink for use with
	// transcript.ModeRunningHash; nil if algo is unsupported.
	NewRunning(algo wire.HashAlgo) (RunningHash, error)
}

// RunningHash is the subset of hash.Hash the transcript manager needs.
type RunningHash interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

// Signer produces signatures for mutual-auth responses (the Requester acts
// as the signer only when the Responder challenges it back).
type Signer interface {
	Sign(asym wire.AsymAlgo, hashAlgo wire.HashAlgo, isDataHash bool, privateKey any, msg []byte) ([]byte, error)
	SignatureSize(asym wire.AsymAlgo) int
}

// Verifier checks Responder signatures (CHALLENGE_AUTH, signed MEASUREMENTS,
// KEY_EXCHANGE_RSP).
type Verifier interface {
	Verify(asym wire.AsymAlgo, hashAlgo wire.HashAlgo, isDataHash bool, publicKey any, data, sig []byte) (bool, error)
}

// DHE performs ephemeral key-exchange key generation and shared-secret
// derivation for a negotiated dhe_named_group.
type DHE interface {
	GenerateEphemeral(group wire.DHEGroup) (public, private []byte, err error)
	ComputeShared(group wire.DHEGroup, peerPublic, private []byte) ([]byte, error)
	PublicKeySize(group wire.DHEGroup) int
}

// AEAD seals and opens secured-message records under a negotiated
// aead_cipher_suite.
type AEAD interface {
	Seal(suite wire.AEADSuite, key, iv, aad, plaintext []byte) (ciphertext, tag []byte, err error)
	Open(suite wire.AEADSuite, key, iv, aad, ciphertext, tag []byte) (plaintext []byte, err error)
	KeySize(suite wire.AEADSuite) int
	IVSize(suite wire.AEADSuite) int
	TagSize(suite wire.AEADSuite) int
}

// KDF derives session secrets via the negotiated key_schedule (HKDF today).
type KDF interface {
	Extract(hashAlgo wire.HashAlgo, salt, ikm []byte) ([]byte, error)
	Expand(hashAlgo wire.HashAlgo, prk, info []byte, length int) ([]byte, error)
	HMAC(hashAlgo wire.HashAlgo, key, data []byte) ([]byte, error)
}

// Adapter aggregates every crypto capability a connection needs. A single
// concrete implementation backs all six; they are split into interfaces so
// handler code can depend on only what it uses.
type Adapter interface {
	Hasher
	Signer
	Verifier
	DHE
	AEAD
	KDF
}
