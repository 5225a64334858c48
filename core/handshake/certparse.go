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

package handshake

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// splitDERChain peels a concatenation of back-to-back DER certificates
// (the layout GET_CERTIFICATE's cert_chain carries after CertChainHeader)
// into individual certificate byte slices, using each certificate's own
// ASN.1 length prefix to find the next one's start.
func splitDERChain(data []byte) ([][]byte, error) {
	var out [][]byte
	rest := data
	for len(rest) > 0 {
		var raw asn1.RawValue
		tail, err := asn1.Unmarshal(rest, &raw)
		if err != nil {
			return nil, spdmerr.Wrap("handshake.splitDERChain", spdmerr.CodeVerifyCertFail, err)
		}
		out = append(out, raw.FullBytes)
		rest = tail
	}
	if len(out) == 0 {
		return nil, spdmerr.New("handshake.splitDERChain", spdmerr.CodeVerifyCertFail)
	}
	return out, nil
}

// leafPublicKey extracts the end-entity (leaf, last-in-chain) certificate's
// public key from a reassembled GET_CERTIFICATE chain, for CHALLENGE_AUTH,
// signed MEASUREMENTS, and KEY_EXCHANGE_RSP signature verification.
func leafPublicKey(chainAfterHeader []byte) (any, error) {
	certs, err := splitDERChain(chainAfterHeader)
	if err != nil {
		return nil, err
	}
	leaf, err := x509.ParseCertificate(certs[len(certs)-1])
	if err != nil {
		return nil, spdmerr.Wrap("handshake.leafPublicKey", spdmerr.CodeVerifyCertFail, err)
	}
	return leaf.PublicKey, nil
}

// verifyPeerChain validates a reassembled cert_chain against the
// connection's provisioned trust anchors: the chain header's root hash must
// match one provisioned root, and the chain's leaf must X.509-verify up to
// that root through any intermediates the chain carries. With no roots
// provisioned the chain is pinned by digest alone and this is a no-op.
func verifyPeerChain(c *connection.Connection, op string, hdr wire.CertChainHeader, body []byte) error {
	if len(c.PeerRootCertProvision) == 0 {
		return nil
	}

	var rootDER []byte
	for _, der := range c.PeerRootCertProvision {
		digest, err := c.Adapter.Hash(c.Algo.BaseHash, der)
		if err != nil {
			return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
		}
		if bytes.Equal(digest, hdr.RootHash) {
			rootDER = der
			break
		}
	}
	if rootDER == nil {
		return spdmerr.New(op, spdmerr.CodeVerifyCertFail)
	}
	root, err := x509.ParseCertificate(rootDER)
	if err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeVerifyCertFail, err)
	}

	certs, err := splitDERChain(body)
	if err != nil {
		return err
	}
	parsed := make([]*x509.Certificate, len(certs))
	for i, der := range certs {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return spdmerr.Wrap(op, spdmerr.CodeVerifyCertFail, err)
		}
		parsed[i] = cert
	}

	roots := x509.NewCertPool()
	roots.AddCert(root)
	intermediates := x509.NewCertPool()
	for _, cert := range parsed[:len(parsed)-1] {
		intermediates.AddCert(cert)
	}
	leaf := parsed[len(parsed)-1]
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeVerifyCertFail, err)
	}
	return nil
}

// peerPublicKey resolves the public key to verify a Responder signature
// against: the cached slot's certificate chain leaf key, or this
// connection's provisioned raw public key when slot is 0xFF.
func peerPublicKey(c *connection.Connection, slot wire.SlotOrProvisioned) (any, error) {
	const op = "handshake.peerPublicKey"
	if slot.IsProvisionedKey() {
		if c.PeerProvisionedPublicKey == nil {
			return nil, spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
		}
		return c.PeerProvisionedPublicKey, nil
	}
	idx, _ := slot.Index()
	cached := c.PeerCertSlots[idx]
	if cached == nil {
		return nil, spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
	}
	hashSize := c.Algo.BaseHash.HashSize()
	_, body, err := wire.DecodeCertChainHeader(cached.Chain, hashSize)
	if err != nil {
		return nil, err
	}
	return leafPublicKey(body)
}
