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
	"context"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

const defaultCertChainBlockLen = 1024

// GetCertificate reassembles the peer's certificate chain for slot via
// repeated GET_CERTIFICATE/CERTIFICATE exchanges, each bounded by the
// connection's configured max_cert_chain_block_len, until RemainderLength
// reaches zero. A prior cache hit (this slot already reassembled) is a
// no-op, the cache_cap fast path spec.md 4.6 describes.
func GetCertificate(ctx context.Context, c *connection.Connection, slot uint8) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	const op = "handshake.GetCertificate"
	if err := c.RequireState(op, connection.StateNegotiated); err != nil {
		return err
	}
	if err := c.RequireCapability(op, wire.CapCertCap); err != nil {
		return err
	}
	if slot > 7 {
		return spdmerr.New(op, spdmerr.CodeInvalidMsgField)
	}
	if c.PeerCertSlots[slot] != nil {
		return nil
	}

	blockLen := uint16(defaultCertChainBlockLen)
	maxChain := uint32(0)
	if c.Cfg != nil {
		if c.Cfg.Connection.MaxCertChainBlockLen > 0 {
			blockLen = c.Cfg.Connection.MaxCertChainBlockLen
		}
		maxChain = c.Cfg.Connection.MaxCertChainSize
	}

	var chain []byte
	offset := uint16(0)
	for {
		req := wire.GetCertificateRequest{
			Header: wire.Header{
				SPDMVersion:         c.Version,
				RequestResponseCode: wire.CodeGetCertificate,
				Param1:              slot,
			},
			Offset: offset,
			Length: blockLen,
		}
		buf, err := req.Encode()
		if err != nil {
			return err
		}
		resp, err := exchange(ctx, c, op, wire.CodeGetCertificate, transcript.StreamB, buf)
		if err != nil {
			return err
		}
		certResp, err := wire.DecodeCertificateResponse(resp)
		if err != nil {
			return err
		}

		chain = append(chain, certResp.CertChain...)
		if maxChain > 0 && uint32(len(chain)) > maxChain {
			return spdmerr.New(op, spdmerr.CodeBufferFull)
		}
		offset += certResp.PortionLength
		if certResp.RemainderLength == 0 {
			break
		}
	}

	hashSize := c.Algo.BaseHash.HashSize()
	chainHdr, body, err := wire.DecodeCertChainHeader(chain, hashSize)
	if err != nil {
		return err
	}

	// The digest DIGESTS advertised (and CHALLENGE_AUTH will echo) covers
	// the full reassembled chain, CertChainHeader included.
	digest, err := c.Adapter.Hash(c.Algo.BaseHash, chain)
	if err != nil {
		return spdmerr.Wrap(op, spdmerr.CodeCryptoError, err)
	}
	if cached, ok := c.PeerDigests[slot]; ok && !bytes.Equal(cached, digest) {
		return spdmerr.New(op, spdmerr.CodeVerifyCertFail)
	}

	if err := verifyPeerChain(c, op, chainHdr, body); err != nil {
		return err
	}

	c.PeerCertSlots[slot] = &connection.CertSlot{Digest: digest, Chain: chain}
	c.Advance(connection.StateAfterCertificate)
	return nil
}
