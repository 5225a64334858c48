// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import (
	"crypto/ecdh"
	"crypto/rand"

	"golang.org/x/crypto/curve25519"

	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/wire"
)

// PublicKeySize implements cryptoadapter.DHE.
func (a *Algorithms) PublicKeySize(group wire.DHEGroup) int {
	switch group {
	case wire.DHEX25519:
		return 32
	case wire.DHEP256:
		return 65 // uncompressed point, crypto/ecdh encoding
	case wire.DHEP384:
		return 97
	default:
		return 0
	}
}

// GenerateEphemeral implements cryptoadapter.DHE. SPDM's KEY_EXCHANGE is a
// two-sided Diffie-Hellman (both ends generate an ephemeral pair and
// exchange public halves), not a KEM encapsulation, so this uses the
// stdlib crypto/ecdh curve objects directly rather than circl's KEM-shaped
// API.
func (a *Algorithms) GenerateEphemeral(group wire.DHEGroup) ([]byte, []byte, error) {
	switch group {
	case wire.DHEX25519:
		var priv [32]byte
		if _, err := rand.Read(priv[:]); err != nil {
			return nil, nil, spdmerr.Wrap("algorithms.GenerateEphemeral", spdmerr.CodeCryptoError, err)
		}
		pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
		if err != nil {
			return nil, nil, spdmerr.Wrap("algorithms.GenerateEphemeral", spdmerr.CodeCryptoError, err)
		}
		return pub, priv[:], nil
	case wire.DHEP256:
		return generateECDH(ecdh.P256())
	case wire.DHEP384:
		return generateECDH(ecdh.P384())
	default:
		return nil, nil, spdmerr.New("algorithms.GenerateEphemeral", spdmerr.CodeInvalidMsgField)
	}
}

func generateECDH(curve ecdh.Curve) ([]byte, []byte, error) {
	key, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, spdmerr.Wrap("algorithms.generateECDH", spdmerr.CodeCryptoError, err)
	}
	return key.PublicKey().Bytes(), key.Bytes(), nil
}

// ComputeShared implements cryptoadapter.DHE.
func (a *Algorithms) ComputeShared(group wire.DHEGroup, peerPublic, private []byte) ([]byte, error) {
	switch group {
	case wire.DHEX25519:
		secret, err := curve25519.X25519(private, peerPublic)
		if err != nil {
			return nil, spdmerr.Wrap("algorithms.ComputeShared", spdmerr.CodeCryptoError, err)
		}
		return secret, nil
	case wire.DHEP256:
		return computeECDH(ecdh.P256(), peerPublic, private)
	case wire.DHEP384:
		return computeECDH(ecdh.P384(), peerPublic, private)
	default:
		return nil, spdmerr.New("algorithms.ComputeShared", spdmerr.CodeInvalidMsgField)
	}
}

func computeECDH(curve ecdh.Curve, peerPublic, private []byte) ([]byte, error) {
	priv, err := curve.NewPrivateKey(private)
	if err != nil {
		return nil, spdmerr.Wrap("algorithms.computeECDH", spdmerr.CodeCryptoError, err)
	}
	peer, err := curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, spdmerr.Wrap("algorithms.computeECDH", spdmerr.CodeCryptoError, err)
	}
	secret, err := priv.ECDH(peer)
	if err != nil {
		return nil, spdmerr.Wrap("algorithms.computeECDH", spdmerr.CodeCryptoError, err)
	}
	return secret, nil
}
