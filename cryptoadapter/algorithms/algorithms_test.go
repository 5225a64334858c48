// SPDX-License-Identifier: LGPL-3.0-or-later

package algorithms

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/wire"
)

func TestHashSizes(t *testing.T) {
	a := New()
	cases := []struct {
		algo wire.HashAlgo
		size int
	}{
		{wire.HashSHA256, 32},
		{wire.HashSHA384, 48},
		{wire.HashSHA512, 64},
		{wire.HashSHA3_256, 32},
		{wire.HashSHA3_384, 48},
		{wire.HashSHA3_512, 64},
	}
	for _, c := range cases {
		digest, err := a.Hash(c.algo, []byte("spdm transcript bytes"))
		require.NoError(t, err)
		require.Len(t, digest, c.size)
		require.Equal(t, c.size, a.HashSize(c.algo))
	}
}

func TestHashUnknownAlgoErrors(t *testing.T) {
	a := New()
	_, err := a.Hash(wire.HashNone, []byte("x"))
	require.Error(t, err)
}

func TestNewRunningProducesEquivalentDigest(t *testing.T) {
	a := New()
	data := []byte("running hash parity check")

	oneShot, err := a.Hash(wire.HashSHA256, data)
	require.NoError(t, err)

	running, err := a.NewRunning(wire.HashSHA256)
	require.NoError(t, err)
	_, err = running.Write(data)
	require.NoError(t, err)
	require.Equal(t, oneShot, running.Sum(nil))
}

func TestAEADSealOpenRoundTrip(t *testing.T) {
	a := New()
	for _, suite := range []wire.AEADSuite{wire.AEADAES256GCM, wire.AEADChaCha20Poly1305} {
		key := make([]byte, a.KeySize(suite))
		iv := make([]byte, a.IVSize(suite))
		_, _ = rand.Read(key)
		_, _ = rand.Read(iv)
		aad := []byte("session-id||seq||len")
		pt := []byte("GET_DIGESTS inside a secured session")

		ct, tag, err := a.Seal(suite, key, iv, aad, pt)
		require.NoError(t, err)
		require.Len(t, tag, a.TagSize(suite))

		got, err := a.Open(suite, key, iv, aad, ct, tag)
		require.NoError(t, err)
		require.Equal(t, pt, got)
	}
}

func TestAEADOpenRejectsTamperedTag(t *testing.T) {
	a := New()
	key := make([]byte, a.KeySize(wire.AEADAES256GCM))
	iv := make([]byte, a.IVSize(wire.AEADAES256GCM))
	ct, tag, err := a.Seal(wire.AEADAES256GCM, key, iv, []byte("aad"), []byte("plaintext"))
	require.NoError(t, err)

	tampered := append([]byte{}, tag...)
	tampered[0] ^= 0xFF
	_, err = a.Open(wire.AEADAES256GCM, key, iv, []byte("aad"), ct, tampered)
	require.Error(t, err)
}

func TestAEADOpenRejectsWrongAAD(t *testing.T) {
	a := New()
	key := make([]byte, a.KeySize(wire.AEADChaCha20Poly1305))
	iv := make([]byte, a.IVSize(wire.AEADChaCha20Poly1305))
	ct, tag, err := a.Seal(wire.AEADChaCha20Poly1305, key, iv, []byte("aad-1"), []byte("plaintext"))
	require.NoError(t, err)

	_, err = a.Open(wire.AEADChaCha20Poly1305, key, iv, []byte("aad-2"), ct, tag)
	require.Error(t, err)
}

func TestHKDFExtractExpandDeterministic(t *testing.T) {
	a := New()
	ikm := bytes.Repeat([]byte{0x01}, 32)
	salt := make([]byte, 32)

	prk1, err := a.Extract(wire.HashSHA256, salt, ikm)
	require.NoError(t, err)
	prk2, err := a.Extract(wire.HashSHA256, salt, ikm)
	require.NoError(t, err)
	require.Equal(t, prk1, prk2)

	okm1, err := a.Expand(wire.HashSHA256, prk1, []byte("req hs data"), 32)
	require.NoError(t, err)
	okm2, err := a.Expand(wire.HashSHA256, prk1, []byte("rsp hs data"), 32)
	require.NoError(t, err)
	require.Len(t, okm1, 32)
	require.NotEqual(t, okm1, okm2, "distinct labels must derive distinct secrets")
}

func TestHMACVerifiesFinishTag(t *testing.T) {
	a := New()
	key := bytes.Repeat([]byte{0x02}, 32)
	th := []byte("message_a||message_b||message_k")

	mac1, err := a.HMAC(wire.HashSHA384, key, th)
	require.NoError(t, err)
	mac2, err := a.HMAC(wire.HashSHA384, key, th)
	require.NoError(t, err)
	require.Equal(t, mac1, mac2)
	require.Len(t, mac1, 48)
}

func TestDHERoundTrip(t *testing.T) {
	a := New()
	for _, group := range []wire.DHEGroup{wire.DHEX25519, wire.DHEP256, wire.DHEP384} {
		reqPub, reqPriv, err := a.GenerateEphemeral(group)
		require.NoError(t, err)
		rspPub, rspPriv, err := a.GenerateEphemeral(group)
		require.NoError(t, err)
		require.Len(t, reqPub, a.PublicKeySize(group))

		reqSecret, err := a.ComputeShared(group, rspPub, reqPriv)
		require.NoError(t, err)
		rspSecret, err := a.ComputeShared(group, reqPub, rspPriv)
		require.NoError(t, err)
		require.Equal(t, reqSecret, rspSecret)
	}
}
