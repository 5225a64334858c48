// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

// testCertChain builds a well-formed cert_chain buffer: CertChainHeader
// (length, reserved, 32-byte root hash) followed by an opaque body standing
// in for the DER certificates.
func testCertChain(bodyLen int) []byte {
	body := make([]byte, bodyLen)
	for i := range body {
		body[i] = byte(i)
	}
	rootHash := sha256.Sum256(body)
	hdr := wire.EncodeCertChainHeader(wire.CertChainHeader{
		Length:   uint16(4 + len(rootHash) + bodyLen),
		RootHash: rootHash[:],
	})
	return append(hdr, body...)
}

// serveCertificateChunks answers GET_CERTIFICATE requests with chain split
// into chunkSize pieces until the whole chain has been sent.
func serveCertificateChunks(t *testing.T, responderEP interface {
	Receive(context.Context) ([]byte, error)
	Send(context.Context, []byte) error
}, version wire.Version, chain []byte, chunkSize int) {
	t.Helper()
	ctx := context.Background()
	sent := 0
	for sent < len(chain) {
		req, err := responderEP.Receive(ctx)
		require.NoError(t, err)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetCertificate, hdr.RequestResponseCode)

		end := sent + chunkSize
		if end > len(chain) {
			end = len(chain)
		}
		resp, err := wire.EncodeCertificateResponse(wire.CertificateResponse{
			Header:          wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeCertificate, Param1: hdr.Param1},
			RemainderLength: uint16(len(chain) - end),
			CertChain:       chain[sent:end],
		})
		require.NoError(t, err)
		require.NoError(t, responderEP.Send(ctx, resp))
		sent = end
	}
}

func TestGetCertificateReassemblesChunks(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterDigests

	chain := testCertChain(64)
	digest := sha256.Sum256(chain)
	c.PeerDigests[0] = digest[:]

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveCertificateChunks(t, responderEP, wire.Version11, chain, 40)
	}()

	err := GetCertificate(context.Background(), c, 0)
	<-done
	require.NoError(t, err)
	require.NotNil(t, c.PeerCertSlots[0])
	require.Equal(t, chain, c.PeerCertSlots[0].Chain)
	require.Equal(t, digest[:], c.PeerCertSlots[0].Digest)
	require.Equal(t, connection.StateAfterCertificate, c.State)
}

func TestGetCertificateDigestMismatch(t *testing.T) {
	requesterEP, responderEP := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterDigests

	chain := testCertChain(64)
	wrong := sha256.Sum256([]byte("some other chain"))
	c.PeerDigests[0] = wrong[:]

	go serveCertificateChunks(t, responderEP, wire.Version11, chain, 64)

	err := GetCertificate(context.Background(), c, 0)
	require.Error(t, err)
	code, ok := spdmerr.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, spdmerr.CodeVerifyCertFail, code)
	require.Nil(t, c.PeerCertSlots[0])
}

func TestGetCertificateRejectsBadSlot(t *testing.T) {
	requesterEP, _ := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterDigests

	err := GetCertificate(context.Background(), c, 8)
	require.Error(t, err)
	code, _ := spdmerr.CodeOf(err)
	require.Equal(t, spdmerr.CodeInvalidMsgField, code)
}

// makeTestCA self-signs an Ed25519 CA certificate usable as a trust anchor.
func makeTestCA(t *testing.T, cn string) (*x509.Certificate, ed25519.PrivateKey, []byte) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, priv.Public(), priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert, priv, der
}

// makeLeaf issues an Ed25519 end-entity certificate under ca.
func makeLeaf(t *testing.T, ca *x509.Certificate, caKey ed25519.PrivateKey) []byte {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "spdm test device"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, pub, caKey)
	require.NoError(t, err)
	return der
}

// chainWithRootHash assembles a cert_chain buffer whose header advertises
// rootHash over the given DER certificates.
func chainWithRootHash(rootHash []byte, certs ...[]byte) []byte {
	var body []byte
	for _, der := range certs {
		body = append(body, der...)
	}
	hdr := wire.EncodeCertChainHeader(wire.CertChainHeader{
		Length:   uint16(4 + len(rootHash) + len(body)),
		RootHash: rootHash,
	})
	return append(hdr, body...)
}

// TestGetCertificateValidatesAgainstProvisionedRoot: with a trust anchor
// provisioned, a chain rooted in it passes; a chain whose root hash matches
// no provisioned anchor, or whose leaf does not verify up to the matched
// anchor, fails VERIFY_CERT_FAIL.
func TestGetCertificateValidatesAgainstProvisionedRoot(t *testing.T) {
	ca, caKey, caDER := makeTestCA(t, "spdm test root")
	leafDER := makeLeaf(t, ca, caKey)
	caDigest := sha256.Sum256(caDER)

	t.Run("chain rooted in provisioned anchor", func(t *testing.T) {
		requesterEP, responderEP := loopback.NewPair()
		c := newTestConnection(requesterEP)
		c.State = connection.StateAfterDigests
		c.PeerRootCertProvision = [][]byte{caDER}

		chain := chainWithRootHash(caDigest[:], caDER, leafDER)
		done := make(chan struct{})
		go func() {
			defer close(done)
			serveCertificateChunks(t, responderEP, wire.Version11, chain, 256)
		}()

		err := GetCertificate(context.Background(), c, 0)
		<-done
		require.NoError(t, err)
		require.NotNil(t, c.PeerCertSlots[0])
	})

	t.Run("root hash matches no provisioned anchor", func(t *testing.T) {
		_, _, otherDER := makeTestCA(t, "some other root")
		requesterEP, responderEP := loopback.NewPair()
		c := newTestConnection(requesterEP)
		c.State = connection.StateAfterDigests
		c.PeerRootCertProvision = [][]byte{otherDER}

		chain := chainWithRootHash(caDigest[:], caDER, leafDER)
		go serveCertificateChunks(t, responderEP, wire.Version11, chain, 256)

		err := GetCertificate(context.Background(), c, 0)
		require.Error(t, err)
		code, _ := spdmerr.CodeOf(err)
		require.Equal(t, spdmerr.CodeVerifyCertFail, code)
		require.Nil(t, c.PeerCertSlots[0])
	})

	t.Run("leaf signed by a different authority", func(t *testing.T) {
		rogueCA, rogueKey, _ := makeTestCA(t, "rogue root")
		rogueLeafDER := makeLeaf(t, rogueCA, rogueKey)

		requesterEP, responderEP := loopback.NewPair()
		c := newTestConnection(requesterEP)
		c.State = connection.StateAfterDigests
		c.PeerRootCertProvision = [][]byte{caDER}

		// The header names the provisioned anchor, but the leaf chains to
		// nobody the anchor vouches for.
		chain := chainWithRootHash(caDigest[:], caDER, rogueLeafDER)
		go serveCertificateChunks(t, responderEP, wire.Version11, chain, 256)

		err := GetCertificate(context.Background(), c, 0)
		require.Error(t, err)
		code, _ := spdmerr.CodeOf(err)
		require.Equal(t, spdmerr.CodeVerifyCertFail, code)
	})
}

func TestGetCertificateCacheHitSkipsWire(t *testing.T) {
	requesterEP, _ := loopback.NewPair()
	c := newTestConnection(requesterEP)
	c.State = connection.StateAfterCertificate
	c.PeerCertSlots[3] = &connection.CertSlot{Digest: []byte{1}, Chain: []byte{2}}

	// No responder goroutine: a wire exchange here would block forever.
	require.NoError(t, GetCertificate(context.Background(), c, 3))
}
