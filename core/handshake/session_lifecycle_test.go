// SPDX-License-Identifier: LGPL-3.0-or-later

package handshake

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/curve25519"

	"github.com/sage-x-project/spdm-requester/core/connection"
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/cryptoadapter"
	"github.com/sage-x-project/spdm-requester/cryptoadapter/algorithms"
	"github.com/sage-x-project/spdm-requester/transport/loopback"
	"github.com/sage-x-project/spdm-requester/wire"
)

// scriptedResponder plays the Responder half of a session handshake over a
// loopback endpoint, doing the real DHE/HKDF/AEAD work so the Requester's
// verification paths are exercised for real rather than stubbed.
type scriptedResponder struct {
	t       *testing.T
	ep      *loopback.Endpoint
	adapter cryptoadapter.Adapter
	signKey ed25519.PrivateKey
	version wire.Version
	hash    wire.HashAlgo
	aead    wire.AEADSuite

	sess     *session.Session
	messageK []byte
	messageF []byte
}

const rspSessionIDHalf = uint16(0x9999)

// serveKeyExchange answers one KEY_EXCHANGE with a signed, HMAC'd
// KEY_EXCHANGE_RSP and derives the same traffic secrets the Requester will.
func (r *scriptedResponder) serveKeyExchange(ctx context.Context) {
	reqBuf, err := r.ep.Receive(ctx)
	require.NoError(r.t, err)
	hdr, err := wire.DecodeHeader(reqBuf)
	require.NoError(r.t, err)
	require.Equal(r.t, wire.CodeKeyExchange, hdr.RequestResponseCode)

	reqSessionID := binary.LittleEndian.Uint16(reqBuf[4:6])
	peerPub := reqBuf[wire.HeaderSize+4+wire.NonceSize : wire.HeaderSize+4+wire.NonceSize+32]

	var dhePriv [32]byte
	_, err = rand.Read(dhePriv[:])
	require.NoError(r.t, err)
	dhePub, err := curve25519.X25519(dhePriv[:], curve25519.Basepoint)
	require.NoError(r.t, err)
	shared, err := curve25519.X25519(dhePriv[:], peerPub)
	require.NoError(r.t, err)

	resp := wire.KeyExchangeRspResponse{
		Header: wire.Header{
			SPDMVersion:         r.version,
			RequestResponseCode: wire.CodeKeyExchangeRsp,
		},
		RspSessionID: rspSessionIDHalf,
		ExchangeData: dhePub,
	}
	_, err = rand.Read(resp.RandomData[:])
	require.NoError(r.t, err)

	sigInput := append(append([]byte{}, reqBuf...), resp.BytesBeforeSignature()...)
	resp.Signature = ed25519.Sign(r.signKey, sigInput)
	th1Input := append(append([]byte{}, sigInput...), resp.Signature...)
	th1, err := r.adapter.Hash(r.hash, th1Input)
	require.NoError(r.t, err)

	params := session.Params{
		SessionID:      uint32(reqSessionID) | uint32(rspSessionIDHalf)<<16,
		HashAlgo:       r.hash,
		AEADSuite:      r.aead,
		SharedSecret:   shared,
		TranscriptHash: th1,
	}
	reqSecret, rspSecret, err := session.DeriveTrafficSecrets(r.adapter, params)
	require.NoError(r.t, err)
	r.sess = session.New(r.adapter, params, reqSecret, rspSecret)

	verify, err := r.sess.FinishedVerifyData(session.DirectionResponse, th1Input)
	require.NoError(r.t, err)

	wireResp := append(resp.BytesBeforeVerifyData(), verify...)
	require.NoError(r.t, r.ep.Send(ctx, wireResp))
	r.messageK = append(append([]byte{}, reqBuf...), wireResp...)
}

// serveFinish checks the Requester's verify_data against its own
// derivation, answers with the response-direction MAC, and establishes the
// responder-side session.
func (r *scriptedResponder) serveFinish(ctx context.Context) {
	reqBuf, err := r.ep.Receive(ctx)
	require.NoError(r.t, err)
	hdr, err := wire.DecodeHeader(reqBuf)
	require.NoError(r.t, err)
	require.Equal(r.t, wire.CodeFinish, hdr.RequestResponseCode)

	thBefore := append(append([]byte{}, r.messageK...), reqBuf[:wire.HeaderSize]...)
	wantVerify, err := r.sess.FinishedVerifyData(session.DirectionRequest, thBefore)
	require.NoError(r.t, err)
	require.Equal(r.t, wantVerify, reqBuf[wire.HeaderSize:])

	thRsp := append(append([]byte{}, thBefore...), wantVerify...)
	rspVerify, err := r.sess.FinishedVerifyData(session.DirectionResponse, thRsp)
	require.NoError(r.t, err)

	respBuf := make([]byte, wire.HeaderSize+len(rspVerify))
	rspHdr := wire.Header{SPDMVersion: r.version, RequestResponseCode: wire.CodeFinishRsp}
	require.NoError(r.t, rspHdr.Encode(respBuf))
	copy(respBuf[wire.HeaderSize:], rspVerify)
	require.NoError(r.t, r.ep.Send(ctx, respBuf))

	r.messageF = append(append([]byte{}, reqBuf...), respBuf...)
	r.sess.Establish()
}

// openSecured receives one secured record and returns the SPDM plaintext.
func (r *scriptedResponder) openSecured(ctx context.Context) []byte {
	raw, err := r.ep.Receive(ctx)
	require.NoError(r.t, err)
	rec, err := wire.DecodeSecuredMessageRecord(raw, r.adapter.IVSize(r.aead), r.adapter.TagSize(r.aead))
	require.NoError(r.t, err)
	pt, err := r.sess.Open(session.DirectionRequest, rec)
	require.NoError(r.t, err)
	return pt
}

// sendSecured seals plaintext in the response direction and sends it.
func (r *scriptedResponder) sendSecured(ctx context.Context, plaintext []byte) {
	rec, err := r.sess.Seal(session.DirectionResponse, plaintext)
	require.NoError(r.t, err)
	buf, err := rec.Encode()
	require.NoError(r.t, err)
	require.NoError(r.t, r.ep.Send(ctx, buf))
}

func (r *scriptedResponder) sendSecuredHeader(ctx context.Context, code wire.RequestResponseCode, param1, param2 byte) {
	buf := make([]byte, wire.HeaderSize)
	hdr := wire.Header{SPDMVersion: r.version, RequestResponseCode: code, Param1: param1, Param2: param2}
	require.NoError(r.t, hdr.Encode(buf))
	r.sendSecured(ctx, buf)
}

// TestSessionLifecycle drives KEY_EXCHANGE through END_SESSION against a
// responder doing real crypto: establish, run an encrypted GET_DIGESTS
// (slot 7, SHA-384, AES-256-GCM -- spec.md section 8 scenario 6), rotate
// keys, heartbeat, and tear down. Along the way it asserts transcript
// symmetry for message_k and message_f.
func TestSessionLifecycle(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	requesterEP, responderEP := loopback.NewPair()
	adapter := algorithms.New()

	c := newTestConnection(requesterEP)
	c.State = connection.StateNegotiated
	c.PeerCapabilities = wire.CapCertCap | wire.CapKeyExCap | wire.CapEncryptCap |
		wire.CapMacCap | wire.CapHBeatCap | wire.CapKeyUpdCap
	c.Algo.BaseHash = wire.HashSHA384
	c.Algo.BaseAsym = wire.AsymEdDSA25519
	c.Algo.DHEGroup = wire.DHEX25519
	c.Algo.AEADSuite = wire.AEADAES256GCM
	c.Algo.KeySchedule = wire.KeyScheduleHKDF
	c.PeerProvisionedPublicKey = pub

	responder := &scriptedResponder{
		t:       t,
		ep:      responderEP,
		adapter: adapter,
		signKey: priv,
		version: wire.Version11,
		hash:    wire.HashSHA384,
		aead:    wire.AEADAES256GCM,
	}

	hashSize := wire.HashSHA384.HashSize()
	slotDigest := make([]byte, hashSize)
	for i := range slotDigest {
		slotDigest[i] = 0x77
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()

		responder.serveKeyExchange(ctx)
		responder.serveFinish(ctx)

		// Encrypted GET_DIGESTS: slot mask with only bit 7 set.
		req := responder.openSecured(ctx)
		hdr, err := wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeGetDigests, hdr.RequestResponseCode)
		resp, err := wire.EncodeDigestsResponse(wire.DigestsResponse{
			Header:  wire.Header{SPDMVersion: responder.version, RequestResponseCode: wire.CodeDigests, Param2: wire.SlotBit(7)},
			Digests: [][]byte{slotDigest},
		})
		require.NoError(t, err)
		responder.sendSecured(ctx, resp)

		// KEY_UPDATE: ack each step, applying the request-direction update
		// after acknowledging UPDATE_KEY so the next record decrypts.
		for i := 0; i < 3; i++ {
			req := responder.openSecured(ctx)
			hdr, err := wire.DecodeHeader(req)
			require.NoError(t, err)
			require.Equal(t, wire.CodeKeyUpdate, hdr.RequestResponseCode)
			responder.sendSecuredHeader(ctx, wire.CodeKeyUpdateAck, hdr.Param1, hdr.Param2)
			if wire.KeyUpdateOperation(hdr.Param1) == wire.KeyUpdateOperationUpdateKey {
				require.NoError(t, responder.sess.UpdateKey(session.DirectionRequest))
			}
		}

		// HEARTBEAT.
		req = responder.openSecured(ctx)
		hdr, err = wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeHeartbeat, hdr.RequestResponseCode)
		responder.sendSecuredHeader(ctx, wire.CodeHeartbeatAck, 0, 0)

		// END_SESSION.
		req = responder.openSecured(ctx)
		hdr, err = wire.DecodeHeader(req)
		require.NoError(t, err)
		require.Equal(t, wire.CodeEndSession, hdr.RequestResponseCode)
		responder.sendSecuredHeader(ctx, wire.CodeEndSessionAck, 0, 0)
	}()

	ctx := context.Background()

	sessionID, err := KeyExchange(ctx, c, connection.ProvisionedKeySlot(), 0)
	require.NoError(t, err)
	require.Equal(t, uint32(rspSessionIDHalf)<<16, sessionID&0xFFFF0000)
	sess, ok := c.Sessions.Find(sessionID)
	require.True(t, ok)
	require.Equal(t, session.StateHandshaking, sess.State)

	require.NoError(t, Finish(ctx, c, sessionID, false, connection.ProvisionedKeySlot()))
	require.Equal(t, session.StateEstablished, sess.State)

	// Transcript symmetry: both ends accumulated identical message_k and
	// message_f bytes.
	mk, err := c.Transcript.Get(transcript.StreamK)
	require.NoError(t, err)
	mf, err := c.Transcript.Get(transcript.StreamF)
	require.NoError(t, err)

	require.NoError(t, GetDigests(ctx, c))
	require.Contains(t, c.PeerDigests, uint8(7))
	require.Equal(t, slotDigest, c.PeerDigests[7])
	require.Len(t, c.PeerDigests, 1)

	require.NoError(t, KeyUpdate(ctx, c, sessionID))
	require.NoError(t, Heartbeat(ctx, c, sessionID))

	require.NoError(t, EndSession(ctx, c, sessionID, true))
	<-done

	require.Equal(t, responder.messageK, mk)
	require.Equal(t, responder.messageF, mf)
	require.Equal(t, 0, c.Sessions.Count())
	_, ok = c.ActiveSession()
	require.False(t, ok)
}
