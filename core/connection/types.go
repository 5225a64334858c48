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

// Package connection holds the Requester's per-connection state: the
// monotonic connection_state machine, negotiated algorithms, cached
// certificate slots, and the transcript/session collaborators every
// protocol handler in core/handshake operates on. It depends on nothing in
// core/handshake, so the two packages never form an import cycle.
package connection

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sage-x-project/spdm-requester/config"
	"github.com/sage-x-project/spdm-requester/core/session"
	"github.com/sage-x-project/spdm-requester/core/transcript"
	"github.com/sage-x-project/spdm-requester/cryptoadapter"
	"github.com/sage-x-project/spdm-requester/internal/logger"
	"github.com/sage-x-project/spdm-requester/spdmerr"
	"github.com/sage-x-project/spdm-requester/transport"
	"github.com/sage-x-project/spdm-requester/wire"
)

// State is the connection_state machine spec.md section 3 defines. Every
// handler checks its own minimum State before touching the wire, and
// advances State only after its response has been fully validated.
type State int

const (
	StateNotStarted State = iota
	StateAfterVersion
	StateAfterCapabilities
	StateNegotiated
	StateAfterDigests
	StateAfterCertificate
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAfterVersion:
		return "after_version"
	case StateAfterCapabilities:
		return "after_capabilities"
	case StateNegotiated:
		return "negotiated"
	case StateAfterDigests:
		return "after_digests"
	case StateAfterCertificate:
		return "after_certificate"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// SlotRef is the sum type for a certificate slot reference: a real slot
// index 0..7, or the sentinel meaning "use the provisioned raw public key,
// no certificate chain" (param1 == 0xFF on CHALLENGE/KEY_EXCHANGE).
// It is a thin alias over wire.SlotOrProvisioned so the wire encoding and
// the connection-level bookkeeping never drift apart.
type SlotRef = wire.SlotOrProvisioned

var (
	// Slot builds a reference to a real certificate slot.
	Slot = wire.Slot
	// ProvisionedKeySlot builds a reference to the provisioned raw public key.
	ProvisionedKeySlot = wire.ProvisionedKeySlot
)

// NegotiatedAlgorithms is the Responder's one-per-category selection from
// NEGOTIATE_ALGORITHMS/ALGORITHMS, cached for every later handler to read.
type NegotiatedAlgorithms struct {
	MeasurementSpec wire.MeasurementSpec
	MeasurementHash wire.HashAlgo
	BaseHash        wire.HashAlgo
	BaseAsym        wire.AsymAlgo
	ReqBaseAsym     wire.AsymAlgo
	DHEGroup        wire.DHEGroup
	AEADSuite       wire.AEADSuite
	KeySchedule     wire.KeySchedule
}

// CertSlot caches one reassembled certificate chain slot together with its
// full-chain digest (the value DIGESTS advertises and CHALLENGE_AUTH
// echoes), so GET_CERTIFICATE can be skipped on a cache hit (spec.md 4.6's
// cache_cap fast path).
type CertSlot struct {
	Digest []byte // hash of Chain under the negotiated base_hash
	Chain  []byte // full DER chain, CertChainHeader included
}

// Connection is the single-actor boundary for one Requester-to-Responder
// conversation: every protocol handler takes a *Connection and mutates it
// under Mu, mirroring the teacher's core/session.Manager RWMutex discipline
// applied here to a single connection instead of a session table.
type Connection struct {
	Mu sync.Mutex

	Transport transport.Transport
	Adapter   cryptoadapter.Adapter
	Cfg       *config.Config
	Log       logger.Logger

	State State

	Version           wire.Version
	LocalCapabilities wire.CapabilityFlags
	PeerCapabilities  wire.CapabilityFlags

	Algo NegotiatedAlgorithms

	// PeerCertSlots caches the peer's certificate chain per slot index,
	// populated lazily by GetCertificate and consulted by Challenge.
	PeerCertSlots [8]*CertSlot
	// PeerDigests holds the raw digests the peer returned for each set bit
	// of the last DIGESTS response's slot mask.
	PeerDigests map[uint8][]byte

	// LocalPrivateKey and LocalCertChain back mutual authentication: this
	// Requester's own signing key and certificate chain, presented when the
	// Responder challenges it back during the encapsulated flow.
	LocalPrivateKey any
	LocalCertChain  []byte

	// PeerProvisionedPublicKey is the peer's raw public key, provisioned
	// out-of-band, used for CHALLENGE/KEY_EXCHANGE signature verification
	// when the slot reference is the 0xFF provisioned-key sentinel instead
	// of a certificate chain slot.
	PeerProvisionedPublicKey any

	// PeerRootCertProvision holds the trust anchors (DER certificates,
	// provisioned by the host at init) a reassembled GET_CERTIFICATE chain
	// must validate against: the chain header's root hash must match one of
	// them, and the chain must X.509-verify up to it. Empty means the
	// embedder pins the peer by digest alone (the DIGESTS cross-check).
	PeerRootCertProvision [][]byte

	Transcript *transcript.Manager
	Sessions  *session.Store

	// activeSessionID, when non-zero, routes ordinary request/response
	// handlers (e.g. a post-handshake GET_MEASUREMENTS) through the secured
	// message layer instead of cleartext framing.
	activeSessionID uint32

	// negotiate collapses concurrent callers of EnsureNegotiated down to one
	// in-flight handshake, per spec.md 5's single-actor rule -- multiple
	// goroutines asking the same Connection to negotiate must not each
	// drive their own VERSION/CAPABILITIES/ALGORITHMS exchange.
	negotiate singleflight.Group
}

// New creates a Connection ready to run GetVersion as its first operation.
func New(t transport.Transport, adapter cryptoadapter.Adapter, cfg *config.Config, log logger.Logger, mode transcript.Mode) *Connection {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Connection{
		Transport:   t,
		Adapter:     adapter,
		Cfg:         cfg,
		Log:         log,
		State:       StateNotStarted,
		PeerDigests: make(map[uint8][]byte),
		Transcript:  transcript.NewManager(mode, nil),
		Sessions:    session.NewStore(),
	}
}

// RequireState returns UNEXPECTED_REQUEST-shaped INVALID_STATE_LOCAL if the
// connection hasn't reached at least min yet -- the precondition gate every
// handler runs before it touches the wire.
func (c *Connection) RequireState(op string, min State) error {
	if c.State < min {
		return spdmerr.New(op, spdmerr.CodeInvalidStateLocal)
	}
	return nil
}

// RequireCapability returns UNSUPPORTED_CAP if the peer never advertised
// cap, again checked before any wire I/O per spec.md 4.7.
func (c *Connection) RequireCapability(op string, cap wire.CapabilityFlags) error {
	if !c.PeerCapabilities.Has(cap) {
		return spdmerr.New(op, spdmerr.CodeUnsupportedCap)
	}
	return nil
}

// Advance moves the connection to next, refusing to move backward -- the
// monotonic discipline spec.md 3's connection_state invariant requires.
func (c *Connection) Advance(next State) {
	if next > c.State {
		c.State = next
	}
}

// Reset returns the connection to StateNotStarted and clears every cached
// negotiation artifact and transcript stream, as REQUEST_RESYNCH or a fresh
// GET_VERSION redo requires.
func (c *Connection) Reset() {
	c.State = StateNotStarted
	c.Version = 0
	c.LocalCapabilities = 0
	c.PeerCapabilities = 0
	c.Algo = NegotiatedAlgorithms{}
	for i := range c.PeerCertSlots {
		c.PeerCertSlots[i] = nil
	}
	c.PeerDigests = make(map[uint8][]byte)
	c.Transcript.ResetAll()
	c.Sessions.CloseAll()
	c.activeSessionID = 0
}

// BindSession routes subsequent handler calls through the secured message
// layer for sessionID. Passing 0 returns to cleartext framing.
func (c *Connection) BindSession(sessionID uint32) {
	c.activeSessionID = sessionID
}

// ActiveSession returns the currently bound session, if any.
func (c *Connection) ActiveSession() (*session.Session, bool) {
	if c.activeSessionID == 0 {
		return nil, false
	}
	return c.Sessions.Find(c.activeSessionID)
}

// EnsureNegotiated runs drive (expected to carry the connection through
// VERSION/CAPABILITIES/ALGORITHMS) at most once even if multiple goroutines
// call EnsureNegotiated concurrently on the same Connection -- singleflight
// collapses the racing callers onto a single in-flight handshake, handing
// every caller the one attempt's result. A no-op once the connection has
// already reached StateNegotiated.
func (c *Connection) EnsureNegotiated(ctx context.Context, drive func(context.Context) error) error {
	if c.State >= StateNegotiated {
		return nil
	}
	_, err, _ := c.negotiate.Do("negotiate", func() (any, error) {
		if c.State >= StateNegotiated {
			return nil, nil
		}
		return nil, drive(ctx)
	})
	return err
}
