// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"crypto/sha256"

	"github.com/sage-x-project/spdm-requester/core/handshake"
	"github.com/sage-x-project/spdm-requester/transport"
	"github.com/sage-x-project/spdm-requester/wire"
)

// runFakeResponder answers the VERSION/CAPABILITIES/ALGORITHMS/DIGESTS
// sequence the demo drives, standing in for real Responder hardware. It is
// not part of the Requester engine -- spec.md section 1 scopes the
// Responder role out of this module entirely -- and exists only so the
// demo command has someone to talk to on the wire.
func runFakeResponder(ctx context.Context, ep transport.Transport, version wire.Version, firmware []byte) error {
	if _, err := recvHeader(ctx, ep); err != nil {
		return err
	}
	verResp, err := wire.EncodeVersionResponse(wire.VersionResponse{
		Header:       wire.Header{SPDMVersion: wire.Version10, RequestResponseCode: wire.CodeVersion},
		VersionCount: 1,
		Entries:      []wire.VersionEntry{{Raw: uint16(version) << 8}},
	})
	if err != nil {
		return err
	}
	if err := ep.Send(ctx, verResp); err != nil {
		return err
	}

	if _, err := recvHeader(ctx, ep); err != nil {
		return err
	}
	capResp, err := wire.EncodeCapabilitiesResponse(wire.CapabilitiesResponse{
		Header:           wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeCapabilities},
		Flags:            handshake.DefaultCapabilities,
		DataTransferSize: 4096,
		MaxSPDMMsgSize:   4096,
	})
	if err != nil {
		return err
	}
	if err := ep.Send(ctx, capResp); err != nil {
		return err
	}

	if _, err := recvHeader(ctx, ep); err != nil {
		return err
	}
	algResp, err := wire.EncodeAlgorithmsResponse(wire.AlgorithmsResponse{
		Header:          wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeAlgorithms},
		MeasurementSpec: wire.MeasurementSpecDMTF,
		MeasurementHash: wire.HashSHA256,
		BaseAsymSel:     wire.AsymEdDSA25519,
		BaseHashSel:     wire.HashSHA256,
		DHEGroupSel:     wire.DHEX25519,
		AEADSuiteSel:    wire.AEADAES256GCM,
		ReqBaseAsymSel:  wire.AsymEdDSA25519,
		KeyScheduleSel:  wire.KeyScheduleHKDF,
	})
	if err != nil {
		return err
	}
	if err := ep.Send(ctx, algResp); err != nil {
		return err
	}

	if _, err := recvHeader(ctx, ep); err != nil {
		return err
	}
	digest := sha256.Sum256(firmware)
	digResp, err := wire.EncodeDigestsResponse(wire.DigestsResponse{
		Header:  wire.Header{SPDMVersion: version, RequestResponseCode: wire.CodeDigests, Param2: wire.SlotBit(0)},
		Digests: [][]byte{digest[:]},
	})
	if err != nil {
		return err
	}
	return ep.Send(ctx, digResp)
}

func recvHeader(ctx context.Context, ep transport.Transport) (wire.Header, error) {
	req, err := ep.Receive(ctx)
	if err != nil {
		return wire.Header{}, err
	}
	return wire.DecodeHeader(req)
}
