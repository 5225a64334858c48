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

// Package wire encodes and decodes DSP0274 SPDM message structs: fixed
// headers, variable-length trailers, and the little-endian length-field
// bounds checking every message requires.
package wire

import (
	"encoding/binary"

	"github.com/sage-x-project/spdm-requester/spdmerr"
)

// Version identifies a negotiated SPDM protocol version (10, 11, 12, 13).
type Version uint8

const (
	Version10 Version = 0x10
	Version11 Version = 0x11
	Version12 Version = 0x12
	Version13 Version = 0x13
)

// RequestResponseCode is the DSP0274 opcode byte.
type RequestResponseCode uint8

const (
	CodeDigests              RequestResponseCode = 0x01
	CodeCertificate          RequestResponseCode = 0x02
	CodeChallengeAuth        RequestResponseCode = 0x03
	CodeVersion              RequestResponseCode = 0x04
	CodeMeasurements         RequestResponseCode = 0x60
	CodeCapabilities         RequestResponseCode = 0x61
	CodeAlgorithms           RequestResponseCode = 0x63
	CodeKeyExchangeRsp       RequestResponseCode = 0x64
	CodeFinishRsp            RequestResponseCode = 0x65
	CodePSKExchangeRsp       RequestResponseCode = 0x66
	CodePSKFinishRsp         RequestResponseCode = 0x67
	CodeHeartbeatAck         RequestResponseCode = 0x68
	CodeKeyUpdateAck         RequestResponseCode = 0x69
	CodeEncapsulatedRequest  RequestResponseCode = 0x6A
	CodeEncapsulatedResponse RequestResponseCode = 0x6C
	CodeEndSessionAck        RequestResponseCode = 0x6D
	CodeCSR                  RequestResponseCode = 0x6E
	CodeSetCertificateRsp    RequestResponseCode = 0x6F
	CodeError                RequestResponseCode = 0x7F
	CodeChunkSendAck         RequestResponseCode = 0x05
	CodeChunkResponse        RequestResponseCode = 0x06

	CodeGetDigests           RequestResponseCode = 0x81
	CodeGetCertificate       RequestResponseCode = 0x82
	CodeChallenge            RequestResponseCode = 0x83
	CodeGetVersion           RequestResponseCode = 0x84
	CodeGetMeasurements      RequestResponseCode = 0xE0
	CodeGetCapabilities      RequestResponseCode = 0xE1
	CodeNegotiateAlgorithms  RequestResponseCode = 0xE3
	CodeKeyExchange          RequestResponseCode = 0xE4
	CodeFinish               RequestResponseCode = 0xE5
	CodePSKExchange          RequestResponseCode = 0xE6
	CodePSKFinish            RequestResponseCode = 0xE7
	CodeHeartbeat            RequestResponseCode = 0xE8
	CodeKeyUpdate            RequestResponseCode = 0xE9
	CodeGetEncapsulatedReq   RequestResponseCode = 0xEA
	CodeDeliverEncapsulatedR RequestResponseCode = 0xEB
	CodeEndSession           RequestResponseCode = 0xEC
	CodeGetCSR               RequestResponseCode = 0xEE
	CodeSetCertificate       RequestResponseCode = 0xEF
	CodeChunkSend            RequestResponseCode = 0xF0
	CodeChunkGet             RequestResponseCode = 0xF1
	CodeRespondIfReady       RequestResponseCode = 0xFF
)

// HeaderSize is the fixed four-byte SPDM message header.
const HeaderSize = 4

// Header is the fixed portion present on every SPDM message.
type Header struct {
	SPDMVersion         Version
	RequestResponseCode RequestResponseCode
	Param1              byte
	Param2              byte
}

// Encode writes the four-byte header to buf, which must be at least HeaderSize long.
func (h Header) Encode(buf []byte) error {
	if len(buf) < HeaderSize {
		return spdmerr.New("wire.Header.Encode", spdmerr.CodeBufferTooSmall)
	}
	buf[0] = byte(h.SPDMVersion)
	buf[1] = byte(h.RequestResponseCode)
	buf[2] = h.Param1
	buf[3] = h.Param2
	return nil
}

// DecodeHeader reads the fixed header from buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, spdmerr.New("wire.DecodeHeader", spdmerr.CodeInvalidMsgSize)
	}
	return Header{
		SPDMVersion:         Version(buf[0]),
		RequestResponseCode: RequestResponseCode(buf[1]),
		Param1:              buf[2],
		Param2:              buf[3],
	}, nil
}

// little-endian helpers shared by every message encoder/decoder below.

func putUint16(buf []byte, v uint16) { binary.LittleEndian.PutUint16(buf, v) }
func putUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }
func putUint64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

func getUint16(buf []byte) uint16 { return binary.LittleEndian.Uint16(buf) }
func getUint32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }
func getUint64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }

// popCount8 counts set bits in an 8-bit slot mask.
func popCount8(b byte) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}
