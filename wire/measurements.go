// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// Measurement request operation encoded in Param2.
const (
	MeasurementOperationTotalNumber byte = 0xE0
	MeasurementOperationAll         byte = 0xFF
)

// GetMeasurementsRequest. Param1 bit0 set means "generate signature".
type GetMeasurementsRequest struct {
	Header        Header
	Nonce         [NonceSize]byte // only present when signature requested
	SlotIDParam   byte
}

func (r GetMeasurementsRequest) Encode(withNonce bool) ([]byte, error) {
	size := HeaderSize
	if withNonce {
		size += NonceSize + 1
	}
	buf := make([]byte, size)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	if withNonce {
		copy(buf[HeaderSize:HeaderSize+NonceSize], r.Nonce[:])
		buf[HeaderSize+NonceSize] = r.SlotIDParam
	}
	return buf, nil
}

// MeasurementBlock is one DMTF measurement block: index, measurement
// specification, size, and raw value.
type MeasurementBlock struct {
	Index               byte
	MeasurementSpec     byte
	MeasurementSize     uint16
	Measurement         []byte
}

// MeasurementsResponse is the decoded MEASUREMENTS payload, including the
// trailing opaque data and the optional signature (empty when unsigned).
type MeasurementsResponse struct {
	Header              Header // Param1 = number of blocks (when requesting all)
	NumberOfBlocks       byte
	MeasurementRecordLen uint32 // 24-bit on the wire
	Blocks               []MeasurementBlock
	Nonce                [NonceSize]byte
	OpaqueDataLength     uint16
	OpaqueData           []byte
	Signature            []byte
}

// DecodeMeasurementsResponse parses the fixed prefix, the measurement
// record (as raw bytes — block splitting is left to ParseMeasurementBlocks
// for the raw_bit_stream case), nonce, opaque data, and optional trailing
// signature.
func DecodeMeasurementsResponse(buf []byte, signed bool, sigSize int) (MeasurementsResponse, []byte, error) {
	const fixed = HeaderSize + 1 + 3 // header + NumberOfBlocks + 3-byte record len
	if len(buf) < fixed {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return MeasurementsResponse{}, nil, err
	}
	if hdr.RequestResponseCode != CodeMeasurements {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeUnexpectedResponse)
	}
	numBlocks := buf[4]
	recLen := uint32(buf[5]) | uint32(buf[6])<<8 | uint32(buf[7])<<16

	off := fixed
	if len(buf) < off+int(recLen) {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
	}
	record := buf[off : off+int(recLen)]
	off += int(recLen)

	if len(buf) < off+NonceSize+2 {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], buf[off:off+NonceSize])
	off += NonceSize

	opaqueLen := getUint16(buf[off : off+2])
	off += 2
	if len(buf) < off+int(opaqueLen) {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
	}
	opaque := append([]byte{}, buf[off:off+int(opaqueLen)]...)
	off += int(opaqueLen)

	resp := MeasurementsResponse{
		Header:               hdr,
		NumberOfBlocks:       numBlocks,
		MeasurementRecordLen: recLen,
		Nonce:                nonce,
		OpaqueDataLength:     opaqueLen,
		OpaqueData:           opaque,
	}

	if signed {
		if len(buf) != off+sigSize {
			return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
		}
		resp.Signature = append([]byte{}, buf[off:off+sigSize]...)
	} else if len(buf) != off {
		return MeasurementsResponse{}, nil, spdmerr.New("wire.DecodeMeasurementsResponse", spdmerr.CodeInvalidMsgSize)
	}

	return resp, record, nil
}

// ParseMeasurementBlocks splits a measurement record into individual blocks.
func ParseMeasurementBlocks(record []byte) ([]MeasurementBlock, error) {
	var blocks []MeasurementBlock
	off := 0
	for off < len(record) {
		if len(record)-off < 4 {
			return nil, spdmerr.New("wire.ParseMeasurementBlocks", spdmerr.CodeInvalidMsgSize)
		}
		idx := record[off]
		spec := record[off+1]
		size := getUint16(record[off+2 : off+4])
		off += 4
		if len(record)-off < int(size) {
			return nil, spdmerr.New("wire.ParseMeasurementBlocks", spdmerr.CodeInvalidMsgSize)
		}
		val := append([]byte{}, record[off:off+int(size)]...)
		off += int(size)
		blocks = append(blocks, MeasurementBlock{Index: idx, MeasurementSpec: spec, MeasurementSize: size, Measurement: val})
	}
	return blocks, nil
}
