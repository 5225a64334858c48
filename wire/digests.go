// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// GetDigestsRequest carries no payload beyond the header.
type GetDigestsRequest struct {
	Header Header
}

func (r GetDigestsRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DigestsResponse carries one hash-sized digest per set bit in Header.Param2
// (the slot mask), concatenated immediately after the fixed header.
type DigestsResponse struct {
	Header  Header // Param2 is the slot bitmask
	Digests [][]byte
}

// DecodeDigestsResponse validates that the payload length equals exactly
// sizeof(header) + popcount(slot_mask) * hash_size, per spec.md 4.6.
func DecodeDigestsResponse(buf []byte, hashSize int) (DigestsResponse, error) {
	if len(buf) < HeaderSize {
		return DigestsResponse{}, spdmerr.New("wire.DecodeDigestsResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return DigestsResponse{}, err
	}
	if hdr.RequestResponseCode != CodeDigests {
		return DigestsResponse{}, spdmerr.New("wire.DecodeDigestsResponse", spdmerr.CodeUnexpectedResponse)
	}
	slotCount := popCount8(hdr.Param2)
	want := HeaderSize + slotCount*hashSize
	if len(buf) != want {
		return DigestsResponse{}, spdmerr.New("wire.DecodeDigestsResponse", spdmerr.CodeInvalidMsgSize)
	}
	digests := make([][]byte, slotCount)
	for i := 0; i < slotCount; i++ {
		off := HeaderSize + i*hashSize
		d := make([]byte, hashSize)
		copy(d, buf[off:off+hashSize])
		digests[i] = d
	}
	return DigestsResponse{Header: hdr, Digests: digests}, nil
}

// EncodeDigestsResponse is used by tests standing in for a Responder.
func EncodeDigestsResponse(d DigestsResponse) ([]byte, error) {
	hashSize := 0
	if len(d.Digests) > 0 {
		hashSize = len(d.Digests[0])
	}
	buf := make([]byte, HeaderSize+len(d.Digests)*hashSize)
	if err := d.Header.Encode(buf); err != nil {
		return nil, err
	}
	for i, dg := range d.Digests {
		off := HeaderSize + i*hashSize
		copy(buf[off:off+hashSize], dg)
	}
	return buf, nil
}

// SlotBit returns the bitmask for slot index (0..7).
func SlotBit(slot uint8) byte { return 1 << slot }
