// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// ChunkSendRequest carries one fragment of a large request that exceeds the
// transport's data transfer size. Param1 bit7 marks the last chunk.
const ChunkLastFlag byte = 0x80

type ChunkSendRequest struct {
	Header          Header
	ChunkSeqNo      uint16
	ChunkSize       uint32
	LargeMessageSize uint32 // only present on the first chunk (ChunkSeqNo == 0)
	ChunkData       []byte
}

func (r ChunkSendRequest) Encode() ([]byte, error) {
	hasTotal := r.ChunkSeqNo == 0
	size := HeaderSize + 2 + 4 + len(r.ChunkData)
	if hasTotal {
		size += 4
	}
	buf := make([]byte, size)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	off := HeaderSize
	putUint16(buf[off:off+2], r.ChunkSeqNo)
	off += 2
	putUint32(buf[off:off+4], r.ChunkSize)
	off += 4
	if hasTotal {
		putUint32(buf[off:off+4], r.LargeMessageSize)
		off += 4
	}
	copy(buf[off:], r.ChunkData)
	return buf, nil
}

type ChunkSendAckResponse struct {
	Header     Header
	ChunkSeqNo uint16
}

func DecodeChunkSendAckResponse(buf []byte) (ChunkSendAckResponse, error) {
	const fixed = HeaderSize + 2
	if len(buf) < fixed {
		return ChunkSendAckResponse{}, spdmerr.New("wire.DecodeChunkSendAckResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return ChunkSendAckResponse{}, err
	}
	if hdr.RequestResponseCode != CodeChunkSendAck {
		return ChunkSendAckResponse{}, spdmerr.New("wire.DecodeChunkSendAckResponse", spdmerr.CodeUnexpectedResponse)
	}
	return ChunkSendAckResponse{Header: hdr, ChunkSeqNo: getUint16(buf[4:6])}, nil
}

// ChunkGetRequest asks the Responder for the next fragment of a large
// response already in flight.
type ChunkGetRequest struct {
	Header     Header
	ChunkSeqNo uint16
}

func (r ChunkGetRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+2)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	putUint16(buf[HeaderSize:HeaderSize+2], r.ChunkSeqNo)
	return buf, nil
}

type ChunkResponseResponse struct {
	Header           Header
	ChunkSeqNo       uint16
	ChunkSize        uint32
	LargeMessageSize uint32
	ChunkData        []byte
}

func DecodeChunkResponseResponse(buf []byte) (ChunkResponseResponse, error) {
	const fixed = HeaderSize + 2 + 4
	if len(buf) < fixed {
		return ChunkResponseResponse{}, spdmerr.New("wire.DecodeChunkResponseResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return ChunkResponseResponse{}, err
	}
	if hdr.RequestResponseCode != CodeChunkResponse {
		return ChunkResponseResponse{}, spdmerr.New("wire.DecodeChunkResponseResponse", spdmerr.CodeUnexpectedResponse)
	}
	seqNo := getUint16(buf[4:6])
	chunkSize := getUint32(buf[6:10])
	off := fixed
	var totalSize uint32
	if seqNo == 0 {
		if len(buf) < off+4 {
			return ChunkResponseResponse{}, spdmerr.New("wire.DecodeChunkResponseResponse", spdmerr.CodeInvalidMsgSize)
		}
		totalSize = getUint32(buf[off : off+4])
		off += 4
	}
	if len(buf) < off+int(chunkSize) {
		return ChunkResponseResponse{}, spdmerr.New("wire.DecodeChunkResponseResponse", spdmerr.CodeInvalidMsgSize)
	}
	data := append([]byte{}, buf[off:off+int(chunkSize)]...)
	if len(buf) != off+int(chunkSize) {
		return ChunkResponseResponse{}, spdmerr.New("wire.DecodeChunkResponseResponse", spdmerr.CodeInvalidMsgSize)
	}
	return ChunkResponseResponse{
		Header:           hdr,
		ChunkSeqNo:       seqNo,
		ChunkSize:        chunkSize,
		LargeMessageSize: totalSize,
		ChunkData:        data,
	}, nil
}
