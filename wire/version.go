// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// GetVersionRequest carries no payload beyond the header.
type GetVersionRequest struct {
	Header Header
}

func (r GetVersionRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// VersionEntry is one {major.minor, alpha} tuple in the VERSION response list.
type VersionEntry struct {
	Raw uint16 // DSP0274 version_number_entry: alpha(4) update(4) minor(4) major(4), low bits first -- LE on wire; the high byte is the Version
}

func (v VersionEntry) Version() Version {
	return Version(byte(v.Raw >> 8))
}

// VersionResponse is the decoded VERSION message.
type VersionResponse struct {
	Header       Header
	Reserved     byte
	VersionCount byte
	Entries      []VersionEntry
}

// DecodeVersionResponse parses a VERSION response, validating that the
// declared entry count matches the remaining buffer length exactly.
func DecodeVersionResponse(buf []byte) (VersionResponse, error) {
	const fixed = HeaderSize + 2
	if len(buf) < fixed {
		return VersionResponse{}, spdmerr.New("wire.DecodeVersionResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return VersionResponse{}, err
	}
	if hdr.RequestResponseCode != CodeVersion {
		return VersionResponse{}, spdmerr.New("wire.DecodeVersionResponse", spdmerr.CodeUnexpectedResponse)
	}
	reserved := buf[4]
	count := buf[5]
	want := fixed + int(count)*2
	if len(buf) != want {
		return VersionResponse{}, spdmerr.New("wire.DecodeVersionResponse", spdmerr.CodeInvalidMsgSize)
	}
	entries := make([]VersionEntry, count)
	for i := 0; i < int(count); i++ {
		off := fixed + i*2
		entries[i] = VersionEntry{Raw: getUint16(buf[off : off+2])}
	}
	return VersionResponse{Header: hdr, Reserved: reserved, VersionCount: count, Entries: entries}, nil
}

// EncodeVersionResponse is used by tests standing in for a Responder.
func EncodeVersionResponse(v VersionResponse) ([]byte, error) {
	buf := make([]byte, HeaderSize+2+len(v.Entries)*2)
	if err := v.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[4] = v.Reserved
	buf[5] = byte(len(v.Entries))
	for i, e := range v.Entries {
		off := HeaderSize + 2 + i*2
		putUint16(buf[off:off+2], e.Raw)
	}
	return buf, nil
}
