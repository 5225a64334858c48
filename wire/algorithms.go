// SPDX-License-Identifier: LGPL-3.0-or-later

package wire

import "github.com/sage-x-project/spdm-requester/spdmerr"

// HashAlgo identifies a base_hash / measurement_hash algorithm id (DSP0274 Table 15).
type HashAlgo uint32

const (
	HashNone     HashAlgo = 0
	HashSHA256   HashAlgo = 1 << 0
	HashSHA384   HashAlgo = 1 << 1
	HashSHA512   HashAlgo = 1 << 2
	HashSHA3_256 HashAlgo = 1 << 3
	HashSHA3_384 HashAlgo = 1 << 4
	HashSHA3_512 HashAlgo = 1 << 5
)

// AsymAlgo identifies a base_asym / req_base_asym algorithm id.
type AsymAlgo uint32

const (
	AsymNone         AsymAlgo = 0
	AsymECDSAP256    AsymAlgo = 1 << 0
	AsymECDSAP384    AsymAlgo = 1 << 1
	AsymEdDSA25519   AsymAlgo = 1 << 2
	AsymSecp256k1Ext AsymAlgo = 1 << 3 // vendor extension, not in base DSP0274 table
)

// DHEGroup identifies a dhe_named_group algorithm id.
type DHEGroup uint16

const (
	DHENone  DHEGroup = 0
	DHEX25519 DHEGroup = 1 << 0
	DHEP256  DHEGroup = 1 << 1
	DHEP384  DHEGroup = 1 << 2
)

// AEADSuite identifies an aead_cipher_suite algorithm id.
type AEADSuite uint16

const (
	AEADNone            AEADSuite = 0
	AEADAES256GCM       AEADSuite = 1 << 0
	AEADChaCha20Poly1305 AEADSuite = 1 << 1
)

// KeySchedule identifies the key_schedule id (DSP0274 currently defines one).
type KeySchedule uint16

const KeyScheduleHKDF KeySchedule = 1

// MeasurementSpec identifies the measurement_specification id.
type MeasurementSpec uint8

const MeasurementSpecDMTF MeasurementSpec = 1

// NegotiateAlgorithmsRequest advertises the Requester's supported algorithms.
type NegotiateAlgorithmsRequest struct {
	Header              Header
	MeasurementSpec     MeasurementSpec
	BaseAsymAlgo        AsymAlgo
	BaseHashAlgo        HashAlgo
	DHEGroups           DHEGroup
	AEADSuites          AEADSuite
	ReqBaseAsymAlgo     AsymAlgo
	KeySchedules        KeySchedule
}

func (r NegotiateAlgorithmsRequest) Encode() ([]byte, error) {
	buf := make([]byte, HeaderSize+32)
	if err := r.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[4] = byte(r.MeasurementSpec)
	putUint32(buf[8:12], uint32(r.BaseAsymAlgo))
	putUint32(buf[12:16], uint32(r.BaseHashAlgo))
	putUint16(buf[24:26], uint16(r.DHEGroups))
	putUint16(buf[26:28], uint16(r.AEADSuites))
	putUint16(buf[28:30], uint16(r.ReqBaseAsymAlgo))
	putUint16(buf[30:32], uint16(r.KeySchedules))
	return buf, nil
}

// AlgorithmsResponse carries the Responder's one-per-category selection.
type AlgorithmsResponse struct {
	Header          Header
	MeasurementSpec MeasurementSpec
	MeasurementHash HashAlgo
	BaseAsymSel     AsymAlgo
	BaseHashSel     HashAlgo
	DHEGroupSel     DHEGroup
	AEADSuiteSel    AEADSuite
	ReqBaseAsymSel  AsymAlgo
	KeyScheduleSel  KeySchedule
}

func DecodeAlgorithmsResponse(buf []byte) (AlgorithmsResponse, error) {
	const want = HeaderSize + 36
	if len(buf) < want {
		return AlgorithmsResponse{}, spdmerr.New("wire.DecodeAlgorithmsResponse", spdmerr.CodeInvalidMsgSize)
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return AlgorithmsResponse{}, err
	}
	if hdr.RequestResponseCode != CodeAlgorithms {
		return AlgorithmsResponse{}, spdmerr.New("wire.DecodeAlgorithmsResponse", spdmerr.CodeUnexpectedResponse)
	}
	return AlgorithmsResponse{
		Header:          hdr,
		MeasurementSpec: MeasurementSpec(buf[4]),
		MeasurementHash: HashAlgo(getUint32(buf[8:12])),
		BaseAsymSel:     AsymAlgo(getUint32(buf[12:16])),
		BaseHashSel:     HashAlgo(getUint32(buf[16:20])),
		DHEGroupSel:     DHEGroup(getUint16(buf[28:30])),
		AEADSuiteSel:    AEADSuite(getUint16(buf[30:32])),
		ReqBaseAsymSel:  AsymAlgo(getUint16(buf[32:34])),
		KeyScheduleSel:  KeySchedule(getUint16(buf[34:36])),
	}, nil
}

func EncodeAlgorithmsResponse(a AlgorithmsResponse) ([]byte, error) {
	buf := make([]byte, HeaderSize+36)
	if err := a.Header.Encode(buf); err != nil {
		return nil, err
	}
	buf[4] = byte(a.MeasurementSpec)
	putUint32(buf[8:12], uint32(a.MeasurementHash))
	putUint32(buf[12:16], uint32(a.BaseAsymSel))
	putUint32(buf[16:20], uint32(a.BaseHashSel))
	putUint16(buf[28:30], uint16(a.DHEGroupSel))
	putUint16(buf[30:32], uint16(a.AEADSuiteSel))
	putUint16(buf[32:34], uint16(a.ReqBaseAsymSel))
	putUint16(buf[34:36], uint16(a.KeyScheduleSel))
	return buf, nil
}

// HashSize returns the digest size in bytes for a single-bit HashAlgo value.
func (h HashAlgo) HashSize() int {
	switch h {
	case HashSHA256, HashSHA3_256:
		return 32
	case HashSHA384, HashSHA3_384:
		return 48
	case HashSHA512, HashSHA3_512:
		return 64
	default:
		return 0
	}
}
