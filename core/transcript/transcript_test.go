// SPDX-License-Identifier: LGPL-3.0-or-later

package transcript

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func sha256Hasher(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func TestBufferedAppendAndSnapshot(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	require.NoError(t, m.Append(StreamA, []byte("hello")))
	require.NoError(t, m.Append(StreamA, []byte(" world")))

	got, err := m.Get(StreamA)
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)

	digest, err := m.SnapshotHash(StreamA, sha256Hasher)
	require.NoError(t, err)
	require.Equal(t, sha256Hasher([]byte("hello world")), digest)

	// Idempotent: a second snapshot call doesn't consume the stream.
	digest2, err := m.SnapshotHash(StreamA, sha256Hasher)
	require.NoError(t, err)
	require.Equal(t, digest, digest2)
}

func TestResetClearsOneStream(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	require.NoError(t, m.Append(StreamA, []byte("a-bytes")))
	require.NoError(t, m.Append(StreamB, []byte("b-bytes")))

	m.Reset(StreamA)

	a, err := m.Get(StreamA)
	require.NoError(t, err)
	require.Nil(t, a)

	b, err := m.Get(StreamB)
	require.NoError(t, err)
	require.Equal(t, []byte("b-bytes"), b)
}

func TestResetAllClearsEveryStream(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	require.NoError(t, m.Append(StreamA, []byte("a")))
	require.NoError(t, m.Append(StreamC, []byte("c")))

	m.ResetAll()

	a, _ := m.Get(StreamA)
	c, _ := m.Get(StreamC)
	require.Nil(t, a)
	require.Nil(t, c)
}

func TestConcatSpansMultipleStreams(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	require.NoError(t, m.Append(StreamA, []byte("AAA")))
	require.NoError(t, m.Append(StreamB, []byte("BBB")))
	require.NoError(t, m.Append(StreamC, []byte("CCC")))

	got, err := m.Concat(StreamA, StreamB, StreamC)
	require.NoError(t, err)
	require.Equal(t, []byte("AAABBBCCC"), got)
}

func TestBufferOverflowReturnsBufferFull(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	big := make([]byte, MaxBufferSize)
	require.NoError(t, m.Append(StreamM, big))

	err := m.Append(StreamM, []byte{0x01})
	require.Error(t, err)
}

func TestRunningHashModeMatchesBufferMode(t *testing.T) {
	buffered := NewManager(ModeBuffer, nil)
	running := NewManager(ModeRunningHash, sha256.New)

	parts := [][]byte{[]byte("GET_DIGESTS"), []byte("DIGESTS"), []byte("tail")}
	for _, p := range parts {
		require.NoError(t, buffered.Append(StreamB, p))
		require.NoError(t, running.Append(StreamB, p))
	}

	wantDigest, err := buffered.SnapshotHash(StreamB, sha256Hasher)
	require.NoError(t, err)

	gotDigest, err := running.SnapshotHash(StreamB, sha256Hasher)
	require.NoError(t, err)

	require.Equal(t, wantDigest, gotDigest)

	// Get is unavailable once a stream has committed to a running hash.
	_, err = running.Get(StreamB)
	require.Error(t, err)
}

func TestRunningHashSnapshotOfUnwrittenStreamIsEmptyDigest(t *testing.T) {
	running := NewManager(ModeRunningHash, sha256.New)
	digest, err := running.SnapshotHash(StreamK, sha256Hasher)
	require.NoError(t, err)
	require.Equal(t, sha256Hasher(nil), digest)
}

func TestAppendEmptyDataIsNoop(t *testing.T) {
	m := NewManager(ModeBuffer, nil)
	require.NoError(t, m.Append(StreamA, nil))
	got, err := m.Get(StreamA)
	require.NoError(t, err)
	require.Nil(t, got)
}
