// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameEncodeParseRoundTrip(t *testing.T) {
	type suite struct {
		name    string
		typ     FrameType
		retry   bool
		seq     uint16
		dest    uint16
		src     uint16
		payload []byte
	}

	testCases := []suite{
		{name: "data_minimum", typ: FrameData, dest: 1, src: 2, payload: nil},
		{name: "data_with_payload", typ: FrameData, seq: 42, dest: 1, src: 2, payload: []byte("hello")},
		{name: "data_retry", typ: FrameData, retry: true, seq: 4095, dest: 3, src: 4, payload: []byte("x")},
		{name: "ack", typ: FrameAck, seq: 7, dest: 2, src: 1, payload: nil},
		{name: "beacon_broadcast", typ: FrameBeacon, dest: Broadcast, src: 9, payload: make([]byte, 8)},
		{name: "max_payload", typ: FrameData, dest: 1, src: 2, payload: make([]byte, MaxPayload)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			built := Build(tc.typ, tc.dest, tc.src, tc.payload, tc.seq, 0)
			if tc.retry {
				built.SetRetry(true)
			}
			b := built.Encode()

			got, err := Parse(b, 123)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, got.Type)
			assert.Equal(t, tc.retry, got.Retry)
			assert.Equal(t, tc.seq&MaxSeqNum, got.Seq)
			assert.Equal(t, tc.dest, got.Dest)
			assert.Equal(t, tc.src, got.Src)
			assert.Equal(t, Clock(123), got.Instantiated)
			if len(tc.payload) == 0 {
				assert.Empty(t, got.Payload)
			} else {
				assert.Equal(t, tc.payload, got.Payload)
			}
		})
	}
}

func TestParseRejectsShortFrames(t *testing.T) {
	_, err := Parse([]byte{0, 1, 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestParseRejectsBadCRC(t *testing.T) {
	f := Build(FrameData, 1, 2, []byte("x"), 5, 0)
	b := f.Encode()
	b[len(b)-1] ^= 0xFF
	_, err := Parse(b, 0)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestParseDest(t *testing.T) {
	f := Build(FrameData, 99, 2, []byte("payload"), 0, 0)
	b := f.Encode()
	dest, ok := ParseDest(b)
	require.True(t, ok)
	assert.EqualValues(t, 99, dest)

	_, ok = ParseDest([]byte{1, 2, 3, 4})
	assert.False(t, ok)
}

func TestSetMutatorsRecomputeCRC(t *testing.T) {
	f := Build(FrameData, 1, 2, []byte("a"), 0, 0)
	before := f.Encode()

	f.SetSequenceNumber(17)
	afterSeq := f.Encode()
	assert.NotEqual(t, before, afterSeq)
	got, err := Parse(afterSeq, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 17, got.Seq)

	f.SetPayload([]byte("longer payload"))
	afterPayload := f.Encode()
	got, err = Parse(afterPayload, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("longer payload"), got.Payload)
}

func TestCompareOrdersControlFramesBeforeData(t *testing.T) {
	data := Build(FrameData, 1, 2, nil, 0, 0)
	ack := Build(FrameAck, 1, 2, nil, 0, 0)
	beacon := Build(FrameBeacon, Broadcast, 2, nil, 0, 0)

	assert.Negative(t, Compare(ack, data))
	assert.Negative(t, Compare(beacon, data))
	assert.Zero(t, Compare(ack, beacon))
	assert.Positive(t, Compare(data, ack))
}

func TestSequenceNumberWraps(t *testing.T) {
	f := Build(FrameData, 1, 2, nil, MaxSeqNum+5, 0)
	assert.EqualValues(t, 4, f.Seq)
}
