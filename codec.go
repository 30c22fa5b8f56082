// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

// FrameType identifies the three frame types this MAC understands.
type FrameType uint8

const (
	FrameData FrameType = iota
	FrameAck
	FrameBeacon
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameAck:
		return "ACK"
	case FrameBeacon:
		return "BEACON"
	default:
		return "UNKNOWN"
	}
}

const (
	// Broadcast is the destination (and reserved source) address used
	// for beacon/broadcast frames.
	Broadcast = 0xFFFF

	// MaxSeqNum is the highest sequence number before it wraps to 0.
	MaxSeqNum = 4095

	// MaxPayload is the largest payload a single Frame may carry.
	MaxPayload = 2038

	// headerLen is the fixed 6-byte header: control(2) + dest(2) + src(2).
	headerLen = 6
	// crcLen is the trailing CRC-32 field.
	crcLen = 4
	// minFrameLen is the smallest a wire frame can legally be (header + CRC).
	minFrameLen = headerLen + crcLen
)

// ErrInvalidFrame is returned by Parse when a frame is too short or its
// CRC does not validate.
var ErrInvalidFrame = errors.New("dot11dcf: invalid frame")

// Frame is a single 802.11~ MAC frame. The zero value is not meaningful;
// construct frames with Build or Parse. Mutating a Frame's retry flag,
// sequence number or payload recomputes its CRC so a Frame is always
// internally consistent once it leaves the codec (spec invariant: the
// CRC on a queued Frame always matches its contents).
type Frame struct {
	Type    FrameType
	Retry   bool
	Seq     uint16 // 12 bits
	Dest    uint16
	Src     uint16
	Payload []byte

	// Instantiated is the local clock reading at the moment this Frame
	// was built (Build) or received (Parse). The receiver uses it to
	// account for SIFS timing when an ACK is expedited.
	Instantiated Clock

	crc uint32
}

// Build allocates and returns a new Frame with retry cleared and its CRC
// computed over the full encoded contents.
func Build(typ FrameType, dest, src uint16, payload []byte, seq uint16, now Clock) Frame {
	f := Frame{
		Type:         typ,
		Retry:        false,
		Seq:          seq & MaxSeqNum,
		Dest:         dest,
		Src:          src,
		Payload:      payload,
		Instantiated: now,
	}
	f.recompute()
	return f
}

// SetRetry sets the retry flag and recomputes the CRC.
func (f *Frame) SetRetry(retry bool) {
	f.Retry = retry
	f.recompute()
}

// SetSequenceNumber sets the 12-bit sequence number and recomputes the CRC.
func (f *Frame) SetSequenceNumber(seq uint16) {
	f.Seq = seq & MaxSeqNum
	f.recompute()
}

// SetPayload replaces the payload and recomputes the CRC.
func (f *Frame) SetPayload(payload []byte) {
	f.Payload = payload
	f.recompute()
}

// PayloadLen returns the size of f's payload, typed as Bytes so it
// can't be confused with a sequence number or address at a log call
// site.
func (f *Frame) PayloadLen() Bytes {
	return Bytes(len(f.Payload))
}

// Encode serializes the Frame to its wire representation: 2-byte
// control, 2-byte destination, 2-byte source, payload, 4-byte
// big-endian CRC-32 (ISO 3309 / IEEE) over everything preceding it.
func (f *Frame) Encode() []byte {
	n := headerLen + len(f.Payload) + crcLen
	b := make([]byte, n)
	f.encodeHeader(b)
	copy(b[headerLen:], f.Payload)
	binary.BigEndian.PutUint32(b[n-crcLen:], f.crc)
	return b
}

// encodeHeader writes the 6-byte control+address header into b, which
// must have at least headerLen bytes available. Byte 0 is
// TTTRSSSS (type:3, retry:1, seq-high:4); byte 1 is the low 8 bits of
// the sequence number; both addresses follow, big-endian.
func (f *Frame) encodeHeader(b []byte) {
	b[0] = byte(f.Type)<<5 | retryBit(f.Retry) | byte(f.Seq>>8)&0x0F
	b[1] = byte(f.Seq)
	binary.BigEndian.PutUint16(b[2:4], f.Dest)
	binary.BigEndian.PutUint16(b[4:6], f.Src)
}

func retryBit(retry bool) byte {
	if retry {
		return 1 << 4
	}
	return 0
}

// recompute rebuilds the CRC over the frame's current contents. It is
// called by Build and by every mutator, so a Frame's CRC is never
// stale once observable outside the codec.
func (f *Frame) recompute() {
	n := headerLen + len(f.Payload)
	b := make([]byte, n)
	f.encodeHeader(b)
	copy(b[headerLen:], f.Payload)
	f.crc = crc32.ChecksumIEEE(b)
}

// Parse decodes b into a Frame, stamping it with now. It returns
// ErrInvalidFrame if b is too short or its trailing CRC does not match
// the bytes preceding it.
func Parse(b []byte, now Clock) (Frame, error) {
	if len(b) < minFrameLen {
		return Frame{}, ErrInvalidFrame
	}
	body := b[:len(b)-crcLen]
	want := binary.BigEndian.Uint32(b[len(b)-crcLen:])
	got := crc32.ChecksumIEEE(body)
	if want != got {
		return Frame{}, ErrInvalidFrame
	}
	f := Frame{
		Type:         FrameType(b[0] >> 5),
		Retry:        b[0]&0x10 != 0,
		Seq:          uint16(b[0]&0x0F)<<8 | uint16(b[1]),
		Dest:         binary.BigEndian.Uint16(b[2:4]),
		Src:          binary.BigEndian.Uint16(b[4:6]),
		Instantiated: now,
		crc:          got,
	}
	if len(body) > headerLen {
		f.Payload = append([]byte(nil), body[headerLen:]...)
	}
	return f, nil
}

// ParseDest cheaply extracts just the destination address from a wire
// frame, for early address filtering without a full decode. It returns
// ok=false if b is 4 bytes long or shorter.
func ParseDest(b []byte) (dest uint16, ok bool) {
	if len(b) <= 4 {
		return 0, false
	}
	return binary.BigEndian.Uint16(b[2:4]), true
}

// Compare orders two frames by type, so ACK and BEACON frames sort
// ahead of DATA frames in a priority queue.
func Compare(a, b Frame) int {
	return a.Type.rank() - b.Type.rank()
}

// rank returns a frame type's priority-queue ordering key: control
// frames (ACK, BEACON) precede DATA.
func (t FrameType) rank() int {
	if t == FrameData {
		return 1
	}
	return 0
}
