// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a duration or point in (virtual or real) time, kept as its
// own type the way the teacher's sim.go keeps a Clock type, so it can't
// be confused with a raw time.Duration at the call site.
type Clock time.Duration

// Milliseconds returns c as a count of milliseconds.
func (c Clock) Milliseconds() int64 {
	return time.Duration(c).Milliseconds()
}

func (c Clock) String() string {
	return time.Duration(c).String()
}

// fudgeWindow is the number of samples averaged into transmit_fudge_ms.
const fudgeWindow = 10

// SyncClock is a forward-only logical clock shared by a Mac's sender and
// receiver. Its offset only ever advances (consume_beacon never runs
// the clock backward), and reads are lock-free so Time is safe to call
// from either goroutine without blocking the other.
type SyncClock struct {
	localAddr uint16
	t0        time.Time

	offset atomic.Int64 // nanoseconds added to monotonic time, only increases

	beaconIntervalNs   atomic.Int64 // negative disables beacons
	lastBeaconEmitNs   atomic.Int64
	rttEstimate        Clock
	slotTime           Clock

	fudgeMu       sync.Mutex
	fudgeSamples  [fudgeWindow]Clock
	fudgeCount    int
	fudgeNext     int
	fudgeTotal    Clock
	pendingUpdate Clock // Time() at the most recent UpdateBeacon call
}

// NewSyncClock returns a SyncClock for the given local address, using
// rttEstimate and slotTime to compute AckWaitEstimate.
func NewSyncClock(localAddr uint16, beaconInterval, rttEstimate, slotTime Clock) *SyncClock {
	c := &SyncClock{
		localAddr:   localAddr,
		t0:          time.Now(),
		rttEstimate: rttEstimate,
		slotTime:    slotTime,
	}
	c.beaconIntervalNs.Store(int64(beaconInterval))
	return c
}

// Time returns the current logical time: wall-clock monotonic time plus
// the accumulated offset. It is nonblocking and safe for concurrent use.
func (c *SyncClock) Time() Clock {
	return Clock(time.Since(c.t0)) + Clock(c.offset.Load())
}

// SetBeaconInterval sets the beacon interval; a negative value disables
// beacon emission.
func (c *SyncClock) SetBeaconInterval(interval Clock) {
	c.beaconIntervalNs.Store(int64(interval))
}

// BeaconInterval returns the configured beacon interval.
func (c *SyncClock) BeaconInterval() Clock {
	return Clock(c.beaconIntervalNs.Load())
}

// BeaconsEnabled reports whether periodic beaconing is enabled.
func (c *SyncClock) BeaconsEnabled() bool {
	return c.BeaconInterval() >= 0
}

// Offset returns the accumulated forward offset, in nanoseconds, applied
// to this clock's monotonic reading.
func (c *SyncClock) Offset() int64 {
	return c.offset.Load()
}

// LastBeaconEmit returns the logical time of the most recent beacon
// transmission (set by UpdateBeacon, not GenerateBeacon).
func (c *SyncClock) LastBeaconEmit() Clock {
	return Clock(c.lastBeaconEmitNs.Load())
}

// AckWaitEstimate returns the time SendTask should wait for an ACK
// before retrying: a configured RTT estimate plus one slot time.
func (c *SyncClock) AckWaitEstimate() Clock {
	return c.rttEstimate + c.slotTime
}

// beaconPayloadLen is the 8-byte big-endian encoded logical time carried
// by a beacon frame's payload.
const beaconPayloadLen = 8

// GenerateBeacon builds a new beacon Frame addressed to Broadcast with
// the current logical time encoded into its payload. The payload is
// rewritten just before transmission by UpdateBeacon.
func (c *SyncClock) GenerateBeacon(seq uint16) Frame {
	now := c.Time()
	payload := make([]byte, beaconPayloadLen)
	binary.BigEndian.PutUint64(payload, uint64(now))
	return Build(FrameBeacon, Broadcast, c.localAddr, payload, seq, now)
}

// UpdateBeacon rewrites f's payload with time()+transmit_fudge_ms
// immediately before transmission, and stamps LastBeaconEmit. Call
// OnBeaconTransmit once the frame is actually on the wire.
func (c *SyncClock) UpdateBeacon(f *Frame) {
	now := c.Time()
	c.pendingUpdate = now
	payload := make([]byte, beaconPayloadLen)
	binary.BigEndian.PutUint64(payload, uint64(now+c.transmitFudge()))
	f.SetPayload(payload)
	c.lastBeaconEmitNs.Store(int64(now))
}

// OnBeaconTransmit records the elapsed time between the most recent
// UpdateBeacon call and now into the transmit-fudge ring buffer.
func (c *SyncClock) OnBeaconTransmit() {
	elapsed := c.Time() - c.pendingUpdate
	c.fudgeMu.Lock()
	defer c.fudgeMu.Unlock()
	if c.fudgeCount == fudgeWindow {
		c.fudgeTotal -= c.fudgeSamples[c.fudgeNext]
	} else {
		c.fudgeCount++
	}
	c.fudgeSamples[c.fudgeNext] = elapsed
	c.fudgeTotal += elapsed
	c.fudgeNext = (c.fudgeNext + 1) % fudgeWindow
}

// transmitFudge returns the current moving-average transmit fudge.
func (c *SyncClock) transmitFudge() Clock {
	c.fudgeMu.Lock()
	defer c.fudgeMu.Unlock()
	if c.fudgeCount == 0 {
		return 0
	}
	return c.fudgeTotal / Clock(c.fudgeCount)
}

// ConsumeBeacon extracts the peer's encoded time from f's payload and,
// if it indicates the peer's clock is ahead, advances offset so Time()
// never moves backward. timeReceived must be captured by the caller
// before any other processing of f, so consumption latency doesn't
// inflate the observed skew.
func (c *SyncClock) ConsumeBeacon(f Frame, timeReceived Clock) {
	if len(f.Payload) < beaconPayloadLen {
		return
	}
	peer := Clock(binary.BigEndian.Uint64(f.Payload))
	diff := peer - timeReceived
	if diff <= 0 {
		return
	}
	for {
		cur := c.offset.Load()
		next := cur + int64(diff)
		if c.offset.CompareAndSwap(cur, next) {
			return
		}
	}
}
