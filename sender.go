// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"
)

// sendState is one of the explicit states in the SendTask loop:
//
//	WAIT_DATA -> WAIT_OPEN_CHANNEL -> WAIT_IFS -> WAIT_BACKOFF -> {WAIT_ACK | WAIT_DATA}
//	                  ^___________________________________________|
type sendState int

const (
	stateWaitData sendState = iota
	stateWaitOpenChannel
	stateWaitIFS
	stateWaitBackoff
	stateWaitAck
)

func (s sendState) String() string {
	switch s {
	case stateWaitData:
		return "WAIT_DATA"
	case stateWaitOpenChannel:
		return "WAIT_OPEN_CHANNEL"
	case stateWaitIFS:
		return "WAIT_IFS"
	case stateWaitBackoff:
		return "WAIT_BACKOFF"
	case stateWaitAck:
		return "WAIT_ACK"
	default:
		return "UNKNOWN"
	}
}

// pending describes the frame SendTask currently has in flight.
type pending struct {
	frame       Frame
	destAddr    uint16
	seq         uint16
	tryCount    int
	cw          int
	backoff     time.Duration
	backoffFrom time.Time
}

// SendTask is the CSMA/CA sender state machine. It owns the radio
// during transmission and competes for the medium on behalf of every
// frame handed to it through sendData and sendAck.
type SendTask struct {
	localAddr uint16
	radio     Radio
	clock     *SyncClock
	cfg       *Config
	sendData  *Queue
	sendAck   *Queue
	recvAck   *Queue
	status    *atomic.Int32
	metrics   *Metrics
	log       *slog.Logger
	rng       *rand.Rand

	seqCounters map[uint16]uint16 // touched only by this goroutine
}

// NewSendTask returns a SendTask. status is shared with the owning
// Mac's public Status accessor.
func NewSendTask(localAddr uint16, radio Radio, clock *SyncClock, cfg *Config,
	sendData, sendAck, recvAck *Queue, status *atomic.Int32, metrics *Metrics,
	log *slog.Logger) *SendTask {
	return &SendTask{
		localAddr:   localAddr,
		radio:       radio,
		clock:       clock,
		cfg:         cfg,
		sendData:    sendData,
		sendAck:     sendAck,
		recvAck:     recvAck,
		status:      status,
		metrics:     metrics,
		log:         log,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(localAddr))),
		seqCounters: make(map[uint16]uint16),
	}
}

// Run drives the state machine until ctx is canceled. A frame in flight
// at cancellation is not retransmitted and queued frames are left in
// place rather than drained.
func (t *SendTask) Run(ctx context.Context) {
	state := stateWaitData
	var p pending
	for {
		if ctx.Err() != nil {
			return
		}
		t.expediteOutboundAck(ctx)
		switch state {
		case stateWaitData:
			np, ns, done := t.waitData(ctx)
			if done {
				return
			}
			p, state = np, ns
		case stateWaitOpenChannel:
			state = t.waitOpenChannel(ctx, p)
		case stateWaitIFS:
			p, state = t.waitIFS(ctx, p)
		case stateWaitBackoff:
			p, state = t.waitBackoff(ctx, p)
		case stateWaitAck:
			p, state = t.waitAck(ctx, p)
		}
	}
}

// expediteOutboundAck drains and transmits one pending outbound ACK
// once it's aged past SIFS and the alignment window holds, bypassing
// the full state machine.
func (t *SendTask) expediteOutboundAck(ctx context.Context) {
	f, ok := t.sendAck.TryPoll()
	if !ok {
		return
	}
	now := t.clock.Time()
	age := time.Duration(now - f.Instantiated)
	if age < t.cfg.sifsTime() || !t.aligned(now) {
		t.sendAck.Requeue([]Frame{f})
		return
	}
	b := f.Encode()
	n, err := t.radio.Transmit(b)
	if err != nil || n < len(b) {
		// Collision on an expedited ACK: requeue for a later pass
		// rather than drop it.
		t.sendAck.Requeue([]Frame{f})
	}
}

// aligned reports whether now sits within the configured epsilon of a
// slot boundary.
func (t *SendTask) aligned(now Clock) bool {
	unit, eps := t.cfg.alignment()
	rem := time.Duration(now) % unit
	return rem <= eps
}

// sleep blocks for d or until ctx is done, returning false in the
// latter case.
func (t *SendTask) sleep(ctx context.Context, d time.Duration) bool {
	tm := time.NewTimer(d)
	defer tm.Stop()
	select {
	case <-tm.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// waitData implements WAIT_DATA: synthesize a beacon if one is due,
// else poll send_data for at most one slot time (and never past the
// remaining beacon interval), so that while idle Run keeps returning to
// expediteOutboundAck.
func (t *SendTask) waitData(ctx context.Context) (pending, sendState, bool) {
	wait := t.cfg.slotTime()
	if t.clock.BeaconsEnabled() {
		interval := t.clock.BeaconInterval()
		since := t.clock.Time() - t.clock.LastBeaconEmit()
		if since >= interval {
			f := t.clock.GenerateBeacon(0)
			return pending{frame: f, destAddr: Broadcast}, stateWaitOpenChannel, false
		}
		if remaining := time.Duration(interval - since); remaining < wait {
			wait = remaining
		}
	}
	f, ok := t.sendData.PollTimeout(wait)
	if !ok {
		return pending{}, stateWaitData, ctx.Err() != nil
	}
	return t.acceptData(f), stateWaitOpenChannel, false
}

// acceptData assigns a fresh per-destination sequence number to f and
// computes its initial backoff.
func (t *SendTask) acceptData(f Frame) pending {
	seq := t.nextSeq(f.Dest)
	f.SetSequenceNumber(seq)
	cwMin, _ := t.cfg.cwBounds()
	p := pending{
		frame:    f,
		destAddr: f.Dest,
		seq:      seq,
		tryCount: 0,
		cw:       cwMin,
	}
	p.backoff = t.drawBackoff(p.cw)
	if t.metrics != nil {
		t.metrics.SetCW(p.cw)
	}
	return p
}

// nextSeq returns the next sequence number for dest, wrapping at
// MaxSeqNum. Only the sender goroutine touches seqCounters, so no lock
// is needed.
func (t *SendTask) nextSeq(dest uint16) uint16 {
	seq := t.seqCounters[dest]
	next := seq + 1
	if next > MaxSeqNum {
		next = 0
	}
	t.seqCounters[dest] = next
	return seq
}

// drawBackoff draws k uniform in [0,cw] and returns k*slot_time, unless
// a debug slot-selection override forces the deterministic worst case
// backoff = cw*slot_time.
func (t *SendTask) drawBackoff(cw int) time.Duration {
	slot := t.cfg.slotTime()
	if t.cfg.slotSelectionPolicy() != 0 {
		return time.Duration(cw) * slot
	}
	k := t.rng.Intn(cw + 1)
	return time.Duration(k) * slot
}

// waitOpenChannel implements WAIT_OPEN_CHANNEL.
func (t *SendTask) waitOpenChannel(ctx context.Context, p pending) sendState {
	for {
		if ctx.Err() != nil {
			return stateWaitOpenChannel
		}
		if !t.radio.InUse() {
			return stateWaitIFS
		}
		if !t.sleep(ctx, t.cfg.slotTime()/10) {
			return stateWaitOpenChannel
		}
	}
}

// ifsFor returns the inter-frame space required before contending for
// the medium with a frame of the given type: SIFS for ACKs, PIFS
// (SIFS+1 slot) for beacons, DIFS (SIFS+2 slots) for data.
func (t *SendTask) ifsFor(typ FrameType) time.Duration {
	sifs := t.cfg.sifsTime()
	slot := t.cfg.slotTime()
	switch typ {
	case FrameAck:
		return sifs
	case FrameBeacon:
		return sifs + slot
	default:
		return sifs + 2*slot
	}
}

// waitIFS implements WAIT_IFS: the medium must stay idle for the
// frame's inter-frame space before backoff begins, realigned to the
// slot boundary.
func (t *SendTask) waitIFS(ctx context.Context, p pending) (pending, sendState) {
	ifs := t.ifsFor(p.frame.Type)
	start := time.Now()
	for {
		if ctx.Err() != nil {
			return p, stateWaitIFS
		}
		elapsed := time.Since(start)
		if t.radio.InUse() || t.radio.IdleTime() < elapsed {
			return p, stateWaitOpenChannel
		}
		if elapsed >= ifs && t.aligned(t.clock.Time()) {
			p.backoffFrom = time.Now()
			return p, stateWaitBackoff
		}
		if !t.sleep(ctx, t.cfg.slotTime()/10) {
			return p, stateWaitIFS
		}
	}
}

// waitBackoff implements WAIT_BACKOFF: count down the drawn backoff,
// freezing it if the medium busies, then transmit once it expires
// aligned to a slot boundary.
func (t *SendTask) waitBackoff(ctx context.Context, p pending) (pending, sendState) {
	for {
		if ctx.Err() != nil {
			return p, stateWaitBackoff
		}
		elapsed := time.Since(p.backoffFrom)
		remaining := p.backoff - elapsed
		if remaining <= 0 {
			break
		}
		if t.radio.InUse() {
			// Freeze the remaining backoff; the next pass resumes the
			// countdown instead of redrawing.
			frozen := remaining - t.radio.IdleTime()
			if frozen < 0 {
				frozen = 0
			}
			p.backoff = frozen
			return p, stateWaitOpenChannel
		}
		step := remaining
		if slot := t.cfg.slotTime() / 10; step > slot {
			step = slot
		}
		if !t.sleep(ctx, step) {
			return p, stateWaitBackoff
		}
	}
	if !t.aligned(t.clock.Time()) {
		return p, stateWaitBackoff
	}
	if p.frame.Type == FrameBeacon {
		t.clock.UpdateBeacon(&p.frame)
		if t.radio.InUse() {
			return p, stateWaitOpenChannel
		}
	}
	b := p.frame.Encode()
	n, err := t.radio.Transmit(b)
	if err != nil || n < len(b) {
		t.prepareRetry(&p)
		return p, stateWaitOpenChannel
	}
	if p.frame.Type == FrameBeacon {
		t.clock.OnBeaconTransmit()
		return pending{}, stateWaitData
	}
	if p.frame.Type == FrameData {
		p.backoffFrom = time.Now()
		return p, stateWaitAck
	}
	// ACKs are never retried and need no WAIT_ACK phase.
	return pending{}, stateWaitData
}

// prepareRetry bumps the try count, marks the frame for retry, and
// redraws backoff with a doubled contention window.
func (t *SendTask) prepareRetry(p *pending) {
	p.tryCount++
	p.frame.SetRetry(true)
	_, cwMax := t.cfg.cwBounds()
	cw0 := p.cw
	p.cw = min(cwMax, 2*p.cw+1)
	p.backoff = t.drawBackoff(p.cw)
	t.log.Debug("retry", "seq", p.seq, "dest", p.destAddr, "try", p.tryCount,
		"cw0", cw0, "cw", p.cw, "payload", p.frame.PayloadLen())
	if t.metrics != nil {
		t.metrics.retries.Inc()
		t.metrics.SetCW(p.cw)
	}
}

// waitAck implements WAIT_ACK: wait up to the clock's ACK estimate for
// a matching ACK, retrying or giving up on timeout.
func (t *SendTask) waitAck(ctx context.Context, p pending) (pending, sendState) {
	for {
		if ctx.Err() != nil {
			return p, stateWaitAck
		}
		if _, ok := t.matchAck(p); ok {
			t.status.Store(int32(TX_DELIVERED))
			if t.metrics != nil {
				t.metrics.delivered.Inc()
			}
			return pending{}, stateWaitData
		}
		elapsed := time.Since(p.backoffFrom)
		estimate := time.Duration(t.clock.AckWaitEstimate())
		if elapsed >= estimate {
			limit := t.cfg.retryLimit()
			if p.tryCount >= limit+1 {
				t.status.Store(int32(TX_FAILED))
				if t.metrics != nil {
					t.metrics.failed.Inc()
				}
				return pending{}, stateWaitData
			}
			t.prepareRetry(&p)
			return p, stateWaitOpenChannel
		}
		if !t.sleep(ctx, t.cfg.slotTime()/10) {
			return p, stateWaitAck
		}
	}
}

// matchAck drains recv_ack looking for a frame whose (seq, src) match
// our outstanding (seq, dest). The matching frame is consumed; every
// other drained frame is discarded without triggering success.
func (t *SendTask) matchAck(p pending) (Frame, bool) {
	frames := t.recvAck.Drain()
	var found Frame
	ok := false
	for _, f := range frames {
		if !ok && f.Seq == p.seq && f.Src == p.destAddr {
			found = f
			ok = true
		}
	}
	return found, ok
}
