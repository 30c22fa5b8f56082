// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"context"
	"log/slog"
)

// RecvTask is the receive pipeline: it blocks on the radio, filters
// frames not addressed to us, validates the rest, and dispatches by
// frame type.
type RecvTask struct {
	localAddr uint16
	radio     Radio
	clock     *SyncClock
	sendAck   *Queue
	recvAck   *Queue
	recvData  *Queue
	metrics   *Metrics
	log       *slog.Logger

	lastSeq map[uint16]uint16 // per-peer last delivered sequence, receiver-goroutine only
}

// NewRecvTask returns a RecvTask.
func NewRecvTask(localAddr uint16, radio Radio, clock *SyncClock,
	sendAck, recvAck, recvData *Queue, metrics *Metrics, log *slog.Logger) *RecvTask {
	return &RecvTask{
		localAddr: localAddr,
		radio:     radio,
		clock:     clock,
		sendAck:   sendAck,
		recvAck:   recvAck,
		recvData:  recvData,
		metrics:   metrics,
		log:       log,
		lastSeq:   make(map[uint16]uint16),
	}
}

// Run blocks reading frames off the radio until ctx is canceled or the
// radio returns an error.
func (r *RecvTask) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		b, err := r.radio.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("receive error", "err", err)
			return
		}
		// recv_time is captured immediately, before any parsing, so
		// processing latency never inflates the observed clock skew or
		// SIFS timing for an expedited ACK.
		recvTime := r.clock.Time()

		dest, ok := ParseDest(b)
		if !ok {
			continue
		}
		if dest != r.localAddr && dest != Broadcast {
			continue
		}

		f, err := Parse(b, recvTime)
		if err != nil {
			if r.metrics != nil {
				r.metrics.dropped.Inc()
			}
			r.log.Debug("dropped frame failing crc", "bytes", Bytes(len(b)))
			continue
		}

		switch f.Type {
		case FrameAck:
			r.recvAck.TryPut(f)
		case FrameBeacon:
			r.clock.ConsumeBeacon(f, recvTime)
		case FrameData:
			r.handleData(f)
		}
	}
}

// handleData runs a data frame through per-peer duplicate suppression,
// delivers new frames to recv_data, and always queues an ACK —
// duplicates and stale frames are acknowledged again in case the
// original ACK was lost.
func (r *RecvTask) handleData(f Frame) {
	last, seen := r.lastSeq[f.Src]

	if !seen || sequenceDelta(last, f.Seq) > 0 {
		if seen {
			if delta := sequenceDelta(last, f.Seq); delta > 1 {
				if r.metrics != nil {
					r.metrics.gaps.Inc()
				}
				r.log.Debug("sequence gap", "peer", f.Src, "last", last,
					"seq", f.Seq, "gap", delta, "payload", f.PayloadLen())
			}
		}
		// last_seq tracks the highest sequence number actually seen
		// from this peer, not (last_seq+1) wrapped, so a duplicate of
		// any previously delivered frame is caught even across a gap
		// (see DESIGN.md's duplicate-suppression Open Question).
		r.lastSeq[f.Src] = f.Seq
		if !r.recvData.TryPut(f) {
			r.log.Debug("recv_data full, dropped frame", "peer", f.Src,
				"seq", f.Seq, "payload", f.PayloadLen())
		}
	} else {
		if r.metrics != nil {
			r.metrics.duplicate.Inc()
		}
		r.log.Debug("duplicate frame", "peer", f.Src, "seq", f.Seq, "last", last)
	}

	// The ACK carries the data frame's receive time, so its SIFS age is
	// counted from reception rather than from this point.
	ack := Build(FrameAck, f.Src, r.localAddr, nil, f.Seq, f.Instantiated)
	r.sendAck.PutBlocking(ack)
}

// sequenceDelta returns the signed forward distance from last to seq in
// the 12-bit sequence space (range (-2048, 2048]): positive means seq is
// ahead of last, zero or negative means seq is a duplicate or stale
// retransmission.
func sequenceDelta(last, seq uint16) int {
	const span = MaxSeqNum + 1
	d := (int(seq) - int(last)) % span
	if d < 0 {
		d += span
	}
	if d > span/2 {
		d -= span
	}
	return d
}
