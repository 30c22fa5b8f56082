// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"context"
	"sync"
	"time"
)

// Default capacities for the four queues linking SendTask, RecvTask and
// the upper layer (spec §3).
const (
	SendDataCapacity = 4
	SendAckCapacity  = 5
	RecvDataCapacity = 4
	RecvAckCapacity  = 5
)

// Queue is a bounded, multi-producer single-consumer FIFO of Frames. It
// supports both blocking and non-blocking put, blocking poll with a
// timeout, and an atomic Drain that snapshots and empties the queue in
// one step — the teacher's node.go uses unbuffered channels for a
// similar producer/consumer handoff, but a raw channel can't offer the
// drop-new TryPut or the atomic multi-item Drain the receiver and ACK
// paths need, so this uses a mutex-guarded slice with a broadcast
// "changed" signal instead, per the internal-lock approach the spec's
// design notes recommend for the recv_ack peek-and-drain loop.
type Queue struct {
	mu       sync.Mutex
	items    []Frame
	capacity int
	changed  chan struct{}
}

// NewQueue returns an empty Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity, changed: make(chan struct{})}
}

// signal wakes every goroutine blocked in Put or Poll. Must be called
// with mu held.
func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// Put blocks until there is room in the queue, the frame is enqueued,
// or ctx is done.
func (q *Queue) Put(ctx context.Context, f Frame) error {
	for {
		q.mu.Lock()
		if len(q.items) < q.capacity {
			q.items = append(q.items, f)
			q.signal()
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PutBlocking enqueues f, blocking indefinitely if the queue is full.
func (q *Queue) PutBlocking(f Frame) {
	_ = q.Put(context.Background(), f)
}

// TryPut enqueues f if there is room, otherwise it drops f and returns
// false (the "drop-new on full" policy used for recv_data).
func (q *Queue) TryPut(f Frame) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, f)
	q.signal()
	return true
}

// Poll blocks until a frame is available or ctx is done.
func (q *Queue) Poll(ctx context.Context) (Frame, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			f := q.items[0]
			q.items = q.items[1:]
			q.signal()
			q.mu.Unlock()
			return f, true
		}
		ch := q.changed
		q.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return Frame{}, false
		}
	}
}

// PollTimeout blocks for at most d waiting for a frame.
func (q *Queue) PollTimeout(d time.Duration) (Frame, bool) {
	if d <= 0 {
		return q.TryPoll()
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return q.Poll(ctx)
}

// TryPoll returns the head frame without blocking.
func (q *Queue) TryPoll() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Frame{}, false
	}
	f := q.items[0]
	q.items = q.items[1:]
	q.signal()
	return f, true
}

// Drain atomically removes and returns every frame currently queued, so
// a consumer can scan for a match without a producer inserting mid-scan.
func (q *Queue) Drain() []Frame {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = nil
	q.signal()
	return out
}

// Requeue puts back frames that Drain removed but the caller didn't
// consume, preserving their original order at the head of the queue.
// Frames beyond remaining capacity are dropped.
func (q *Queue) Requeue(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	room := q.capacity - len(q.items)
	if room <= 0 {
		return
	}
	if len(frames) > room {
		frames = frames[:room]
	}
	q.items = append(frames, q.items...)
	q.signal()
}

// Len returns the number of frames currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
