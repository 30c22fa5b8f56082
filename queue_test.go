// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(seq uint16) Frame {
	return Build(FrameData, 1, 2, nil, seq, 0)
}

func TestQueueTryPutRespectsCapacity(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.TryPut(frame(1)))
	assert.True(t, q.TryPut(frame(2)))
	assert.False(t, q.TryPut(frame(3)))
	assert.Equal(t, 2, q.Len())
}

func TestQueueTryPollFIFO(t *testing.T) {
	q := NewQueue(4)
	q.TryPut(frame(1))
	q.TryPut(frame(2))

	f, ok := q.TryPoll()
	require.True(t, ok)
	assert.EqualValues(t, 1, f.Seq)

	f, ok = q.TryPoll()
	require.True(t, ok)
	assert.EqualValues(t, 2, f.Seq)

	_, ok = q.TryPoll()
	assert.False(t, ok)
}

func TestQueuePutBlocksUntilRoom(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.TryPut(frame(1)))

	done := make(chan struct{})
	go func() {
		q.PutBlocking(frame(2))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Put returned before room was available")
	case <-time.After(20 * time.Millisecond):
	}

	_, _ = q.TryPoll()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put never unblocked after room freed")
	}
}

func TestQueuePollTimeoutExpires(t *testing.T) {
	q := NewQueue(1)
	_, ok := q.PollTimeout(10 * time.Millisecond)
	assert.False(t, ok)
}

func TestQueuePollCanceled(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Poll(ctx)
	assert.False(t, ok)
}

func TestQueueDrainAndRequeue(t *testing.T) {
	q := NewQueue(4)
	q.TryPut(frame(1))
	q.TryPut(frame(2))
	q.TryPut(frame(3))

	drained := q.Drain()
	require.Len(t, drained, 3)
	assert.Equal(t, 0, q.Len())

	q.TryPut(frame(4))
	q.Requeue(drained)
	require.Equal(t, 4, q.Len())
	f, _ := q.TryPoll()
	assert.EqualValues(t, 1, f.Seq, "requeued frames keep their original order at the head")
}
