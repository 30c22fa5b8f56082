// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// fakeRadio is a minimal, test-only Radio: transmissions are recorded
// and can be made to return short writes to simulate collisions, and
// the medium is reported idle unless a test says otherwise.
type fakeRadio struct {
	mu          sync.Mutex
	transmitted [][]byte
	shortWrites int // number of leading Transmit calls that collide

	busy     bool
	idleTime time.Duration
	recv     chan []byte
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{idleTime: time.Hour, recv: make(chan []byte, 8)}
}

func (r *fakeRadio) Transmit(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transmitted = append(r.transmitted, append([]byte(nil), b...))
	if len(r.transmitted) <= r.shortWrites {
		n := len(b) / 2
		if n == 0 {
			n = 1
		}
		return n, nil
	}
	return len(b), nil
}

func (r *fakeRadio) Receive() ([]byte, error) {
	b, ok := <-r.recv
	if !ok {
		return nil, io.EOF
	}
	return b, nil
}

func (r *fakeRadio) InUse() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

func (r *fakeRadio) IdleTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idleTime
}

func (r *fakeRadio) Clock() time.Duration { return 0 }

func (r *fakeRadio) transmitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transmitted)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastAlignedConfig returns a Config whose alignment window always
// holds (epsilon >= unit) and whose timing constants are small, so
// state-machine tests complete in milliseconds instead of real 802.11
// time scales.
func fastAlignedConfig(retryLimit, cwMin, cwMax int) *Config {
	return &Config{
		RetryLimit:       retryLimit,
		SlotTime:         100 * time.Microsecond,
		SIFSTime:         50 * time.Microsecond,
		CWMin:            cwMin,
		CWMax:            cwMax,
		RTTEstimate:      2 * time.Millisecond,
		AlignmentUnit:    time.Millisecond,
		AlignmentEpsilon: time.Millisecond,
		BeaconInterval:   -1,
	}
}
