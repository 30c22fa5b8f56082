// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// Package simradio implements an in-memory shared medium for testing
// and demonstrating dot11dcf without real radio hardware. It plays the
// role the teacher's rate-limited Iface/Delay pair played in its
// discrete-event simulator, but runs on real goroutines and wall-clock
// time instead of a virtual Clock, since dot11dcf's sender and
// receiver are real concurrent tasks rather than simulated handlers.
package simradio

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrClosed is returned by a closed Port's Transmit and Receive.
var ErrClosed = errors.New("simradio: port closed")

// Params configures a Medium's timing and loss behavior.
type Params struct {
	// BitRate governs how long a transmission occupies the medium:
	// duration = 8*len(b)/BitRate.
	BitRate int64 // bits per second
	// PropDelay is the one-way propagation delay applied before a
	// frame becomes visible to other ports.
	PropDelay time.Duration
	// CorruptProb is the probability (0-1) that an otherwise clean
	// delivery is corrupted in transit, simulating RF noise.
	CorruptProb float64
}

// DefaultParams returns reasonable defaults for local testing: a fast
// link with negligible propagation delay and no corruption.
func DefaultParams() Params {
	return Params{BitRate: 54_000_000, PropDelay: time.Microsecond, CorruptProb: 0}
}

// Medium is a shared half-duplex broadcast channel connecting any
// number of Ports. At most one transmission can occupy it cleanly at a
// time; an overlapping second transmission collides with the first.
// The later transmitter observes a short write and its recipients get a
// truncated copy; the first transmission is reported in full.
type Medium struct {
	params Params
	rng    *rand.Rand

	mu         sync.Mutex
	busyUntil  time.Time
	idleSince  time.Time
	ports      []*Port
}

// NewMedium returns a Medium governed by params.
func NewMedium(params Params) *Medium {
	return &Medium{
		params:    params,
		rng:       rand.New(rand.NewSource(1)),
		idleSince: time.Now(),
	}
}

// NewPort attaches a new station to the medium and returns its Radio
// handle.
func (m *Medium) NewPort(addr uint16) *Port {
	p := &Port{
		addr:   addr,
		medium: m,
		inbox:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	m.mu.Lock()
	m.ports = append(m.ports, p)
	m.mu.Unlock()
	return p
}

// txDuration returns how long b occupies the medium at the configured
// bit rate.
func (m *Medium) txDuration(n int) time.Duration {
	if m.params.BitRate <= 0 {
		return 0
	}
	return time.Duration(float64(n*8) / float64(m.params.BitRate) * float64(time.Second))
}

// transmit reserves the medium for the duration of b, returning the
// number of bytes accepted (less than len(b) signals a collision with
// an overlapping transmission) and the set of ports that should
// receive a copy.
func (m *Medium) transmit(from *Port, b []byte) (int, []*Port) {
	now := time.Now()
	dur := m.txDuration(len(b))

	m.mu.Lock()
	collided := now.Before(m.busyUntil)
	end := now.Add(dur)
	if end.After(m.busyUntil) {
		m.busyUntil = end
	}
	recipients := make([]*Port, 0, len(m.ports))
	for _, p := range m.ports {
		if p != from {
			recipients = append(recipients, p)
		}
	}
	m.mu.Unlock()

	if collided {
		// Truncate to simulate a garbled, partially-received frame.
		n := len(b) / 2
		if n == 0 && len(b) > 0 {
			n = 1
		}
		return n, recipients
	}
	return len(b), recipients
}

func (m *Medium) inUse() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Now().Before(m.busyUntil)
}

func (m *Medium) idleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Now().Before(m.busyUntil) {
		return 0
	}
	return time.Since(m.busyUntil)
}

// corrupt flips a byte in b with probability CorruptProb, invalidating
// its trailing CRC.
func (m *Medium) corrupt(b []byte) []byte {
	if m.params.CorruptProb <= 0 || len(b) == 0 {
		return b
	}
	if m.rng.Float64() >= m.params.CorruptProb {
		return b
	}
	out := append([]byte(nil), b...)
	out[0] ^= 0xFF
	return out
}

// Port is one station's handle onto a Medium, implementing
// dot11dcf.Radio.
type Port struct {
	addr   uint16
	medium *Medium
	inbox  chan []byte
	t0     time.Time
	once   sync.Once
	closed bool
	mu     sync.Mutex
	done   chan struct{}
}

// Transmit writes b onto the medium. The returned n is less than
// len(b) when a collision with a concurrent transmission was detected.
func (p *Port) Transmit(b []byte) (int, error) {
	if p.isClosed() {
		return 0, ErrClosed
	}
	n, recipients := p.medium.transmit(p, b)
	delivered := append([]byte(nil), b[:n]...)
	go func() {
		time.Sleep(p.medium.params.PropDelay)
		corrupted := p.medium.corrupt(delivered)
		for _, r := range recipients {
			select {
			case r.inbox <- corrupted:
			default:
			}
		}
	}()
	time.Sleep(p.medium.txDuration(len(b)))
	return n, nil
}

// Receive blocks until a frame arrives for this port or it is closed.
func (p *Port) Receive() ([]byte, error) {
	select {
	case b := <-p.inbox:
		return b, nil
	case <-p.done:
		return nil, ErrClosed
	}
}

// InUse reports whether the shared medium currently has an active
// transmission on it.
func (p *Port) InUse() bool { return p.medium.inUse() }

// IdleTime reports how long the shared medium has been continuously
// idle.
func (p *Port) IdleTime() time.Duration { return p.medium.idleTime() }

// Clock returns wall-clock monotonic time since this port was first
// used, satisfying dot11dcf.Radio.
func (p *Port) Clock() time.Duration {
	p.once.Do(func() { p.t0 = time.Now() })
	return time.Since(p.t0)
}

// Close detaches the port; any blocked Receive returns ErrClosed.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}

func (p *Port) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
