// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// Mac is the public MAC-layer interface a host drives: it wraps a
// Radio with the CSMA/CA sender and receiver pipelines, the four
// bounded queues linking them, and a shared clock. A Mac instance is
// safe for concurrent use by any number of callers invoking Send, Recv,
// Status and Command.
type Mac struct {
	localAddr uint16
	id        xid.ID
	cfg       *Config
	clock     *SyncClock
	radio     Radio
	log       *LoggingConfig
	metrics   *Metrics

	sendData *Queue
	sendAck  *Queue
	recvAck  *Queue
	recvData *Queue

	status atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	recvMu  sync.Mutex
	recvBuf []byte // partial frame left over from a short Recv buffer
}

// NewMac returns a Mac bound to localAddr and radio, with cfg governing
// its timing parameters. Call Start to launch the sender and receiver
// goroutines.
func NewMac(localAddr uint16, radio Radio, cfg *Config) *Mac {
	id := xid.New()
	log := NewLoggingConfig()
	log.SetDebugLevel(cfg.debugLevel())
	m := &Mac{
		localAddr: localAddr,
		id:        id,
		cfg:       cfg,
		clock:     NewSyncClock(localAddr, Clock(cfg.BeaconInterval), Clock(cfg.RTTEstimate), Clock(cfg.SlotTime)),
		radio:     radio,
		log:       log,
		metrics:   NewMetrics(id.String()),
		sendData:  NewQueue(SendDataCapacity),
		sendAck:   NewQueue(SendAckCapacity),
		recvAck:   NewQueue(RecvAckCapacity),
		recvData:  NewQueue(RecvDataCapacity),
	}
	m.metrics.BindClockOffset(m.clock)
	m.status.Store(int32(SUCCESS))
	return m
}

// ID returns this Mac's correlation ID, used in logs and metrics labels.
func (m *Mac) ID() string { return m.id.String() }

// Start launches the sender and receiver goroutines.
func (m *Mac) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel

	sender := NewSendTask(m.localAddr, m.radio, m.clock, m.cfg,
		m.sendData, m.sendAck, m.recvAck, &m.status, m.metrics,
		m.log.For(m.id.String(), "sender"))
	receiver := NewRecvTask(m.localAddr, m.radio, m.clock,
		m.sendAck, m.recvAck, m.recvData, m.metrics,
		m.log.For(m.id.String(), "receiver"))

	m.wg.Add(2)
	go func() { defer m.wg.Done(); sender.Run(ctx) }()
	go func() { defer m.wg.Done(); receiver.Run(ctx) }()
}

// Stop cancels the sender and receiver goroutines and waits for them to
// exit. If the radio implements io.Closer, Stop closes it so that a
// receiver blocked in Receive returns. In-flight transmissions are
// abandoned, not retried.
func (m *Mac) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if c, ok := m.radio.(io.Closer); ok {
		_ = c.Close()
	}
	m.wg.Wait()
}

// Send splits up to length bytes of data into MaxPayload-sized frames
// addressed to dest and enqueues them onto send_data without blocking,
// wrapping each as a BEACON instead of DATA when dest is Broadcast. It
// returns the number of bytes actually queued, which may be less than
// length if send_data fills partway through.
func (m *Mac) Send(dest uint16, data []byte, length int) int {
	if length < 0 {
		m.status.Store(int32(BAD_BUF_SIZE))
		return -int(BAD_BUF_SIZE)
	}
	if length > len(data) {
		m.status.Store(int32(ILLEGAL_ARGUMENT))
		return -int(ILLEGAL_ARGUMENT)
	}
	typ := FrameData
	if dest == Broadcast {
		typ = FrameBeacon
	}

	queued := 0
	for queued < length {
		end := queued + MaxPayload
		if end > length {
			end = length
		}
		chunk := append([]byte(nil), data[queued:end]...)
		f := Build(typ, dest, m.localAddr, chunk, 0, m.clock.Time())
		if !m.sendData.TryPut(f) {
			if queued == 0 {
				m.status.Store(int32(INSUFFICIENT_BUFFER_SPACE))
				return -int(INSUFFICIENT_BUFFER_SPACE)
			}
			m.status.Store(int32(SUCCESS))
			return queued
		}
		queued = end
	}
	if length == 0 {
		f := Build(typ, dest, m.localAddr, nil, 0, m.clock.Time())
		if !m.sendData.TryPut(f) {
			m.status.Store(int32(INSUFFICIENT_BUFFER_SPACE))
			return -int(INSUFFICIENT_BUFFER_SPACE)
		}
	}
	m.status.Store(int32(SUCCESS))
	return queued
}

// Recv copies the next delivered frame's payload into buf, blocking
// until one is available. If buf is shorter than the pending payload,
// the remainder is retained and returned on the next call (spec §6's
// partial-read semantics). Recv returns 0 if Stop is called while it's
// blocked (spec §5's cancellation semantics), and
// INSUFFICIENT_BUFFER_SPACE only when buf has no room at all.
func (m *Mac) Recv(buf []byte) int {
	if len(buf) == 0 {
		m.status.Store(int32(INSUFFICIENT_BUFFER_SPACE))
		return -int(INSUFFICIENT_BUFFER_SPACE)
	}
	m.recvMu.Lock()
	defer m.recvMu.Unlock()

	if len(m.recvBuf) == 0 {
		ctx := m.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		f, ok := m.recvData.Poll(ctx)
		if !ok {
			return 0
		}
		m.recvBuf = f.Payload
	}
	n := copy(buf, m.recvBuf)
	m.recvBuf = m.recvBuf[n:]
	m.status.Store(int32(SUCCESS))
	return n
}

// Status returns the most recently recorded Status.
func (m *Mac) Status() Status {
	return Status(m.status.Load())
}

// Command implements the host's out-of-band control channel.
func (m *Mac) Command(cmd Command, val int) int {
	switch cmd {
	case CmdDumpSettings:
		s, err := m.cfg.Dump()
		if err != nil {
			m.status.Store(int32(UNSPECIFIED_ERROR))
			return -int(UNSPECIFIED_ERROR)
		}
		m.log.For(m.id.String(), "config").Info("settings", "yaml", s)
	case CmdSetDebugLevel:
		m.cfg.setDebugLevel(val)
		m.log.SetDebugLevel(val)
	case CmdSetSlotSelectionPolicy:
		m.cfg.setSlotSelectionPolicy(val)
	case CmdSetBeaconInterval:
		m.clock.SetBeaconInterval(Clock(val) * Clock(1e6))
	default:
		m.status.Store(int32(ILLEGAL_ARGUMENT))
		return -int(ILLEGAL_ARGUMENT)
	}
	m.status.Store(int32(SUCCESS))
	return int(SUCCESS)
}

// Collector returns this Mac's Prometheus collector for registration by
// the host process.
func (m *Mac) Collector() *Metrics {
	return m.metrics
}
