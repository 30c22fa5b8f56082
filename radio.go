// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import "time"

// Radio is the opaque physical-layer port the MAC drives. It is assumed
// to be internally thread-safe and exclusively usable by one side at a
// time: the sender holds it during Transmit, the receiver during
// Receive. Implementations are not part of this module's CORE (spec
// §1); internal/simradio provides one for tests and the demo command.
type Radio interface {
	// Transmit writes b to the medium and returns the number of bytes
	// actually accepted. Fewer bytes than len(b) signals a collision.
	Transmit(b []byte) (n int, err error)
	// Receive blocks until a frame arrives and returns its raw bytes.
	Receive() ([]byte, error)
	// InUse reports whether the medium is currently busy.
	InUse() bool
	// IdleTime reports how long the medium has been continuously idle.
	IdleTime() time.Duration
	// Clock returns the radio's own monotonic clock reading. SyncClock
	// does not read it; it keeps its own monotonic base from time.Now.
	Clock() time.Duration
}

// RadioParams carries the 802.11 constants a Radio implementation
// exposes to the MAC (spec §6).
type RadioParams struct {
	RetryLimit int
	SlotTime   time.Duration
	SIFSTime   time.Duration
	CWMin      int
	CWMax      int
}
