// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

// Status is the atomic status code surfaced to the upper layer by
// Mac.Status. Only one Status is current at a time; the sender
// overwrites it as each transmission attempt resolves.
type Status int32

const (
	SUCCESS Status = iota + 1
	UNSPECIFIED_ERROR
	RF_INIT_FAILED
	TX_DELIVERED
	TX_FAILED
	BAD_BUF_SIZE
	BAD_ADDRESS
	BAD_MAC_ADDRESS
	ILLEGAL_ARGUMENT
	INSUFFICIENT_BUFFER_SPACE
)

func (s Status) String() string {
	switch s {
	case SUCCESS:
		return "SUCCESS"
	case UNSPECIFIED_ERROR:
		return "UNSPECIFIED_ERROR"
	case RF_INIT_FAILED:
		return "RF_INIT_FAILED"
	case TX_DELIVERED:
		return "TX_DELIVERED"
	case TX_FAILED:
		return "TX_FAILED"
	case BAD_BUF_SIZE:
		return "BAD_BUF_SIZE"
	case BAD_ADDRESS:
		return "BAD_ADDRESS"
	case BAD_MAC_ADDRESS:
		return "BAD_MAC_ADDRESS"
	case ILLEGAL_ARGUMENT:
		return "ILLEGAL_ARGUMENT"
	case INSUFFICIENT_BUFFER_SPACE:
		return "INSUFFICIENT_BUFFER_SPACE"
	default:
		return "UNKNOWN_STATUS"
	}
}

// Command selects the operation performed by Mac.Command.
type Command int

const (
	// CmdDumpSettings logs the current Config as YAML.
	CmdDumpSettings Command = iota
	// CmdSetDebugLevel sets the logging debug level from val.
	CmdSetDebugLevel
	// CmdSetSlotSelectionPolicy sets the deterministic backoff override
	// from val: non-zero forces backoff = CW*slot_time, 0 restores the
	// random draw.
	CmdSetSlotSelectionPolicy
	// CmdSetBeaconInterval sets the beacon interval, in milliseconds,
	// from val. A negative value disables beacons.
	CmdSetBeaconInterval
)
