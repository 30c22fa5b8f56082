// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

// dot11demo wires two dot11dcf Macs across an in-memory simradio
// medium and drives a short send/receive exchange, the way the
// teacher's main.go wired Sender/Iface/Delay/Receiver into a Sim.
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/heistp/dot11dcf"
	"github.com/heistp/dot11dcf/internal/simradio"
)

const (
	addrA uint16 = 1
	addrB uint16 = 2
)

func main() {
	log.SetFlags(0)

	medium := simradio.NewMedium(simradio.DefaultParams())
	portA := medium.NewPort(addrA)
	portB := medium.NewPort(addrB)

	params := dot11dcf.RadioParams{
		RetryLimit: 7,
		SlotTime:   9 * time.Microsecond,
		SIFSTime:   16 * time.Microsecond,
		CWMin:      15,
		CWMax:      1023,
	}

	macA := dot11dcf.NewMac(addrA, portA, dot11dcf.DefaultConfig(params))
	macB := dot11dcf.NewMac(addrB, portB, dot11dcf.DefaultConfig(params))
	macA.Start()
	macB.Start()
	defer macA.Stop()
	defer macB.Stop()

	msg := []byte("hello over the air")
	if n := macA.Send(addrB, msg, len(msg)); n < 0 {
		log.Fatalf("send failed: %v", macA.Status())
	}

	buf := make([]byte, 256)
	n := macB.Recv(buf)
	if n < 0 {
		log.Fatalf("recv failed: %v", macB.Status())
	}
	fmt.Printf("B received: %q\n", buf[:n])
}
