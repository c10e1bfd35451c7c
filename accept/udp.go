/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package accept

import (
	"errors"
	"net"

	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/session"
)

// maxDatagram is the largest size a UDP datagram can have, independent
// of the configured body-size cap which is
// enforced inside session.HandleDatagram.
const maxDatagram = 65535

// ServeUDP runs the read loop for a udp-datagram socket. Each datagram is
// a complete, independent request (spec §4.G): it is copied off the shared
// read buffer and handed to its own goroutine so one slow classification
// never delays the next datagram's read.
func ServeUDP(conn *net.UDPConn, deps session.Deps, log *flog.Logger) {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warningf("accept: udp read: %v", err)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		go session.HandleDatagram(deps, datagram)
	}
}
