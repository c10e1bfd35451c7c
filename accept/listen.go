/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package accept

import (
	"net"
	"os"

	"github.com/pkg/errors"
)

// ListenUnix binds a unix-stream socket at path. A stale socket file left
// behind by an unclean shutdown is removed first (spec §4.J supplemented
// behaviour, grounded on original_source's unlink-before-bind convention);
// a socket path occupied by anything else is left alone and bind fails
// naturally.
func ListenUnix(path string) (net.Listener, error) {
	if isStaleSocket(path) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "accept: remove stale socket %s", path)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "accept: listen unix %s", path)
	}
	return ln, nil
}

func isStaleSocket(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return false
	}
	// Best-effort liveness probe: if nothing accepts, the previous process
	// is gone and the path is safe to recycle.
	conn, err := net.Dial("unix", path)
	if err != nil {
		return true
	}
	conn.Close()
	return false
}

// ListenTCP binds a tcp-stream socket at addr ("host:port").
func ListenTCP(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "accept: listen tcp %s", addr)
	}
	return ln, nil
}

// ListenUDP binds a udp-datagram socket at addr ("host:port").
func ListenUDP(addr string) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "accept: resolve udp %s", addr)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "accept: listen udp %s", addr)
	}
	return conn, nil
}
