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

// ServeStream runs the accept loop for a unix-stream or tcp-stream
// listener, spawning one Session goroutine per connection and tracking it
// in reg until it exits. It returns once ln is closed (spec §4.J shutdown:
// the orchestrator closes the listener to unblock Accept).
func ServeStream(ln net.Listener, deps session.Deps, reg *Registry, log *flog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warningf("accept: %v", err)
			continue
		}
		reg.Add(conn)
		go func() {
			defer reg.Remove(conn)
			session.New(deps, conn).Serve()
		}()
	}
}
