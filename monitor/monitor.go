// Package monitor serves the one-shot JSON status document of spec.md §6.3
// on its own dedicated socket: accept, write the current Snapshot as a
// single UTF-8 line with no trailing newline, close.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package monitor

import (
	"errors"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/fstats"
)

// writeTimeout bounds how long a single reply may take; a monitor client
// that stalls mid-read never pins a goroutine open indefinitely.
const writeTimeout = 5 * time.Second

// Monitor serves fstats.Counters.Snapshot() to any client that connects.
type Monitor struct {
	ln       net.Listener
	counters *fstats.Counters
	log      *flog.Logger
}

// New builds a Monitor bound to an already-listening socket.
func New(ln net.Listener, counters *fstats.Counters, log *flog.Logger) *Monitor {
	return &Monitor{ln: ln, counters: counters, log: log}
}

// Serve runs the accept loop until ln is closed.
func (m *Monitor) Serve() {
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			m.log.Warningf("%v", &ferr.MonitorTransient{Cause: err})
			continue
		}
		go m.reply(conn)
	}
}

func (m *Monitor) reply(conn net.Conn) {
	defer conn.Close()

	snap := m.counters.Snapshot()
	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(snap)
	if err != nil {
		m.log.Errorf("monitor: marshal snapshot: %v", err)
		return
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write(payload); err != nil {
		m.log.Noticef("%v", &ferr.MonitorTransient{Cause: err})
	}
}
