/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"errors"
	"io"
	"net"

	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/wire"
)

// Session is one accepted unix-stream or tcp-stream connection, running the
// read -> classify -> reply/forward -> read state machine of spec.md §4.F
// on its own goroutine until the peer disconnects, a framing error occurs,
// or the runtime shuts it down by closing conn.
type Session struct {
	core
	conn net.Conn
}

// New builds a stream Session over an already-accepted connection.
func New(deps Deps, conn net.Conn) *Session {
	return &Session{core: core{Deps: deps}, conn: conn}
}

// Serve runs until the connection closes. It always closes conn on return.
func (s *Session) Serve() {
	s.Counters.ClientConnected()
	defer func() {
		s.conn.Close()
		s.Counters.ClientDisconnected()
	}()

	headerBuf := make([]byte, wire.HeaderLen)
	for {
		if _, err := io.ReadFull(s.conn, headerBuf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.Log.Debugf("session: read header: %v", err)
			}
			return
		}
		header, err := wire.ParseHeader(headerBuf)
		if err != nil {
			s.Log.Errorf("%v", err)
			return
		}
		if err := wire.CheckSize(uint64(header.BodySize), uint64(header.CertitudeCount), s.MaxBody); err != nil {
			s.Log.Errorf("%v", err)
			return
		}

		tail := make([]byte, header.TailLen())
		if len(tail) > 0 {
			if _, err := io.ReadFull(s.conn, tail); err != nil {
				s.Log.Errorf("%v", ferr.NewFramingSize("unexpected eof reading tail: %v", err))
				return
			}
		}
		_, body, err := wire.ParseTail(header, tail)
		if err != nil {
			s.Log.Errorf("%v", err)
			return
		}

		if !s.handleFrame(header, body) {
			return
		}
	}
}

// handleFrame classifies and dispatches one frame. It returns false only
// when the connection itself must be torn down (a reply write failure does
// not count: spec §4.F's client_only/next_only dispatch rule is to resume
// reading, not terminate).
func (s *Session) handleFrame(header *wire.Header, body []byte) bool {
	entries, perr := parseBody(body)
	if perr != nil {
		s.Counters.EntryParseError()
		s.Log.Warningf("%v", perr)
		if header.ResponseMode.WantsClient() {
			reply := s.buildReply(header, errorResult(wire.DefaultCertitudeListSize), errorReplyBody(perr))
			if werr := writeFull(s.conn, reply); werr != nil {
				s.Log.Warningf("session: write parse-error reply: %v", werr)
			}
		}
		return true
	}

	for range entries {
		s.Counters.EntryReceived()
	}

	res := s.execute(header, entries, body)
	s.accountAndAlert(header.EventID, res)

	if header.ResponseMode.WantsClient() {
		reply := s.buildReply(header, res, nil)
		if werr := writeFull(s.conn, reply); werr != nil {
			s.Log.Warningf("session: write reply: %v", werr)
		}
	}
	if header.ResponseMode.WantsForward() {
		s.forward(header, res, body)
	}
	return true
}

func writeFull(conn net.Conn, frame []byte) error {
	off := 0
	for off < len(frame) {
		n, err := conn.Write(frame[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}
