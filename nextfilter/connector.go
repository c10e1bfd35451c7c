/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nextfilter

import (
	"container/list"
	"net"
	"sync"
	"time"

	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/flog"
)

// State is the connector's small state machine (spec §4.D):
//
//	Disconnected --connect ok--> Ready --send ok--> Ready
//	     ^                         |
//	     +--send error / eof-------+
type State int32

const (
	Disconnected State = iota
	Ready
)

// MaxBackoff caps the exponential reconnect backoff (spec §4.D design
// default 30s).
const MaxBackoff = 30 * time.Second

const initialBackoff = 250 * time.Millisecond

// Connector owns a single outbound connection to one downstream filter. It
// runs its own dedicated goroutine; Send is safe to call from any
// goroutine (it only touches the condvar-guarded queue).
type Connector struct {
	target Target
	log    *flog.Logger
	dial   func() (net.Conn, error)

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List // of []byte, head = next to send
	stopped bool

	state State

	doneCh chan struct{}
}

// New builds a Connector for target. dial is overridable for tests; a nil
// dial uses net.Dial against target.Network()/Address().
func New(target Target, log *flog.Logger, dial func() (net.Conn, error)) *Connector {
	c := &Connector{
		target: target,
		log:    log,
		queue:  list.New(),
		doneCh: make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	if dial != nil {
		c.dial = dial
	} else {
		c.dial = func() (net.Conn, error) {
			return net.DialTimeout(target.Network(), target.Address(), 5*time.Second)
		}
	}
	return c
}

// Send enqueues frame and returns immediately (spec §4.D send contract).
func (c *Connector) Send(frame []byte) {
	c.mu.Lock()
	c.queue.PushBack(frame)
	c.cond.Signal()
	c.mu.Unlock()
}

// Run is the connector's dedicated loop; call it in its own goroutine.
func (c *Connector) Run() {
	defer close(c.doneCh)

	var conn net.Conn
	backoff := initialBackoff

	for {
		c.mu.Lock()
		for c.queue.Len() == 0 && !c.stopped {
			c.cond.Wait()
		}
		if c.queue.Len() == 0 {
			c.mu.Unlock()
			break
		}
		if c.stopped {
			// Stop arrived between send attempts: nothing is "the
			// current frame" right now, so everything queued is
			// dropped rather than attempted (spec §4.D shutdown).
			dropped := c.queue.Len()
			c.queue.Init()
			c.mu.Unlock()
			c.log.Warningf("next-filter: dropped %d undelivered frame(s) on shutdown", dropped)
			break
		}
		front := c.queue.Front()
		frame := front.Value.([]byte)
		c.mu.Unlock()

		if conn == nil {
			var err error
			conn, err = c.connectWithBackoff(&backoff)
			if err != nil {
				// Stop() was called while backing off: drop the whole
				// remaining queue, including this never-sent frame.
				c.mu.Lock()
				dropped := c.queue.Len()
				c.queue.Init()
				c.mu.Unlock()
				c.log.Warningf("next-filter: dropped %d undelivered frame(s) on shutdown", dropped)
				break
			}
			backoff = initialBackoff
			c.setState(Ready)
		}

		if err := writeFull(conn, frame); err != nil {
			c.log.Errorf("%v", &ferr.DownstreamSend{Cause: err})
			conn.Close()
			conn = nil
			c.setState(Disconnected)
			continue // frame stays at head of queue: at-least-once, never truncated
		}

		c.mu.Lock()
		c.queue.Remove(front)
		c.mu.Unlock()
	}

	if conn != nil {
		conn.Close()
	}
}

// connectWithBackoff blocks (respecting Stop) until connected or stopped.
func (c *Connector) connectWithBackoff(backoff *time.Duration) (net.Conn, error) {
	for {
		conn, err := c.dial()
		if err == nil {
			return conn, nil
		}
		c.log.Warningf("%v", &ferr.DownstreamConnect{Cause: err})

		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return nil, err
		}

		timer := time.NewTimer(*backoff)
		<-timer.C
		*backoff *= 2
		if *backoff > MaxBackoff {
			*backoff = MaxBackoff
		}
	}
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

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// QueueLen reports the number of frames awaiting delivery, for tests and
// monitoring.
func (c *Connector) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// Stop sets the stop flag and signals the condvar. It drains up to the
// frame currently being sent and then exits; anything still queued is
// logged and dropped (spec §4.D shutdown).
func (c *Connector) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.cond.Broadcast()
	c.mu.Unlock()
	<-c.doneCh
}
