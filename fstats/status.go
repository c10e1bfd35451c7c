// Package fstats holds the process-global atomic counters and status enum
// of spec.md §4.I. Counters are modeled as prometheus.Counter/Gauge so the
// Monitor can read them via Write(&dto.Metric{}) (SPEC_FULL.md §2) without
// ever exposing a /metrics HTTP endpoint — the wire format stays the
// one-shot JSON document of spec §6.3.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fstats

import (
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
)

// Status is the filter_status enum of spec §3.6/§4.I. It only moves
// forward: Starting -> Configuring -> Running -> Stopping.
type Status int32

const (
	Starting Status = iota
	Configuring
	Running
	Stopping
)

func (s Status) String() string {
	switch s {
	case Starting:
		return "starting"
	case Configuring:
		return "configuring"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Counters is the process-wide singleton built once at startup and handed
// through the runtime orchestrator (never a package-level global, so there
// is no late static initialisation).
type Counters struct {
	status atomic.Int32

	clientsNum   prometheus.Gauge
	received     prometheus.Counter
	parseError   prometheus.Counter
	matchCount   prometheus.Counter
}

// New builds a fresh Counters instance, status Starting.
func New() *Counters {
	c := &Counters{
		clientsNum: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "darwin_filter_clients_num",
			Help: "Number of currently live sessions.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darwin_filter_received_total",
			Help: "Total entries classified since start.",
		}),
		parseError: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darwin_filter_parse_error_total",
			Help: "Total entries failing to parse since start.",
		}),
		matchCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darwin_filter_match_count_total",
			Help: "Total entries whose certitude crossed threshold since start.",
		}),
	}
	c.status.Store(int32(Starting))
	return c
}

// Advance moves filter_status forward. It is a no-op (and returns false) if
// next would be a reversal, enforcing the monotonic invariant of spec §3.6.
func (c *Counters) Advance(next Status) bool {
	for {
		cur := Status(c.status.Load())
		if next <= cur {
			return false
		}
		if c.status.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

func (c *Counters) Status() Status { return Status(c.status.Load()) }

func (c *Counters) ClientConnected()    { c.clientsNum.Inc() }
func (c *Counters) ClientDisconnected() { c.clientsNum.Dec() }
func (c *Counters) EntryReceived()      { c.received.Inc() }
func (c *Counters) EntryParseError()    { c.parseError.Inc() }
func (c *Counters) EntryMatched()       { c.matchCount.Inc() }

// Snapshot is the JSON document the Monitor replies with (spec §6.3).
type Snapshot struct {
	FilterStatus string `json:"filter_status"`
	ClientsNum   int64  `json:"clients_num"`
	Received     int64  `json:"received"`
	ParseError   int64  `json:"parse_error"`
	MatchCount   int64  `json:"match_count"`
}

func readGauge(g prometheus.Gauge) int64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetGauge().GetValue())
}

func readCounter(c prometheus.Counter) int64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int64(m.GetCounter().GetValue())
}

// Snapshot reads every counter exactly once, lock-free.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FilterStatus: c.Status().String(),
		ClientsNum:   readGauge(c.clientsNum),
		Received:     readCounter(c.received),
		ParseError:   readCounter(c.parseError),
		MatchCount:   readCounter(c.matchCount),
	}
}
