// Package classifier fixes the contract that an external collaborator (a
// reputation lookup, a DGA detector, a YARA scanner...) must satisfy toward
// the filter runtime. Classifier algorithms themselves are out of scope
// (spec.md §1); this package only pins the boundary.
//
// Grounded on original_source/samples/base/{AGenerator.hpp,ATask.cpp}: the
// Generator/Task split there becomes the Factory/Task split here — one
// Factory is built at startup from the configuration document, and it is
// asked for a fresh Task per submitted frame.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package classifier

import (
	"context"
	"encoding/json"

	"github.com/vultureproject/darwin-go/cache"
)

// Alert is what a Task wants the alert manager to record for one entry.
// It mirrors spec.md §3.5 minus the fields the alert manager itself fills
// in (evt_id, time, filter, rule_name default).
type Alert struct {
	Entry   string
	Score   uint16
	Tags    []string        // nil: alert manager falls back to its configured default
	Details json.RawMessage // opaque, nil allowed
}

// Result is what running a Task produces (spec.md §3.3).
type Result struct {
	// Certitudes has exactly len(Entries) elements, in the same order as
	// the request body's entries (spec §5 ordering guarantee). A
	// classifier that fails on one entry reports wire.ErrorReturn (101)
	// for that slot rather than aborting the whole batch (spec §7).
	Certitudes []uint16
	// ResponseBody is the classifier's own canonical re-serialisation of
	// its findings, used only when output_type == "parsed"; the runtime
	// separately tracks "raw" (untouched request body) and "log" (alert
	// buffer) output types (spec §4.F) without the classifier's help.
	ResponseBody string
	Alerts       []Alert
}

// Task is a one-shot classification unit: bounded to a single Run call on
// a worker-pool thread (spec §3.3 lifetime).
type Task interface {
	// Run executes the classification. There is no per-task cancellation
	// in the core runtime (spec §5): the worker pool's Shutdown waits for
	// every queued and running task, and ctx is cancelled only after all
	// workers have exited, so a running task does not see it cancelled.
	Run(ctx context.Context) (Result, error)
}

// HashFunc computes the cache key for one request. The default (see
// cache.DefaultHash) hashes the raw body; a classifier overrides this to
// key on a derived/normalised form instead (spec §4.B).
type HashFunc func(entries []json.RawMessage, rawBody []byte) uint64

// TaskInput is everything a Factory needs to build a Task: the parsed
// request body, identifying fields from the frame header, and the
// session's resolved threshold (spec §3.2: 0-100, else filter default).
type TaskInput struct {
	FilterCode uint32
	EventID    [16]byte
	Entries    []json.RawMessage
	RawBody    []byte
	Threshold  uint16

	// Cache is the shared response cache (spec §3.4). The Task is
	// responsible for taking Cache.Mutex around any Get/Insert pair
	// (spec §4.B/§5) — the runtime does not lock it on the Task's
	// behalf, since caching strategy (whole-body vs per-entry keying)
	// is the classifier's own decision.
	Cache *cache.Cache
	// Hash is the resolved hash function: the Factory's own override,
	// or cache.DefaultHash when the Factory returned nil.
	Hash HashFunc
}

// Factory builds a fresh Task per TaskInput. One Factory instance is built
// at runtime startup per spec.md §4.J and handed to the session layer.
type Factory interface {
	// Name is the classifier's human-readable identity, used as the
	// alert manager's default filter/rule name.
	Name() string
	// FilterCode is this classifier's fixed 4-byte code (spec §6.5);
	// code 0 is reserved and Factory implementations must not return it.
	FilterCode() uint32
	// DefaultCertitude is what Execute returns for an empty parsed body
	// (spec §8 boundary behaviour): certitudes[0] == 0 by default.
	DefaultCertitude() uint16
	// Hash returns this classifier's cache-keying function, or nil to
	// use cache.DefaultHash.
	Hash() HashFunc
	NewTask(in TaskInput) Task
}
