/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package fstats_test

import (
	"testing"

	"github.com/vultureproject/darwin-go/fstats"
)

func TestStatusMonotonic(t *testing.T) {
	c := fstats.New()
	if c.Status() != fstats.Starting {
		t.Fatalf("expected Starting, got %v", c.Status())
	}
	if !c.Advance(fstats.Configuring) {
		t.Fatal("expected advance to Configuring to succeed")
	}
	if c.Advance(fstats.Starting) {
		t.Fatal("reversal to Starting must be rejected")
	}
	if !c.Advance(fstats.Running) {
		t.Fatal("expected advance to Running to succeed")
	}
	if !c.Advance(fstats.Stopping) {
		t.Fatal("expected advance to Stopping to succeed")
	}
	if c.Advance(fstats.Running) {
		t.Fatal("reversal to Running must be rejected")
	}
}

func TestCountersSnapshot(t *testing.T) {
	c := fstats.New()
	c.ClientConnected()
	c.ClientConnected()
	c.EntryReceived()
	c.EntryReceived()
	c.EntryReceived()
	c.EntryParseError()
	c.EntryMatched()

	snap := c.Snapshot()
	if snap.ClientsNum != 2 {
		t.Fatalf("clients_num = %d, want 2", snap.ClientsNum)
	}
	if snap.Received != 3 {
		t.Fatalf("received = %d, want 3", snap.Received)
	}
	if snap.ParseError != 1 {
		t.Fatalf("parse_error = %d, want 1", snap.ParseError)
	}
	if snap.MatchCount != 1 {
		t.Fatalf("match_count = %d, want 1", snap.MatchCount)
	}
	if snap.FilterStatus != "starting" {
		t.Fatalf("filter_status = %s, want starting", snap.FilterStatus)
	}
}
