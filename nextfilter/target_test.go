/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nextfilter_test

import (
	"testing"

	"github.com/vultureproject/darwin-go/nextfilter"
)

func TestParseTarget(t *testing.T) {
	tgt, err := nextfilter.ParseTarget("no", false)
	if err != nil || tgt.Kind != nextfilter.KindNone {
		t.Fatalf("ParseTarget(no) = %+v, %v", tgt, err)
	}

	tgt, err = nextfilter.ParseTarget("/run/darwin/next.sock", false)
	if err != nil || tgt.Kind != nextfilter.KindUnix || tgt.Path != "/run/darwin/next.sock" {
		t.Fatalf("ParseTarget(unix) = %+v, %v", tgt, err)
	}

	tgt, err = nextfilter.ParseTarget("127.0.0.1:4242", false)
	if err != nil || tgt.Kind != nextfilter.KindTCP || tgt.IP != "127.0.0.1" || tgt.Port != 4242 {
		t.Fatalf("ParseTarget(tcp) = %+v, %v", tgt, err)
	}
	if tgt.Address() != "127.0.0.1:4242" || tgt.Network() != "tcp" {
		t.Fatalf("tcp target rendering = %s/%s", tgt.Network(), tgt.Address())
	}

	tgt, err = nextfilter.ParseTarget("127.0.0.1:4242", true)
	if err != nil || tgt.Kind != nextfilter.KindUDP {
		t.Fatalf("ParseTarget(udp) = %+v, %v", tgt, err)
	}

	if _, err := nextfilter.ParseTarget("not-a-valid-target", false); err == nil {
		t.Fatal("expected error for malformed target")
	}
}
