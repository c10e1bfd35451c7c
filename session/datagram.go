/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/wire"
)

// HandleDatagram processes one UDP datagram as a complete, self-contained
// request (spec §4.G): there is no read/write split and the client is
// never replied to, regardless of response_mode — only response_mode's
// forward bit has any effect on a udp-datagram session.
func HandleDatagram(deps Deps, datagram []byte) {
	c := core{Deps: deps}

	if uint64(len(datagram)) < wire.HeaderLen {
		c.Log.Warningf("%v", ferr.NewFramingSize("datagram shorter than header: %d bytes", len(datagram)))
		return
	}
	header, err := wire.ParseHeader(datagram[:wire.HeaderLen])
	if err != nil {
		c.Log.Warningf("%v", err)
		return
	}
	if err := wire.CheckSize(uint64(header.BodySize), uint64(header.CertitudeCount), c.MaxBody); err != nil {
		c.Log.Warningf("%v", err)
		return
	}

	want := uint64(wire.HeaderLen) + header.TailLen()
	if uint64(len(datagram)) != want {
		c.Log.Warningf("%v", ferr.NewFramingSize("datagram length %d, expected %d", len(datagram), want))
		return
	}

	_, body, err := wire.ParseTail(header, datagram[wire.HeaderLen:])
	if err != nil {
		c.Log.Warningf("%v", err)
		return
	}

	entries, perr := parseBody(body)
	if perr != nil {
		c.Counters.EntryParseError()
		c.Log.Warningf("%v", perr)
		return
	}

	for range entries {
		c.Counters.EntryReceived()
	}

	res := c.execute(header, entries, body)
	c.accountAndAlert(header.EventID, res)

	if header.ResponseMode.WantsForward() {
		c.forward(header, res, body)
	}
}
