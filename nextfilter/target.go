// Package nextfilter owns the single outbound connection to one downstream
// filter (spec.md §4.D): a dedicated goroutine draining a condvar-guarded
// FIFO queue, reconnecting with capped exponential backoff.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package nextfilter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the sum type design-noted in SPEC_FULL.md/spec.md §9:
// None | Unix(path) | Tcp(ip,port) | Udp(ip,port). Mixed specifications
// are rejected at parse time.
type Kind int

const (
	KindNone Kind = iota
	KindUnix
	KindTCP
	KindUDP
)

// Target is a parsed NEXT_FILTER positional argument (spec §6.1): the
// literal "no", a unix socket path, or an "ip:port" pair (whose transport
// is TCP unless -v selects UDP).
type Target struct {
	Kind Kind
	Path string
	IP   string
	Port int
}

func (t Target) Network() string {
	switch t.Kind {
	case KindUnix:
		return "unix"
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	default:
		return ""
	}
}

func (t Target) Address() string {
	switch t.Kind {
	case KindUnix:
		return t.Path
	case KindTCP, KindUDP:
		return fmt.Sprintf("%s:%d", t.IP, t.Port)
	default:
		return ""
	}
}

// ParseTarget parses the NEXT_FILTER CLI argument. udp selects the UDP
// transport for an "ip:port" form (the -v flag of spec §6.1); it has no
// effect on a path argument, which is always a unix socket.
func ParseTarget(spec string, udp bool) (Target, error) {
	if spec == "no" {
		return Target{Kind: KindNone}, nil
	}
	if strings.HasPrefix(spec, "/") {
		return Target{Kind: KindUnix, Path: spec}, nil
	}
	host, portStr, err := splitHostPort(spec)
	if err != nil {
		return Target{}, errors.Wrapf(err, "next-filter target %q", spec)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Target{}, errors.Wrapf(err, "next-filter target %q: invalid port", spec)
	}
	kind := KindTCP
	if udp {
		kind = KindUDP
	}
	return Target{Kind: kind, IP: host, Port: port}, nil
}

func splitHostPort(spec string) (host, port string, err error) {
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return "", "", errors.New("expected ip:port or an absolute unix socket path")
	}
	return spec[:idx], spec[idx+1:], nil
}
