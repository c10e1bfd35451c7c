// Command darwinfilter is the filter runtime entrypoint of spec.md §6.1.
// CLI argument parsing is itself a Non-goal of the distilled spec, so this
// binds the orchestrator's Config to stdlib flag rather than anything
// fancier, in the same spirit as the teacher's own cmd/* binaries.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/vultureproject/darwin-go/classifier"
	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/runtime"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("darwinfilter", flag.ContinueOnError)

	name := fs.String("name", "", "filter name (required)")
	socket := fs.String("socket", "no", `listen socket: unix path, "ip:port", or "no"`)
	socketUDP := fs.Bool("socket-udp", false, "treat -socket as a udp-datagram endpoint")
	monitorSocket := fs.String("monitor-socket", "no", "monitor status socket, or \"no\" to disable")
	nextFilter := fs.String("next-filter", "no", `next filter: unix path, "ip:port", or "no"`)
	nextFilterUDP := fs.Bool("next-filter-udp", false, "treat -next-filter as a udp-datagram endpoint")
	output := fs.String("output", "raw", "output type forwarded downstream: raw|parsed|log|none")
	threshold := fs.Uint("threshold", uint(0), "match threshold 0-100; values >100 use the filter default")
	nbThread := fs.Int("nb-thread", 5, "worker pool size")
	cacheSize := fs.Int("cache-size", 0, "response cache capacity; 0 disables caching")
	logFile := fs.String("log-file", "", "log file path; empty logs to stderr")
	logLevel := fs.String("log-level", "INFO", "DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL|DEVELOPER")
	developer := fs.Bool("developer", false, "run in foreground developer mode")
	configFile := fs.String("config", "", "path to the JSON configuration document")
	pidFile := fs.String("pid-file", "", "PID file path; empty disables single-instance enforcement")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *name == "" {
		fmt.Fprintln(os.Stderr, "darwinfilter: -name is required")
		return 2
	}

	lvl, ok := flog.ParseLevel(*logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "darwinfilter: invalid -log-level %q\n", *logLevel)
		return 2
	}

	cfg := runtime.Config{
		FilterName:        *name,
		SocketSpec:        *socket,
		SocketUDP:         *socketUDP,
		MonitorSocketSpec: *monitorSocket,
		NextFilterSpec:    *nextFilter,
		NextFilterUDP:     *nextFilterUDP,
		Output:            *output,
		Threshold:         uint16(*threshold),
		NbThread:          *nbThread,
		CacheSize:         *cacheSize,
		LogFilePath:       *logFile,
		LogLevel:          lvl,
		Developer:         *developer,
		ConfigFilePath:    *configFile,
		PidFilePath:       *pidFile,
	}

	// TestFactory is the bundled reference classifier; a real deployment
	// links a purpose-built classifier.Factory in its place (spec §1:
	// classifier algorithms are an external collaborator).
	rt, err := runtime.New(cfg, classifier.TestFactory{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "darwinfilter: %v\n", err)
		return 1
	}
	if err := rt.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "darwinfilter: %v\n", err)
		return 1
	}
	return 0
}
