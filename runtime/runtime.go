// Package runtime is the orchestrator of spec.md §4.J: it owns startup
// sequencing (configure -> bind -> run), wires every other package's
// instance together into one session.Deps, and drives shutdown on signal.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/vultureproject/darwin-go/accept"
	"github.com/vultureproject/darwin-go/alert"
	"github.com/vultureproject/darwin-go/broker"
	"github.com/vultureproject/darwin-go/cache"
	"github.com/vultureproject/darwin-go/classifier"
	"github.com/vultureproject/darwin-go/config"
	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/flog"
	"github.com/vultureproject/darwin-go/fstats"
	"github.com/vultureproject/darwin-go/monitor"
	"github.com/vultureproject/darwin-go/nextfilter"
	"github.com/vultureproject/darwin-go/session"
	"github.com/vultureproject/darwin-go/wire"
	"github.com/vultureproject/darwin-go/workpool"
)

// Config is every CLI-derived setting of spec.md §6.1, plus the path to
// the JSON configuration document of §6.2.
type Config struct {
	FilterName        string
	SocketSpec        string // "no" | unix path | "ip:port"
	SocketUDP         bool
	MonitorSocketSpec string // "no" | unix path | "ip:port"
	NextFilterSpec    string // "no" | unix path | "ip:port"
	NextFilterUDP     bool
	Output            string // raw | parsed | log | none
	Threshold         uint16
	NbThread          int
	CacheSize         int
	LogFilePath       string
	LogLevel          flog.Level
	Developer         bool
	ConfigFilePath    string
	PidFilePath       string
	MaxBody           uint64
}

// Runtime holds every long-lived instance built at startup.
type Runtime struct {
	cfg Config

	log       *flog.Logger
	counters  *fstats.Counters
	alertMgr  *alert.Manager
	redisBrk  *broker.RedisBroker
	pool      *workpool.Pool
	connector *nextfilter.Connector
	registry  *accept.Registry
	pid       *pidFile

	deps session.Deps
}

// New builds every dependency and wires them into a session.Deps, but
// binds no sockets yet (spec §4.J's configure phase precedes bind).
func New(cfg Config, factory classifier.Factory) (*Runtime, error) {
	log, err := flog.New(cfg.FilterName, cfg.LogFilePath, cfg.LogLevel, cfg.Developer)
	if err != nil {
		return nil, ferr.NewFatal("build logger", err)
	}

	counters := fstats.New()
	counters.Advance(fstats.Configuring)

	pid, err := acquirePIDFile(cfg.PidFilePath)
	if err != nil {
		return nil, err
	}

	var doc *config.Document
	if cfg.ConfigFilePath != "" {
		doc, err = config.Load(cfg.ConfigFilePath, log)
		if err != nil {
			pid.release()
			return nil, err
		}
	} else {
		doc = &config.Document{}
	}

	alertMgr := alert.NewManager(log)
	var brk alert.Broker
	var redisBrk *broker.RedisBroker
	if doc.HasBroker() {
		redisBrk = broker.NewRedisBroker(doc.BrokerOptions())
		brk = redisBrk
	}
	warning, err := alertMgr.Configure(doc.AlertConfig(), cfg.FilterName, brk)
	if err != nil {
		pid.release()
		return nil, err
	}
	if warning != "" {
		log.Warningf("%s", warning)
	}
	alertMgr.SetRuleName(cfg.FilterName)

	outputType, err := session.ParseOutputType(cfg.Output)
	if err != nil {
		pid.release()
		return nil, ferr.NewFatal("parse output type", err)
	}

	var connector *nextfilter.Connector
	nfTarget, err := nextfilter.ParseTarget(cfg.NextFilterSpec, cfg.NextFilterUDP)
	if err != nil {
		pid.release()
		return nil, ferr.NewFatal("parse next filter target", err)
	}
	if nfTarget.Kind != nextfilter.KindNone {
		connector = nextfilter.New(nfTarget, log, nil)
	}

	pool := workpool.New(context.Background(), cfg.NbThread, workpool.DefaultHighWaterMark)

	hash := factory.Hash()
	if hash == nil {
		hash = func(_ []json.RawMessage, rawBody []byte) uint64 { return cache.DefaultHash(rawBody) }
	}

	maxBody := cfg.MaxBody
	if maxBody == 0 {
		maxBody = wire.MaxBody
	}

	deps := session.Deps{
		Factory:    factory,
		Cache:      cache.New(cfg.CacheSize),
		Hash:       hash,
		AlertMgr:   alertMgr,
		Connector:  connector,
		Pool:       pool,
		Counters:   counters,
		Log:        log,
		OutputType: outputType,
		Threshold:  session.ResolveThreshold(cfg.Threshold),
		MaxBody:    maxBody,
	}

	return &Runtime{
		cfg:       cfg,
		log:       log,
		counters:  counters,
		alertMgr:  alertMgr,
		redisBrk:  redisBrk,
		pool:      pool,
		connector: connector,
		registry:  accept.NewRegistry(),
		pid:       pid,
		deps:      deps,
	}, nil
}

// Run binds every configured socket, serves until a terminating signal or
// ctx is cancelled, then shuts down in reverse order.
func (r *Runtime) Run(ctx context.Context) error {
	mainTarget, err := nextfilter.ParseTarget(r.cfg.SocketSpec, r.cfg.SocketUDP)
	if err != nil {
		return ferr.NewFatal("parse listen socket", err)
	}
	if mainTarget.Kind == nextfilter.KindNone {
		return ferr.NewFatal("no listen socket configured", nil)
	}

	var mainLn net.Listener
	var udpConn *net.UDPConn
	switch mainTarget.Kind {
	case nextfilter.KindUnix:
		mainLn, err = accept.ListenUnix(mainTarget.Path)
	case nextfilter.KindTCP:
		mainLn, err = accept.ListenTCP(mainTarget.Address())
	case nextfilter.KindUDP:
		udpConn, err = accept.ListenUDP(mainTarget.Address())
	}
	if err != nil {
		return ferr.NewFatal("bind listen socket", err)
	}

	var monLn net.Listener
	monTarget, err := nextfilter.ParseTarget(r.cfg.MonitorSocketSpec, false)
	if err != nil {
		return ferr.NewFatal("parse monitor socket", err)
	}
	if monTarget.Kind == nextfilter.KindUnix {
		monLn, err = accept.ListenUnix(monTarget.Path)
	} else if monTarget.Kind == nextfilter.KindTCP {
		monLn, err = accept.ListenTCP(monTarget.Address())
	}
	if err != nil {
		return ferr.NewFatal("bind monitor socket", err)
	}

	if r.connector != nil {
		go r.connector.Run()
	}

	r.counters.Advance(fstats.Running)
	r.log.Noticef("%s: running", r.cfg.FilterName)

	if mainLn != nil {
		go accept.ServeStream(mainLn, r.deps, r.registry, r.log)
	}
	if udpConn != nil {
		go accept.ServeUDP(udpConn, r.deps, r.log)
	}
	if monLn != nil {
		mon := monitor.New(monLn, r.counters, r.log)
		go mon.Serve()
	}

	r.waitForShutdownSignal(ctx)
	r.shutdown(mainLn, udpConn, monLn)
	return nil
}

// waitForShutdownSignal blocks until ctx is cancelled or a terminating
// signal arrives. SIGHUP rotates logs in place rather than exiting
// (spec §6.4); SIGPIPE is ignored so a client closing its read side never
// takes the whole process down (spec §6.4 special-value handling).
func (r *Runtime) waitForShutdownSignal(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM, unix.SIGQUIT, unix.SIGHUP, unix.SIGPIPE)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			switch sig {
			case unix.SIGHUP:
				r.log.Noticef("received SIGHUP: rotating logs")
				if err := r.log.Rotate(); err != nil {
					r.log.Errorf("rotate log: %v", err)
				}
				if err := r.alertMgr.Rotate(); err != nil {
					r.log.Errorf("rotate alert log: %v", err)
				}
			case unix.SIGPIPE:
				// a peer closing its read side must not kill the process
			default:
				r.log.Noticef("received %v: shutting down", sig)
				return
			}
		}
	}
}

func (r *Runtime) shutdown(mainLn net.Listener, udpConn *net.UDPConn, monLn net.Listener) {
	r.counters.Advance(fstats.Stopping)

	if mainLn != nil {
		mainLn.Close()
	}
	if udpConn != nil {
		udpConn.Close()
	}
	if monLn != nil {
		monLn.Close()
	}
	r.registry.CloseAll()

	if r.connector != nil {
		r.connector.Stop()
	}
	r.pool.Shutdown()
	if r.redisBrk != nil {
		r.redisBrk.Close()
	}

	r.pid.release()
	r.log.Noticef("%s: stopped", r.cfg.FilterName)
	r.log.Close()
}
