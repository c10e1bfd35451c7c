// Package flog is the filter runtime's logger: leveled, prefixed with the
// filter NAME, and safe to rotate on SIGHUP without losing in-flight writes.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package flog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level mirrors the `-l` CLI flag of spec.md §6.1.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = map[Level]string{
	LevelDebug:    "DEBUG",
	LevelInfo:     "INFO",
	LevelNotice:   "NOTICE",
	LevelWarning:  "WARNING",
	LevelError:    "ERROR",
	LevelCritical: "CRITICAL",
}

// ParseLevel accepts the spec's `-l` values plus the DEVELOPER alias.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "NOTICE":
		return LevelNotice, true
	case "WARNING":
		return LevelWarning, true
	case "ERROR":
		return LevelError, true
	case "CRITICAL":
		return LevelCritical, true
	case "DEVELOPER":
		return LevelDebug, true
	default:
		return 0, false
	}
}

// Logger is the process-wide singleton every filter instance embeds, built
// once at startup and passed by handle through the orchestrator (see
// SPEC_FULL.md §1.1) rather than reached for via package-level globals.
type Logger struct {
	name    string
	level   atomic.Int32
	mw      sync.Mutex
	w       *os.File
	path    string // empty => os.Stderr, never rotated
	nodaemon bool
}

// New builds a Logger writing to path (empty => stderr).
func New(name, path string, lvl Level, developer bool) (*Logger, error) {
	l := &Logger{name: name, path: path, nodaemon: developer}
	l.level.Store(int32(lvl))
	if path == "" {
		l.w = os.Stderr
		return l, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flog: open %s: %w", path, err)
	}
	l.w = f
	return l, nil
}

func (l *Logger) SetLevel(lvl Level) { l.level.Store(int32(lvl)) }
func (l *Logger) Level() Level       { return Level(l.level.Load()) }

// Rotate closes and reopens the file sink (spec §6.4, SIGHUP).
func (l *Logger) Rotate() error {
	if l.path == "" {
		return nil // stderr is never rotated
	}
	l.mw.Lock()
	defer l.mw.Unlock()
	if err := l.w.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.w = f
	return nil
}

func (l *Logger) log(lvl Level, format string, args ...any) {
	if lvl < l.Level() {
		return
	}
	line := fmt.Sprintf("%s %s [%s] %s\n",
		time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		levelNames[lvl], l.name, fmt.Sprintf(format, args...))
	l.mw.Lock()
	l.w.WriteString(line)
	l.mw.Unlock()
}

func (l *Logger) Debugf(format string, args ...any)    { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)     { l.log(LevelInfo, format, args...) }
func (l *Logger) Noticef(format string, args ...any)   { l.log(LevelNotice, format, args...) }
func (l *Logger) Warningf(format string, args ...any)  { l.log(LevelWarning, format, args...) }
func (l *Logger) Errorf(format string, args ...any)    { l.log(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...any) { l.log(LevelCritical, format, args...) }

// Close flushes and closes the file sink, a no-op for stderr.
func (l *Logger) Close() error {
	if l.path == "" {
		return nil
	}
	return l.w.Close()
}
