// Package alert formats and fans out alert records to a file sink and/or a
// broker sink (spec.md §3.5, §4.C). The broker itself — a Redis-like
// key-value store — is an external collaborator (spec §1 Out of scope):
// this package only depends on the opaque Broker interface below.
//
// Grounded on original_source/samples/base/AlertManager.hpp: RETRY=1,
// the {log, redis} sink pair, and SetFilterName/SetRuleName/SetTags
// configured once at startup and defaulted onto every alert that doesn't
// override them.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/vultureproject/darwin-go/ferr"
	"github.com/vultureproject/darwin-go/flog"
)

// RETRY is the configured number of file-write retries after reopening
// (spec §4.C), matching the original's AlertManager::RETRY = 1.
const RETRY = 1

// Broker is the opaque async command interface toward the external
// key-value store (spec §1): publish to a pub/sub channel, or push onto a
// list. A nil Broker means no broker sink is configured.
type Broker interface {
	Publish(channel string, payload []byte) error
	RPush(list string, payload []byte) error
}

// Config is the subset of spec.md §6.2's configuration JSON this package
// consumes.
type Config struct {
	LogFilePath      string   `json:"log_file_path"`
	RedisListName    string   `json:"redis_list_name"`
	RedisChannelName string   `json:"redis_channel_name"`
	AlertTags        []string `json:"alert_tags"`
}

// Manager is the process-wide singleton configured once at startup
// (constructed by the orchestrator, not late-static-initialised) and
// passed by handle through the orchestrator.
type Manager struct {
	log *flog.Logger

	fileMu   sync.Mutex
	filePath string
	file     *os.File

	broker  Broker
	list    string
	channel string

	filterName  string
	ruleName    string
	defaultTags []string
}

// NewManager builds an unconfigured Manager; call Configure before use.
func NewManager(log *flog.Logger) *Manager {
	return &Manager{log: log}
}

// Configure wires the sinks from the JSON configuration document. At least
// one sink must end up configured; otherwise it returns a warning (not a
// hard error, per spec §4.C) and alerts will be dropped until reconfigured.
func (m *Manager) Configure(cfg Config, filterName string, broker Broker) (warning string, err error) {
	m.filterName = filterName
	m.ruleName = filterName
	m.defaultTags = dedupTags(cfg.AlertTags)

	if cfg.LogFilePath != "" {
		f, oerr := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if oerr != nil {
			return "", errors.Wrapf(oerr, "alert: open log file %s", cfg.LogFilePath)
		}
		m.filePath = cfg.LogFilePath
		m.file = f
	}
	if broker != nil && (cfg.RedisListName != "" || cfg.RedisChannelName != "") {
		m.broker = broker
		m.list = cfg.RedisListName
		m.channel = cfg.RedisChannelName
	}

	if m.file == nil && m.broker == nil {
		return "alert: no sink configured (need log_file_path and/or a broker list/channel); alerts will be dropped", nil
	}
	return "", nil
}

// SetRuleName sets the rule_name written on every alert record (Configure
// initialises it to the filter name), mirroring AlertManager::SetRuleName.
func (m *Manager) SetRuleName(name string) { m.ruleName = name }

// record is the strictly structured alert JSON object of spec §3.5.
type record struct {
	EvtID   string          `json:"evt_id"`
	Time    string          `json:"time"`
	Filter  string          `json:"filter"`
	Rule    string          `json:"rule_name"`
	Tags    []string        `json:"tags"`
	Entry   string          `json:"entry"`
	Score   uint16          `json:"score"`
	Details json.RawMessage `json:"details,omitempty"`
}

// RenderLogLine builds the same structured JSON record as Alert, newline
// terminated, without writing it to any sink. The session package's "log"
// output transform (spec §4.F) uses this to build its per-frame log buffer
// without duplicating the record shape or the tag-union rule.
func (m *Manager) RenderLogLine(entry string, score uint16, evtID string, details json.RawMessage, tags []string) ([]byte, error) {
	rec := record{
		EvtID:   evtID,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Filter:  m.filterName,
		Rule:    m.ruleName,
		Tags:    unionTags(m.defaultTags, tags),
		Entry:   entry,
		Score:   score,
		Details: details,
	}
	line, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// Alert formats one alert and fans it out to every configured sink. Per
// SPEC_FULL.md §3.1, tags is the union of the caller-supplied tags and the
// configuration-time default tags, not a plain override.
func (m *Manager) Alert(entry string, score uint16, evtID string, details json.RawMessage, tags []string) {
	line, err := m.RenderLogLine(entry, score, evtID, details, tags)
	if err != nil {
		m.log.Errorf("alert: marshal record: %v", err)
		return
	}

	if m.file != nil {
		if err := m.writeFile(line); err != nil {
			m.log.Errorf("%v", &ferr.AlertSink{Sink: "file", Cause: err})
		}
	}
	if m.broker != nil {
		if err := m.publishBroker(line); err != nil {
			m.log.Errorf("%v", &ferr.AlertSink{Sink: "broker", Cause: err})
		}
	}
}

func (m *Manager) writeFile(line []byte) error {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= RETRY; attempt++ {
		if attempt > 0 {
			if rerr := m.reopenLocked(); rerr != nil {
				lastErr = rerr
				continue
			}
		}
		if _, err := m.file.Write(line); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// reopenLocked must be called with fileMu held.
func (m *Manager) reopenLocked() error {
	if m.file != nil {
		m.file.Close()
	}
	f, err := os.OpenFile(m.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	m.file = f
	return nil
}

func (m *Manager) publishBroker(line []byte) error {
	var firstErr error
	if m.channel != "" {
		if err := m.broker.Publish(m.channel, line); err != nil {
			firstErr = fmt.Errorf("publish %s: %w", m.channel, err)
		}
	}
	if m.list != "" {
		if err := m.broker.RPush(m.list, line); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("rpush %s: %w", m.list, err)
		}
	}
	return firstErr
}

// Rotate closes and reopens the file sink (spec §6.4, SIGHUP-style
// operators; spec §4.C).
func (m *Manager) Rotate() error {
	m.fileMu.Lock()
	defer m.fileMu.Unlock()
	if m.filePath == "" {
		return nil
	}
	return m.reopenLocked()
}

func dedupTags(tags []string) []string {
	return unionTags(nil, tags)
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range a {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	for _, t := range b {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
