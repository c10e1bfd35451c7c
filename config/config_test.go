/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vultureproject/darwin-go/config"
	"github.com/vultureproject/darwin-go/flog"
)

func TestLoadParsesKnownFieldsAndWarnsOnUnknown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	body := `{
		"log_file_path": "/var/log/darwin/alerts.log",
		"alert_tags": ["network", "ti"],
		"redis_ip": "127.0.0.1",
		"redis_port": 6379,
		"redis_channel_name": "darwin.alerts",
		"reputation_database_path": "/var/lib/darwin/db.mmdb"
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	log, err := flog.New("test", "", flog.LevelDebug, true)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := config.Load(path, log)
	if err != nil {
		t.Fatal(err)
	}
	if doc.LogFilePath != "/var/log/darwin/alerts.log" {
		t.Fatalf("LogFilePath = %q", doc.LogFilePath)
	}
	if len(doc.AlertTags) != 2 {
		t.Fatalf("AlertTags = %v", doc.AlertTags)
	}
	if !doc.HasBroker() {
		t.Fatal("expected HasBroker() true with redis_ip set")
	}
	if doc.BrokerOptions().Addr != "127.0.0.1:6379" {
		t.Fatalf("BrokerOptions().Addr = %q", doc.BrokerOptions().Addr)
	}

	ac := doc.AlertConfig()
	if ac.RedisChannelName != "darwin.alerts" {
		t.Fatalf("AlertConfig().RedisChannelName = %q", ac.RedisChannelName)
	}
}

func TestLoadMissingFile(t *testing.T) {
	log, _ := flog.New("test", "", flog.LevelDebug, true)
	if _, err := config.Load("/nonexistent/conf.json", log); err == nil {
		t.Fatal("expected error for missing file")
	}
}
