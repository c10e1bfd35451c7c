/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package alert_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/vultureproject/darwin-go/alert"
	"github.com/vultureproject/darwin-go/flog"
)

type fakeBroker struct {
	published [][]byte
	pushed    [][]byte
	failPub   bool
}

func (b *fakeBroker) Publish(_ string, payload []byte) error {
	if b.failPub {
		return errors.New("broker down")
	}
	b.published = append(b.published, payload)
	return nil
}

func (b *fakeBroker) RPush(_ string, payload []byte) error {
	b.pushed = append(b.pushed, payload)
	return nil
}

var _ = Describe("Manager", func() {
	var (
		dir     string
		logPath string
		log     *flog.Logger
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		logPath = filepath.Join(dir, "alerts.log")
		log, _ = flog.New("test", "", flog.LevelDebug, true)
	})

	It("warns when no sink is configured", func() {
		m := alert.NewManager(log)
		warning, err := m.Configure(alert.Config{}, "myfilter", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(warning).NotTo(BeEmpty())
	})

	It("fans out to both file and broker sinks", func() {
		m := alert.NewManager(log)
		broker := &fakeBroker{}
		_, err := m.Configure(alert.Config{
			LogFilePath:      logPath,
			RedisChannelName: "alerts",
			RedisListName:    "alerts-list",
			AlertTags:        []string{"default"},
		}, "myfilter", broker)
		Expect(err).NotTo(HaveOccurred())

		m.Alert("1.2.3.4", 90, "evt-1", nil, []string{"extra"})

		data, rerr := os.ReadFile(logPath)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"entry":"1.2.3.4"`))
		Expect(string(data)).To(ContainSubstring(`"score":90`))

		var rec map[string]any
		Expect(json.Unmarshal(data[:len(data)-1], &rec)).To(Succeed())
		tags := rec["tags"].([]any)
		Expect(tags).To(ConsistOf("default", "extra"))

		Expect(broker.published).To(HaveLen(1))
		Expect(broker.pushed).To(HaveLen(1))
	})

	It("drops a failing broker sink without blocking the file sink", func() {
		m := alert.NewManager(log)
		broker := &fakeBroker{failPub: true}
		_, err := m.Configure(alert.Config{LogFilePath: logPath, RedisChannelName: "c"}, "f", broker)
		Expect(err).NotTo(HaveOccurred())

		m.Alert("x", 10, "evt-2", nil, nil)

		data, rerr := os.ReadFile(logPath)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"entry":"x"`))
	})

	It("rotates the file sink", func() {
		m := alert.NewManager(log)
		_, err := m.Configure(alert.Config{LogFilePath: logPath}, "f", nil)
		Expect(err).NotTo(HaveOccurred())
		m.Alert("before", 1, "evt-3", nil, nil)
		Expect(m.Rotate()).To(Succeed())
		m.Alert("after", 2, "evt-4", nil, nil)

		data, rerr := os.ReadFile(logPath)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("before"))
		Expect(string(data)).To(ContainSubstring("after"))
	})
})
