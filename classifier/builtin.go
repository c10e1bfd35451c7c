/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package classifier

import (
	"context"
	"encoding/json"
)

// TestFilterCode is the bundled reference classifier's fixed code, grounded
// on original_source/samples/ftest's DARWIN_FILTER_TEST role: a minimal
// classifier used to exercise the runtime's wiring end to end, not a real
// detection engine.
const TestFilterCode = 0x74657374 // ascii "test"

// TestFactory builds the bundled reference classifier. Each entry must be
// a one-element JSON array holding a string (spec §3.2's generic "entries"
// shape, narrowed the way ftest.TestTask::ParseLine does). The sentinel
// string "trigger_parseline_error" always reports wire.ErrorReturn, for
// exercising the runtime's per-entry error accounting.
type TestFactory struct{}

func (TestFactory) Name() string            { return "test" }
func (TestFactory) FilterCode() uint32      { return TestFilterCode }
func (TestFactory) DefaultCertitude() uint16 { return 0 }
func (TestFactory) Hash() HashFunc          { return nil } // use cache.DefaultHash

func (TestFactory) NewTask(in TaskInput) Task {
	return &testTask{in: in}
}

type testTask struct {
	in TaskInput
}

func (t *testTask) Run(ctx context.Context) (Result, error) {
	certitudes := make([]uint16, 0, len(t.in.Entries))
	alerts := make([]Alert, 0)

	for _, raw := range t.in.Entries {
		select {
		case <-ctx.Done():
			certitudes = append(certitudes, 101)
			continue
		default:
		}

		line, ok := parseTestLine(raw)
		if !ok {
			certitudes = append(certitudes, 101)
			continue
		}
		if line == "trigger_parseline_error" {
			certitudes = append(certitudes, 101)
			continue
		}

		hash := t.in.Hash(nil, []byte(line))
		t.in.Cache.Mutex.Lock()
		cached, hit := t.in.Cache.Get(hash)
		if !hit {
			cached = 0
			t.in.Cache.Insert(hash, cached)
		}
		t.in.Cache.Mutex.Unlock()

		certitudes = append(certitudes, cached)
		alerts = append(alerts, Alert{Entry: line, Score: 100})
	}

	return Result{Certitudes: certitudes, Alerts: alerts}, nil
}

func parseTestLine(raw json.RawMessage) (string, bool) {
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return "", false
	}
	if len(values) != 1 {
		return "", false
	}
	return values[0], true
}
