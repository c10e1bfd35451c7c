/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package runtime

import (
	"fmt"
	"os"

	"github.com/vultureproject/darwin-go/ferr"
)

// pidFile tracks the exclusively-created PID file for the lifetime of one
// run: O_EXCL means a second instance pointed at the same path fails fast
// at startup instead of silently double-running (spec §4.J supplemented
// behaviour, grounded on the original's PID-file-as-mutex convention).
type pidFile struct {
	path string
}

func acquirePIDFile(path string) (*pidFile, error) {
	if path == "" {
		return &pidFile{}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, ferr.NewFatal(fmt.Sprintf("pid file %s already exists or is not writable", path), err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		os.Remove(path)
		return nil, ferr.NewFatal("write pid file", err)
	}
	return &pidFile{path: path}, nil
}

func (p *pidFile) release() {
	if p.path == "" {
		return
	}
	os.Remove(p.path)
}
