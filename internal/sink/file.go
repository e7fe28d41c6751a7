// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/scadaerr"
)

// File appends one line per alarm edge to a path, opened once and kept
// open for the sink's lifetime.
type File struct {
	Path string

	mu sync.Mutex
	fh *os.File
}

// NewFile opens (creating/appending to) path.
func NewFile(path string) (*File, error) {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, scadaerr.ErrTransport)
	}
	return &File{Path: path, fh: fh}, nil
}

func (f *File) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := fmt.Fprintln(f.fh, formatLine(e, ts, value, info)); err != nil {
		return fmt.Errorf("sink: write %s: %w", f.Path, scadaerr.ErrTransport)
	}
	return nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fh.Close()
}
