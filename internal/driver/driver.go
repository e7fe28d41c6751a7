// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package driver defines the uniform connect/read/write/poll lifecycle
// every concrete driver (Modbus, OPC-UA, database) implements, plus the
// shared PLC bookkeeping (connected flag, polling period,
// consecutive-failure counter) those drivers embed.
package driver

import (
	"context"
	"sync"
	"time"
)

// Driver is the contract every PLC driver satisfies. Connect opens the
// transport; polling is driven separately by driverbus calling Read.
// Repeated Connect calls are idempotent while already connected. Disconnect clears the connected
// flag and releases the transport. Read performs one full scan cycle —
// driverbus calls it on a schedule, it is not expected to loop or sleep
// itself.
type Driver interface {
	Key() string
	Connect(ctx context.Context) error
	Disconnect()
	Read(ctx context.Context) error
	Connected() bool
	PollingTime() time.Duration
}

// PLC holds the state every driver shares: the connected flag, the
// polling period, and a consecutive-failure counter. Concrete drivers
// embed PLC, add their own memory map (keyed by name, pointing at
// *tagstore.Memory) and transport/connection object. Memories reference
// PLC by key, not by pointer (see tagstore's design notes), so PLC
// itself does not need to be reachable from a Memory.
type PLC struct {
	PLCKey     string
	Polling    time.Duration
	MaxRetries int

	mu        sync.RWMutex
	connected bool
	failures  int
}

// NewPLC constructs a PLC with the given key and polling interval.
func NewPLC(key string, polling time.Duration, maxRetries int) *PLC {
	return &PLC{
		PLCKey:     key,
		Polling:    polling,
		MaxRetries: maxRetries,
	}
}

// Key returns the PLC's key.
func (p *PLC) Key() string { return p.PLCKey }

// PollingTime returns the configured scan period.
func (p *PLC) PollingTime() time.Duration { return p.Polling }

// Connected reports the current connection state.
func (p *PLC) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// SetConnected is called by the concrete driver once its transport is
// (dis)established.
func (p *PLC) SetConnected(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = v
	if v {
		p.failures = 0
	}
}

// RecordFailure increments the consecutive-failure counter and reports
// whether it has now reached MaxRetries, at which point the caller
// should declare itself disconnected.
func (p *PLC) RecordFailure() (exceeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures++
	return p.MaxRetries > 0 && p.failures >= p.MaxRetries
}

// ResetFailures clears the consecutive-failure counter after a
// successful operation.
func (p *PLC) ResetFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = 0
}
