// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package driverbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDriver struct {
	key string

	mu        sync.Mutex
	connected bool
	connects  int
	reads     int
	readErr   error
	disconns  int
}

func (f *fakeDriver) Key() string { return f.key }

func (f *fakeDriver) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.connected = true
	return nil
}

func (f *fakeDriver) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconns++
	f.connected = false
}

func (f *fakeDriver) Read(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.readErr
}

func (f *fakeDriver) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeDriver) PollingTime() time.Duration { return time.Second }

func TestTickConnectsWhenDisconnected(t *testing.T) {
	b := &Bus{}
	d := &fakeDriver{key: "plc1"}

	b.tick(context.Background(), d)
	if d.connects != 1 {
		t.Fatalf("expected one connect attempt, got %d", d.connects)
	}
	if d.reads != 0 {
		t.Fatalf("expected no read on a connect-only tick, got %d", d.reads)
	}
}

func TestTickReadsWhenConnected(t *testing.T) {
	b := &Bus{}
	d := &fakeDriver{key: "plc1", connected: true}

	b.tick(context.Background(), d)
	if d.reads != 1 {
		t.Fatalf("expected one read, got %d", d.reads)
	}
	if d.disconns != 0 {
		t.Fatalf("expected no disconnect on successful read, got %d", d.disconns)
	}
}

func TestTickDisconnectsOnReadError(t *testing.T) {
	b := &Bus{}
	d := &fakeDriver{key: "plc1", connected: true, readErr: errors.New("boom")}

	b.tick(context.Background(), d)
	if d.disconns != 1 {
		t.Fatalf("expected disconnect after failing read, got %d", d.disconns)
	}
}

func TestRegisterSchedulesOneJobPerDriver(t *testing.T) {
	b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := &fakeDriver{key: "plc1"}
	if err := b.Register(context.Background(), d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(b.drivers) != 1 || len(b.jobs) != 1 {
		t.Fatalf("expected one driver and one job registered, got drivers=%d jobs=%d", len(b.drivers), len(b.jobs))
	}

	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if d.disconns != 1 {
		t.Fatalf("expected Shutdown to disconnect registered drivers, got %d", d.disconns)
	}
}
