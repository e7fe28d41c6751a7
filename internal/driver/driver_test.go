// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package driver

import (
	"testing"
	"time"
)

func TestNewPLCExposesKeyAndPollingTime(t *testing.T) {
	p := NewPLC("plc1", 2*time.Second, 3)
	if p.Key() != "plc1" {
		t.Fatalf("expected key plc1, got %q", p.Key())
	}
	if p.PollingTime() != 2*time.Second {
		t.Fatalf("expected 2s polling time, got %v", p.PollingTime())
	}
	if p.Connected() {
		t.Fatal("expected new PLC to start disconnected")
	}
}

func TestSetConnectedResetsFailures(t *testing.T) {
	p := NewPLC("plc1", time.Second, 3)
	p.RecordFailure()
	p.RecordFailure()

	p.SetConnected(true)
	if !p.Connected() {
		t.Fatal("expected connected true")
	}
	if exceeded := p.RecordFailure(); exceeded {
		t.Fatal("expected failure count reset by SetConnected, first failure after should not exceed maxRetries=3")
	}
}

func TestRecordFailureExceedsAtMaxRetries(t *testing.T) {
	p := NewPLC("plc1", time.Second, 2)
	if exceeded := p.RecordFailure(); exceeded {
		t.Fatal("expected not exceeded after first failure")
	}
	if exceeded := p.RecordFailure(); !exceeded {
		t.Fatal("expected exceeded after reaching maxRetries")
	}
}

func TestRecordFailureNeverExceedsWhenMaxRetriesZero(t *testing.T) {
	p := NewPLC("plc1", time.Second, 0)
	for i := 0; i < 10; i++ {
		if exceeded := p.RecordFailure(); exceeded {
			t.Fatal("expected MaxRetries=0 to mean unlimited retries")
		}
	}
}

func TestResetFailuresClearsCounter(t *testing.T) {
	p := NewPLC("plc1", time.Second, 2)
	p.RecordFailure()
	p.ResetFailures()
	if exceeded := p.RecordFailure(); exceeded {
		t.Fatal("expected ResetFailures to clear the counter")
	}
}
