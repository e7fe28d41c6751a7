// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ensemble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scadalite/engine/internal/alarm"
	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

type fakeDriver struct{ key string }

func (f *fakeDriver) Key() string                      { return f.key }
func (f *fakeDriver) Connect(ctx context.Context) error { return nil }
func (f *fakeDriver) Disconnect()                      {}
func (f *fakeDriver) Read(ctx context.Context) error   { return nil }
func (f *fakeDriver) Connected() bool                  { return true }
func (f *fakeDriver) PollingTime() time.Duration       { return time.Second }

func newTestEnsemble(t *testing.T) *Ensemble {
	t.Helper()
	e, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestDeployRejectsCircularAlarmReference(t *testing.T) {
	e := newTestEnsemble(t)

	a1 := alarm.New("a1", "", "a2 > 0", e.Index)
	a2 := alarm.New("a2", "", "a1 > 0", e.Index)
	if err := e.AddAlarm(a1); err != nil {
		t.Fatalf("AddAlarm a1: %v", err)
	}
	if err := e.AddAlarm(a2); err != nil {
		t.Fatalf("AddAlarm a2: %v", err)
	}

	err := e.Deploy(context.Background())
	if err == nil {
		t.Fatal("expected circular reference error")
	}
	if !errors.Is(err, scadaerr.ErrCircularReference) {
		t.Fatalf("expected ErrCircularReference, got %v", err)
	}
}

func TestDeployAnalyzesAcyclicAlarms(t *testing.T) {
	e := newTestEnsemble(t)

	temp := tagstore.NewTag("temp", "", nil)
	if err := e.AddGlobalTag(temp); err != nil {
		t.Fatalf("AddGlobalTag: %v", err)
	}

	a := alarm.New("high_temp", "", "temp > 100", e.Index)
	if err := e.AddAlarm(a); err != nil {
		t.Fatalf("AddAlarm: %v", err)
	}

	if err := e.Deploy(context.Background()); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	temp.Update(int64(150))
	if v := a.Expr.Tag.Get(); v != true {
		t.Fatalf("expected alarm tag true after analyze + update, got %v", v)
	}
}

func TestAddPLCRejectsDuplicateKey(t *testing.T) {
	e := newTestEnsemble(t)
	ctx := context.Background()

	if err := e.AddPLC(ctx, "plc1", &fakeDriver{key: "plc1"}); err != nil {
		t.Fatalf("AddPLC: %v", err)
	}
	err := e.AddPLC(ctx, "plc1", &fakeDriver{key: "plc1"})
	if !errors.Is(err, scadaerr.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
