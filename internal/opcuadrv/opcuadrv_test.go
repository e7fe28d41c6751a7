// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opcuadrv

import (
	"errors"
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

func TestPathComponentsSplitsAndTrims(t *testing.T) {
	got := pathComponents(`2:Boiler\ 2:Temperature `)
	want := []string{"2:Boiler", "2:Temperature"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPathComponentsDropsEmptySegments(t *testing.T) {
	got := pathComponents(`\2:Objects\\2:Temp\`)
	want := []string{"2:Objects", "2:Temp"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCoerceBooleanFromInt(t *testing.T) {
	v, err := coerce(ua.TypeIDBoolean, int64(1))
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if v.Value() != true {
		t.Fatalf("expected true, got %v", v.Value())
	}
}

func TestCoerceIntCastsToDeclaredWidth(t *testing.T) {
	v, err := coerce(ua.TypeIDUint16, int64(300))
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if _, ok := v.Value().(uint16); !ok {
		t.Fatalf("expected uint16, got %T", v.Value())
	}
}

func TestCoerceDateTimeFromString(t *testing.T) {
	v, err := coerce(ua.TypeIDDateTime, "2026-01-02 03:04:05")
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	got, ok := v.Value().(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", v.Value())
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 2 {
		t.Fatalf("unexpected parsed time: %v", got)
	}
}

func TestCoerceUnsupportedTypeIDRejected(t *testing.T) {
	_, err := coerce(ua.TypeID(0), int64(1))
	if !errors.Is(err, scadaerr.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestCoerceRejectsMismatchedValue(t *testing.T) {
	_, err := coerce(ua.TypeIDDouble, "not a number")
	if !errors.Is(err, scadaerr.ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestRegisterTagQueuesPendingResolution(t *testing.T) {
	p := New(Config{Key: "plc1", Endpoint: "opc.tcp://localhost:4840"})
	mem := tagstore.NewMemory("plc1", "mem1")

	tag := p.RegisterTag(mem, "temp", `2:Boiler\2:Temperature`, "boiler temperature")
	if tag == nil {
		t.Fatal("expected a non-nil tag")
	}

	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if len(p.pendingTags) != 1 || p.pendingTags[0].path != `2:Boiler\2:Temperature` {
		t.Fatalf("expected one pending tag with matching path, got %+v", p.pendingTags)
	}
}

func TestReadIsNoOp(t *testing.T) {
	p := New(Config{Key: "plc1", Endpoint: "opc.tcp://localhost:4840"})
	if err := p.Read(nil); err != nil {
		t.Fatalf("expected Read to be a no-op, got %v", err)
	}
}
