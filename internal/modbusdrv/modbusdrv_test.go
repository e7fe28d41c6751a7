// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbusdrv

import (
	"errors"
	"testing"
	"time"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

type fakeModbusClient struct {
	coils, discrete, holding, input []byte
	err                             error
}

func (f *fakeModbusClient) ReadCoils(address, quantity uint16) ([]byte, error) {
	return f.coils, f.err
}
func (f *fakeModbusClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return f.discrete, f.err
}
func (f *fakeModbusClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return f.holding, f.err
}
func (f *fakeModbusClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return f.input, f.err
}

func TestSpaceTracksMinMaxSpan(t *testing.T) {
	p := New(Config{Key: "plc1", Polling: time.Second})
	mem := tagstore.NewMemory("plc1", "mem1")

	p.CreateTag(Holding, mem, "a", 10, "")
	p.CreateTag(Holding, mem, "b", 3, "")
	p.CreateTag(Holding, mem, "c", 7, "")

	min, max, has := p.spaces[Holding].span()
	if !has || min != 3 || max != 10 {
		t.Fatalf("expected span [3,10], got min=%d max=%d has=%v", min, max, has)
	}
}

func TestCreateTagSetsReadOnlyWriterForInputSpaces(t *testing.T) {
	p := New(Config{Key: "plc1", Polling: time.Second})
	mem := tagstore.NewMemory("plc1", "mem1")

	tag := p.CreateTag(Input, mem, "sensor", 5, "")
	if err := tag.Write(int64(1)); !errors.Is(err, scadaerr.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly writing an input-space tag, got %v", err)
	}
}

func TestReadBitsScattersBitsToTagsByAddress(t *testing.T) {
	p := New(Config{Key: "plc1", Polling: time.Second})
	mem := tagstore.NewMemory("plc1", "mem1")

	t0 := p.CreateTag(Coil, mem, "c0", 0, "")
	t1 := p.CreateTag(Coil, mem, "c1", 1, "")

	client := &fakeModbusClient{coils: []byte{0b00000010}}
	if err := p.readBits(client, Coil); err != nil {
		t.Fatalf("readBits: %v", err)
	}

	if t0.Get() != false {
		t.Fatalf("expected coil 0 false, got %v", t0.Get())
	}
	if t1.Get() != true {
		t.Fatalf("expected coil 1 true, got %v", t1.Get())
	}
}

func TestReadWordsScattersBigEndianWords(t *testing.T) {
	p := New(Config{Key: "plc1", Polling: time.Second})
	mem := tagstore.NewMemory("plc1", "mem1")

	tag := p.CreateTag(Holding, mem, "h0", 0, "")

	client := &fakeModbusClient{holding: []byte{0x01, 0x02}}
	if err := p.readWords(client, Holding); err != nil {
		t.Fatalf("readWords: %v", err)
	}
	if tag.Get() != int64(0x0102) {
		t.Fatalf("expected 0x0102, got %v", tag.Get())
	}
}

func TestReadBitsReturnsTransportErrorOnFailure(t *testing.T) {
	p := New(Config{Key: "plc1", Polling: time.Second})
	mem := tagstore.NewMemory("plc1", "mem1")
	p.CreateTag(Coil, mem, "c0", 0, "")

	client := &fakeModbusClient{err: errors.New("bus fault")}
	err := p.readBits(client, Coil)
	if !errors.Is(err, scadaerr.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestSpaceStringNames(t *testing.T) {
	cases := map[Space]string{Coil: "coil", Input: "input", Holding: "holding", Register: "register"}
	for sp, want := range cases {
		if got := sp.String(); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
