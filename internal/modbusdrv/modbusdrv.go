// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package modbusdrv implements the Modbus driver: coalesced block reads
// over four memory spaces (coil, input, holding, input-register),
// scattered back out to tags by address.
package modbusdrv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"golang.org/x/time/rate"

	"github.com/scadalite/engine/internal/driver"
	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Space names the four Modbus address spaces this driver tracks
// independently, each with its own min/max index.
type Space int

const (
	Coil Space = iota
	Input
	Holding
	Register
)

func (s Space) String() string {
	switch s {
	case Coil:
		return "coil"
	case Input:
		return "input"
	case Holding:
		return "holding"
	case Register:
		return "register"
	default:
		return "unknown"
	}
}

// Config describes how to reach one Modbus-speaking controller.
type Config struct {
	Key     string
	Addr    string        // host:port for TCP
	Mode    string        // "tcp", "rtu", "ascii"
	UnitID  byte
	Polling time.Duration
	Retries int
	// RTU/ASCII serial parameters (ignored in tcp mode).
	SerialDevice string
	BaudRate     int
}

// space tracks the min/max address span and per-address tag index for
// one of the four Modbus memory spaces; it is the driver-specific state
// this driver keeps per registered Memory.
type space struct {
	mu       sync.RWMutex
	min, max uint16
	has      bool
	byAddr   map[uint16]*tagstore.Tag
}

func newSpace() *space { return &space{byAddr: make(map[uint16]*tagstore.Tag)} }

func (s *space) add(addr uint16, t *tagstore.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has || addr < s.min {
		s.min = addr
	}
	if !s.has || addr > s.max {
		s.max = addr
	}
	s.has = true
	s.byAddr[addr] = t
}

func (s *space) span() (min, max uint16, has bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.min, s.max, s.has
}

func (s *space) tagAt(addr uint16) (*tagstore.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byAddr[addr]
	return t, ok
}

// PLC is a Modbus-backed driver.Driver.
type PLC struct {
	*driver.PLC
	cfg Config

	mu      sync.Mutex
	handler modbus.ClientHandler
	closer  interface{ Close() error }
	client  modbus.Client

	limiter *rate.Limiter
	spaces  [4]*space
}

// New constructs a disconnected Modbus PLC driver for cfg. Declare its
// tags with CreateTag before Connect.
func New(cfg Config) *PLC {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	p := &PLC{
		cfg: cfg,
		PLC: driver.NewPLC(cfg.Key, cfg.Polling, cfg.Retries),
	}
	for i := range p.spaces {
		p.spaces[i] = newSpace()
	}
	p.limiter = rate.NewLimiter(rate.Every(cfg.Polling/4+time.Millisecond), 1)
	return p
}

// CreateTag creates a tag at addr in mem and adds it to sp's span
// tracking (CSV import calls this indirectly through csvimport.ImportTags
// and cmd/scada-engine's resolve callback).
func (p *PLC) CreateTag(sp Space, mem *tagstore.Memory, key string, addr uint16, description string) *tagstore.Tag {
	t := mem.Create(key, description, addr)
	p.spaces[sp].add(addr, t)

	switch sp {
	case Coil:
		t.SetWriter(p.writeCoil(addr))
	case Holding:
		t.SetWriter(p.writeHolding(addr))
	case Input, Register:
		t.SetWriter(readOnlyWriter)
	}
	return t
}

func readOnlyWriter(tagstore.Value) error {
	return fmt.Errorf("modbus: %w", scadaerr.ErrReadOnly)
}

// Connect opens the transport and marks the PLC connected. Idempotent
// while already connected.
func (p *PLC) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Connected() {
		return nil
	}

	switch p.cfg.Mode {
	case "", "tcp":
		h := modbus.NewTCPClientHandler(p.cfg.Addr)
		h.Timeout = 5 * time.Second
		h.SlaveId = p.cfg.UnitID
		if err := h.Connect(); err != nil {
			return fmt.Errorf("modbus tcp connect %s: %w", p.cfg.Addr, scadaerr.ErrTransport)
		}
		p.handler = h
		p.closer = h
		p.client = modbus.NewClient(h)
	case "rtu":
		h := modbus.NewRTUClientHandler(p.cfg.SerialDevice)
		h.BaudRate = p.cfg.BaudRate
		h.SlaveId = p.cfg.UnitID
		h.Timeout = 5 * time.Second
		if err := h.Connect(); err != nil {
			return fmt.Errorf("modbus rtu connect %s: %w", p.cfg.SerialDevice, scadaerr.ErrTransport)
		}
		p.handler = h
		p.closer = h
		p.client = modbus.NewClient(h)
	case "ascii":
		h := modbus.NewASCIIClientHandler(p.cfg.SerialDevice)
		h.BaudRate = p.cfg.BaudRate
		h.SlaveId = p.cfg.UnitID
		h.Timeout = 5 * time.Second
		if err := h.Connect(); err != nil {
			return fmt.Errorf("modbus ascii connect %s: %w", p.cfg.SerialDevice, scadaerr.ErrTransport)
		}
		p.handler = h
		p.closer = h
		p.client = modbus.NewClient(h)
	default:
		return fmt.Errorf("modbus: unknown mode %q", p.cfg.Mode)
	}

	p.SetConnected(true)
	log.Infof("modbus %s: connected (%s)", p.cfg.Key, p.cfg.Addr)
	return nil
}

// Disconnect clears the connected flag and releases the transport.
func (p *PLC) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closer != nil {
		_ = p.closer.Close()
		p.closer = nil
	}
	p.client = nil
	p.SetConnected(false)
}
