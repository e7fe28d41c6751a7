// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbusdrv

import (
	"context"
	"fmt"

	"github.com/scadalite/engine/internal/scadaerr"
)

// Read issues exactly one coalesced block request per non-empty space,
// covering [min, max], then scatters the returned values back out to
// tagbyaddress[i] for every tag present in that span.
func (p *PLC) Read(ctx context.Context) error {
	_ = p.limiter.Wait(ctx)

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil {
		return fmt.Errorf("modbus %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}

	if err := p.readBits(client, Coil); err != nil {
		return p.fail(err)
	}
	if err := p.readBits(client, Input); err != nil {
		return p.fail(err)
	}
	if err := p.readWords(client, Holding); err != nil {
		return p.fail(err)
	}
	if err := p.readWords(client, Register); err != nil {
		return p.fail(err)
	}
	p.ResetFailures()
	return nil
}

// fail records one failed scan and disconnects once consecutive failures
// reach cfg.Retries, rather than on the first error.
func (p *PLC) fail(err error) error {
	if p.RecordFailure() {
		p.Disconnect()
	}
	return err
}

func (p *PLC) readBits(client modbusReader, sp Space) error {
	sg := p.spaces[sp]
	min, max, has := sg.span()
	if !has {
		return nil
	}
	qty := uint16(max-min) + 1

	var (
		raw []byte
		err error
	)
	if sp == Coil {
		raw, err = client.ReadCoils(min, qty)
	} else {
		raw, err = client.ReadDiscreteInputs(min, qty)
	}
	if err != nil {
		return fmt.Errorf("modbus %s: read %s[%d:%d]: %w", p.cfg.Key, sp, min, max, scadaerr.ErrTransport)
	}

	for addr := min; addr <= max; addr++ {
		t, ok := sg.tagAt(addr)
		if !ok {
			continue
		}
		i := addr - min
		byteIdx, bitIdx := i/8, i%8
		if int(byteIdx) >= len(raw) {
			continue
		}
		bit := (raw[byteIdx] >> bitIdx) & 1
		t.Update(bit == 1)
	}
	return nil
}

func (p *PLC) readWords(client modbusReader, sp Space) error {
	sg := p.spaces[sp]
	min, max, has := sg.span()
	if !has {
		return nil
	}
	qty := uint16(max-min) + 1

	var (
		raw []byte
		err error
	)
	if sp == Holding {
		raw, err = client.ReadHoldingRegisters(min, qty)
	} else {
		raw, err = client.ReadInputRegisters(min, qty)
	}
	if err != nil {
		return fmt.Errorf("modbus %s: read %s[%d:%d]: %w", p.cfg.Key, sp, min, max, scadaerr.ErrTransport)
	}

	for addr := min; addr <= max; addr++ {
		t, ok := sg.tagAt(addr)
		if !ok {
			continue
		}
		i := int(addr-min) * 2
		if i+1 >= len(raw) {
			continue
		}
		word := uint16(raw[i])<<8 | uint16(raw[i+1])
		t.Update(int64(word))
	}
	return nil
}

// modbusReader is the subset of modbus.Client this package exercises,
// narrowed for testability against a fake server.
type modbusReader interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
}
