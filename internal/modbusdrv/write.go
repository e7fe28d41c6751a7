// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package modbusdrv

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

// writeCoil returns a tagstore.Writer that pushes a coil write then
// confirms via Tag.Update on success. Accepts bool or the
// case-insensitive strings TRUE/FALSE/1/0.
func (p *PLC) writeCoil(addr uint16) tagstore.Writer {
	return func(v tagstore.Value) error {
		b, err := coerceBool(v)
		if err != nil {
			return err
		}

		p.mu.Lock()
		client := p.client
		p.mu.Unlock()
		if client == nil {
			return fmt.Errorf("modbus %s: %w", p.cfg.Key, scadaerr.ErrTransport)
		}

		word := uint16(0x0000)
		if b {
			word = 0xFF00
		}
		if _, err := client.WriteSingleCoil(addr, word); err != nil {
			return fmt.Errorf("modbus %s: write coil %d: %w", p.cfg.Key, addr, scadaerr.ErrTransport)
		}

		if t, ok := p.spaces[Coil].tagAt(addr); ok {
			t.Update(b)
		}
		return nil
	}
}

// writeHolding returns a tagstore.Writer accepting an integer or a
// decimal string, truncated to 16 bits.
func (p *PLC) writeHolding(addr uint16) tagstore.Writer {
	return func(v tagstore.Value) error {
		n, err := coerceUint16(v)
		if err != nil {
			return err
		}

		p.mu.Lock()
		client := p.client
		p.mu.Unlock()
		if client == nil {
			return fmt.Errorf("modbus %s: %w", p.cfg.Key, scadaerr.ErrTransport)
		}

		if _, err := client.WriteSingleRegister(addr, n); err != nil {
			return fmt.Errorf("modbus %s: write holding %d: %w", p.cfg.Key, addr, scadaerr.ErrTransport)
		}

		if t, ok := p.spaces[Holding].tagAt(addr); ok {
			t.Update(int64(n))
		}
		return nil
	}
}

func coerceBool(v tagstore.Value) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToUpper(t) {
		case "TRUE", "1":
			return true, nil
		case "FALSE", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("modbus: coil write value %v: %w", v, scadaerr.ErrUnsupportedType)
}

func coerceUint16(v tagstore.Value) (uint16, error) {
	switch t := v.(type) {
	case int64:
		return uint16(t), nil
	case float64:
		return uint16(int64(t)), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("modbus: holding write value %q: %w", t, scadaerr.ErrUnsupportedType)
		}
		return uint16(n), nil
	}
	return 0, fmt.Errorf("modbus: holding write value %v: %w", v, scadaerr.ErrUnsupportedType)
}
