// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/scadalite/engine/internal/config"
	"github.com/scadalite/engine/internal/csvimport"
	"github.com/scadalite/engine/internal/dbdriver"
	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/modbusdrv"
	"github.com/scadalite/engine/internal/opcuadrv"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// plcRegistry keeps hold of the concrete driver handles the ensemble
// only sees through the driver.Driver interface, so csvimport's
// driver-agnostic resolve callback can still dispatch to the right
// CreateTag signature per PLC key. index, when set, is the ensemble's
// TagIndex that every imported tag is registered into.
type plcRegistry struct {
	modbus map[string]*modbusdrv.PLC
	opcua  map[string]*opcuadrv.PLC
	db     map[string]*dbdriver.PLC
	index  *tagstore.TagIndex
}

// buildEnsemble constructs every configured driver and wires it into a
// fresh Ensemble, without connecting anything yet — Deploy owns the
// actual Connect/Start sequencing.
func buildEnsemble(ctx context.Context) (*ensemble.Ensemble, *plcRegistry, error) {
	e, err := ensemble.New()
	if err != nil {
		return nil, nil, err
	}

	reg := &plcRegistry{
		modbus: make(map[string]*modbusdrv.PLC),
		opcua:  make(map[string]*opcuadrv.PLC),
		db:     make(map[string]*dbdriver.PLC),
		index:  e.Index,
	}

	for _, c := range config.Keys.Modbus {
		p := modbusdrv.New(c)
		if err := e.AddPLC(ctx, c.Key, p); err != nil {
			return nil, nil, err
		}
		reg.modbus[c.Key] = p
	}
	for _, c := range config.Keys.OPCUA {
		p := opcuadrv.New(c)
		if err := e.AddPLC(ctx, c.Key, p); err != nil {
			return nil, nil, err
		}
		reg.opcua[c.Key] = p
	}
	for _, c := range config.Keys.Database {
		p := dbdriver.New(c)
		if err := e.AddPLC(ctx, c.Key, p); err != nil {
			return nil, nil, err
		}
		reg.db[c.Key] = p
	}

	return e, reg, nil
}

// resolveTag implements csvimport's driver-agnostic resolve callback,
// dispatching to whichever concrete driver owns plcKey. A Memory is
// created lazily per (plcKey, memoryKey) pair and reused across rows.
// Each created tag is also registered in reg.index under tagKey.
func (reg *plcRegistry) resolveTag() func(plcKey, memoryKey, address, tagKey, description string) error {
	memories := make(map[string]*tagstore.Memory)
	memoryFor := func(plcKey, memoryKey string) *tagstore.Memory {
		id := plcKey + "/" + memoryKey
		if m, ok := memories[id]; ok {
			return m
		}
		m := tagstore.NewMemory(plcKey, memoryKey)
		memories[id] = m
		return m
	}
	register := func(key string, t *tagstore.Tag) error {
		if reg.index == nil || t == nil {
			return nil
		}
		return reg.index.Register(key, t)
	}

	return func(plcKey, memoryKey, address, tagKey, description string) error {
		if p, ok := reg.modbus[plcKey]; ok {
			sp, err := parseSpace(memoryKey)
			if err != nil {
				return err
			}
			addr, err := csvimport.ParseAddress(address)
			if err != nil {
				return err
			}
			return register(tagKey, p.CreateTag(sp, memoryFor(plcKey, memoryKey), tagKey, addr, description))
		}
		if p, ok := reg.opcua[plcKey]; ok {
			return register(tagKey, p.RegisterTag(memoryFor(plcKey, memoryKey), tagKey, address, description))
		}
		if p, ok := reg.db[plcKey]; ok {
			_, known := memories[plcKey+"/"+memoryKey]
			m := memoryFor(plcKey, memoryKey)
			if !known {
				p.RegisterMemory(memoryKey, m)
			}
			return register(tagKey, p.CreateTag(memoryKey, address, tagKey, description))
		}
		return fmt.Errorf("init: unknown plc %q referenced by tag %q", plcKey, tagKey)
	}
}

func parseSpace(s string) (modbusdrv.Space, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "coil":
		return modbusdrv.Coil, nil
	case "input":
		return modbusdrv.Input, nil
	case "holding":
		return modbusdrv.Holding, nil
	case "register":
		return modbusdrv.Register, nil
	default:
		return 0, fmt.Errorf("init: unknown modbus memory space %q", s)
	}
}

// runImport loads the configured (or flag-given) CSV files into e.
func runImport(e *ensemble.Ensemble, reg *plcRegistry, tagsFile, alarmsFile string) error {
	if tagsFile != "" {
		recs, err := csvimport.ReadTags(tagsFile)
		if err != nil {
			return fmt.Errorf("import tags: %w", err)
		}
		if err := csvimport.ImportTags(recs, reg.resolveTag()); err != nil {
			return err
		}
		log.Infof("init: imported %d tags from %s", len(recs), tagsFile)
	}

	if alarmsFile != "" {
		recs, err := csvimport.ReadAlarms(alarmsFile)
		if err != nil {
			return fmt.Errorf("import alarms: %w", err)
		}
		if err := csvimport.ImportAlarms(recs, e); err != nil {
			return err
		}
		log.Infof("init: imported %d alarms from %s", len(recs), alarmsFile)
	}
	return nil
}
