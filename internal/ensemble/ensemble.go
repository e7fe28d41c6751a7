// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ensemble implements the Ensemble root aggregate: every PLC,
// global tag, and AlarmGroup the engine owns, plus the two-phase Deploy
// that analyzes every alarm before any driver connects.
package ensemble

import (
	"context"
	"fmt"
	"sync"

	"github.com/scadalite/engine/internal/alarm"
	"github.com/scadalite/engine/internal/driver"
	"github.com/scadalite/engine/internal/driverbus"
	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Ensemble owns the whole running configuration: the PLCs (by key), the
// global tags not backed by any driver (by key), and the AlarmGroups (by
// key). It is the unit CSV import populates and Deploy brings online.
type Ensemble struct {
	Index *tagstore.TagIndex

	mu          sync.RWMutex
	plcs        map[string]driver.Driver
	globalTags  map[string]*tagstore.Tag
	alarms      map[string]*alarm.Alarm
	alarmGroups map[string]*alarm.Group

	bus *driverbus.Bus
}

// New constructs an empty Ensemble.
func New() (*Ensemble, error) {
	bus, err := driverbus.New()
	if err != nil {
		return nil, fmt.Errorf("ensemble: new scheduler: %w", err)
	}
	return &Ensemble{
		Index:       tagstore.NewTagIndex(),
		plcs:        make(map[string]driver.Driver),
		globalTags:  make(map[string]*tagstore.Tag),
		alarms:      make(map[string]*alarm.Alarm),
		alarmGroups: make(map[string]*alarm.Group),
		bus:         bus,
	}, nil
}

// AddPLC registers d under key, wiring it into the scan scheduler. ctx
// bounds the driver's Connect/Read calls for the lifetime of the job.
func (e *Ensemble) AddPLC(ctx context.Context, key string, d driver.Driver) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.plcs[key]; exists {
		return fmt.Errorf("ensemble: plc %q: %w", key, scadaerr.ErrDuplicateKey)
	}
	e.plcs[key] = d
	return e.bus.Register(ctx, d)
}

// AddGlobalTag registers a driverless tag (e.g. a constant or an
// Expression's own Tag), indexing it for expression/alarm resolution.
func (e *Ensemble) AddGlobalTag(t *tagstore.Tag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.globalTags[t.Key]; exists {
		return fmt.Errorf("ensemble: tag %q: %w", t.Key, scadaerr.ErrDuplicateKey)
	}
	e.globalTags[t.Key] = t
	return e.Index.Register(t.Key, t)
}

// AddAlarm registers an alarm, built by the caller via alarm.New(key,
// desc, definition, e.Index) so it resolves against this ensemble's
// index.
func (e *Ensemble) AddAlarm(a *alarm.Alarm) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.alarms[a.Key()]; exists {
		return fmt.Errorf("ensemble: alarm %q: %w", a.Key(), scadaerr.ErrDuplicateKey)
	}
	e.alarms[a.Key()] = a
	return e.Index.Register(a.Expr.Tag.Key, a.Expr.Tag)
}

// AddAlarmGroup registers an AlarmGroup under key.
func (e *Ensemble) AddAlarmGroup(key string, g *alarm.Group) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.alarmGroups[key]; exists {
		return fmt.Errorf("ensemble: alarmgroup %q: %w", key, scadaerr.ErrDuplicateKey)
	}
	e.alarmGroups[key] = g
	return nil
}

// AlarmGroup looks up a group by key for runtime output subscription
// (internal/wsgateway calls this on "subscribe").
func (e *Ensemble) AlarmGroup(key string) (*alarm.Group, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.alarmGroups[key]
	return g, ok
}

// Tag looks up any tag (driver-backed, global, expression, or alarm) by
// key.
func (e *Ensemble) Tag(key string) (*tagstore.Tag, bool) {
	return e.Index.Get(key)
}

// Deploy brings the ensemble online in two phases: detect circular
// references and analyze every alarm first, then connect every driver.
// This ordering matters — an expression whose
// tags are still null because its PLC hasn't connected yet must still
// resolve and subscribe successfully at analyze time.
func (e *Ensemble) Deploy(ctx context.Context) error {
	e.mu.RLock()
	alarms := make([]*alarm.Alarm, 0, len(e.alarms))
	for _, a := range e.alarms {
		alarms = append(alarms, a)
	}
	plcs := make([]driver.Driver, 0, len(e.plcs))
	for _, p := range e.plcs {
		plcs = append(plcs, p)
	}
	e.mu.RUnlock()

	if err := e.checkCircularReferences(alarms); err != nil {
		return err
	}

	for _, a := range alarms {
		if err := a.Analyze(); err != nil {
			return fmt.Errorf("ensemble: analyze alarm %q: %w", a.Key(), err)
		}
	}

	for _, p := range plcs {
		if err := p.Connect(ctx); err != nil {
			log.Errorf("ensemble: connect %s: %v", p.Key(), err)
		}
	}
	e.bus.Start()

	log.Infof("ensemble: deployed %d plcs, %d alarms, %d alarm groups", len(plcs), len(alarms), len(e.alarmGroups))
	return nil
}

// Shutdown stops the scan scheduler, which itself disconnects every
// registered driver.
func (e *Ensemble) Shutdown() error {
	return e.bus.Shutdown()
}

// checkCircularReferences walks each alarm's expression identifiers
// transitively and rejects the deploy if any cycle is found: cycles must
// be detected and rejected at analyze time, not left to recurse forever
// at runtime.
func (e *Ensemble) checkCircularReferences(alarms []*alarm.Alarm) error {
	deps := make(map[string][]string)
	for _, a := range alarms {
		deps[a.Key()] = expr.Identifiers(a.Expr.Definition)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)

	var visit func(key string, stack []string) error
	visit = func(key string, stack []string) error {
		switch color[key] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("ensemble: circular reference %v: %w", append(stack, key), scadaerr.ErrCircularReference)
		}
		color[key] = gray
		for _, dep := range deps[key] {
			if _, isAlarm := deps[dep]; isAlarm {
				if err := visit(dep, append(stack, key)); err != nil {
					return err
				}
			}
		}
		color[key] = black
		return nil
	}

	for key := range deps {
		if err := visit(key, nil); err != nil {
			return err
		}
	}
	return nil
}
