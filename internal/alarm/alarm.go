// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package alarm implements the Alarm and AlarmGroup components: an
// edge-detecting boolean expression wrapper whose transitions fan out
// to every Output of every group it belongs to.
package alarm

import (
	"sync"
	"time"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Output is a stateless writer invoked on alarm edges. Concrete sinks
// (internal/sink) satisfy this structurally — Write(expr, ts, value,
// info) — without alarm importing the sink package.
type Output interface {
	Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error
}

// Alarm is an Expression with an additional previous-value slot and
// membership in zero or more AlarmGroups. It is itself the subscriber
// registered against the expression's referenced tags, so it can compare
// the expression's value before and after recomputation.
type Alarm struct {
	Expr *expr.Expression

	stateMu sync.Mutex
	active  bool
	since   time.Time

	groupsMu sync.Mutex
	groups   []*Group // copy-on-write
}

// New constructs an alarm with the given key/description/definition,
// resolved against index. Call Analyze (typically via Ensemble) before
// relying on edge events.
func New(key, description, definition string, index *tagstore.TagIndex) *Alarm {
	return &Alarm{Expr: expr.New(key, description, definition, index)}
}

// Key returns the alarm's tag key, used as its identity in CSV import and
// websocket responses.
func (a *Alarm) Key() string { return a.Expr.Tag.Key }

// Analyze wires the alarm's subscriptions against every tag its
// expression references.
func (a *Alarm) Analyze() error {
	return a.Expr.AnalyzeFor(a)
}

// Update implements tagstore.Subscriber:
//  1. remember old = value;
//  2. delegate to Expression.Reevaluate (which may set a new value);
//  3. emit ON if old was falsy and the new value is truthy;
//  4. emit OFF symmetrically;
//  5. any other transition (nullness, a non-edge numeric change) emits
//     nothing.
func (a *Alarm) Update(changed *tagstore.Tag) {
	old := a.Expr.Tag.Get()
	a.Expr.Reevaluate()
	now := a.Expr.Tag.Get()

	oldTruthy := tagstore.Truthy(old)
	newTruthy := tagstore.Truthy(now)

	switch {
	case !oldTruthy && newTruthy:
		a.emit(true)
	case oldTruthy && !newTruthy:
		a.emit(false)
	}
}

// State reports whether the alarm is currently active and, if so, the
// timestamp of the edge that activated it. Used by the websocket gateway
// to replay currently-active alarms to a client subscribing to a group.
func (a *Alarm) State() (active bool, since time.Time) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.active, a.since
}

func (a *Alarm) emit(state bool) {
	ts := time.Now().UTC()

	a.stateMu.Lock()
	a.active = state
	a.since = ts
	a.stateMu.Unlock()

	for _, g := range a.groupSnapshot() {
		for _, out := range g.outputSnapshot() {
			info := map[string]string{"alarmgroup": g.Key}
			if err := out.Write(a.Expr, ts, state, info); err != nil {
				log.Errorf("alarm %s: output write failed: %v", a.Key(), err)
			}
		}
	}
}

func (a *Alarm) groupSnapshot() []*Group {
	a.groupsMu.Lock()
	defer a.groupsMu.Unlock()
	return a.groups
}

func (a *Alarm) addGroup(g *Group) {
	a.groupsMu.Lock()
	defer a.groupsMu.Unlock()
	next := make([]*Group, len(a.groups)+1)
	copy(next, a.groups)
	next[len(a.groups)] = g
	a.groups = next
}
