// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package alarm

import "sync"

// Group (AlarmGroup) is a keyed collection of alarms and outputs.
// Membership is append-only at load time, with one runtime exception: a
// websocket client subscribing adds an Output at runtime, which is why
// AddOutput copies on write and dispatch iterates a snapshot without
// holding the lock.
type Group struct {
	Key string

	alarmsMu sync.Mutex
	alarms   []*Alarm

	outputsMu sync.Mutex
	outputs   []Output
}

// NewGroup constructs an empty, named alarm group.
func NewGroup(key string) *Group {
	return &Group{Key: key}
}

// AddAlarm mutually links alarm and group.
func (g *Group) AddAlarm(a *Alarm) {
	g.alarmsMu.Lock()
	g.alarms = append(g.alarms, a)
	g.alarmsMu.Unlock()

	a.addGroup(g)
}

// AddOutput registers an output sink with the group. Safe to call
// concurrently with alarm edge dispatch via a copy-on-write list.
func (g *Group) AddOutput(o Output) {
	g.outputsMu.Lock()
	defer g.outputsMu.Unlock()
	next := make([]Output, len(g.outputs)+1)
	copy(next, g.outputs)
	next[len(g.outputs)] = o
	g.outputs = next
}

// Alarms returns a snapshot of the group's member alarms.
func (g *Group) Alarms() []*Alarm {
	g.alarmsMu.Lock()
	defer g.alarmsMu.Unlock()
	out := make([]*Alarm, len(g.alarms))
	copy(out, g.alarms)
	return out
}

func (g *Group) outputSnapshot() []Output {
	g.outputsMu.Lock()
	defer g.outputsMu.Unlock()
	return g.outputs
}
