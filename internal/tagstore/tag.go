// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tagstore implements the tag graph: named values with a
// subscription protocol. A Tag belongs to exactly one Memory, which
// belongs to exactly one PLC; both back-references are kept by key, not
// by pointer, so the graph stays a flat arena instead of a cyclic object
// graph.
package tagstore

import (
	"sync"

	"github.com/scadalite/engine/pkg/log"
)

// Kind distinguishes a driver-backed Tag from the derived tags layered on
// top of it (Expression, Alarm). The core Tag type is shared by all three;
// Kind only affects how higher layers interpret a Tag.
type Kind int

const (
	KindDirect Kind = iota
	KindExpression
	KindAlarm
)

// Subscriber is anything that reacts to a tag value change. Expression and
// Alarm are subscribers, and so is every websocket connection that has
// subscribed to a tag.
type Subscriber interface {
	Update(changed *Tag)
}

// Writer lets a driver intercept writes before the in-memory value is
// updated. The default Tag.Write calls Update directly; driver-backed tags
// install a Writer that pushes to the controller first.
type Writer func(v Value) error

// Tag is a uniquely-keyed variable. Mutated only through Update, which is
// idempotent for equal values: subscribers are notified only on
// inequality.
type Tag struct {
	Key         string
	Description string
	Address     any // opaque, driver-specific; nil if not address-backed
	MemoryKey   string
	PLCKey      string

	mu    sync.RWMutex
	value Value

	subsMu sync.Mutex
	subs   []Subscriber // copy-on-write; dispatch reads a snapshot

	writer Writer
}

// NewTag constructs an unregistered tag. Callers add it to a Memory via
// Memory.Set/Memory.Create and, separately, to the global TagIndex via
// TagIndex.Register.
func NewTag(key, description string, address any) *Tag {
	return &Tag{Key: key, Description: description, Address: address}
}

// SetWriter installs a driver's write-through hook. Called once at driver
// construction time, before connect(); never mutated concurrently with
// Write afterwards.
func (t *Tag) SetWriter(w Writer) { t.writer = w }

// Get returns the tag's current value.
func (t *Tag) Get() Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Update assigns a new value and notifies subscribers, in registration
// order, only if the value changed. Notification is synchronous on the
// caller's goroutine (the scan worker, or whichever goroutine triggered
// the change).
func (t *Tag) Update(v Value) {
	t.mu.Lock()
	if Equal(t.value, v) {
		t.mu.Unlock()
		return
	}
	t.value = v
	t.mu.Unlock()

	for _, s := range t.subscriberSnapshot() {
		s.Update(t)
	}
}

// Write pushes a new value to the tag. The default implementation just
// calls Update; a driver-backed tag's Writer pushes to the controller
// first and only calls Update once the controller confirms the write.
func (t *Tag) Write(v Value) error {
	if t.writer != nil {
		return t.writer(v)
	}
	t.Update(v)
	return nil
}

// Subscribe appends a subscriber. Subscription is append-only: there is
// no explicit unsubscribe. Safe to call concurrently with dispatch — it
// copies the slice rather than mutating it in place.
func (t *Tag) Subscribe(s Subscriber) {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	next := make([]Subscriber, len(t.subs)+1)
	copy(next, t.subs)
	next[len(t.subs)] = s
	t.subs = next
}

func (t *Tag) subscriberSnapshot() []Subscriber {
	t.subsMu.Lock()
	defer t.subsMu.Unlock()
	return t.subs
}

// LogTransportError is a small helper drivers use to satisfy "no error
// crosses a driver boundary": log with source context and swallow.
func LogTransportError(driver, op string, err error) {
	log.Errorf("%s: %s: %v", driver, op, err)
}
