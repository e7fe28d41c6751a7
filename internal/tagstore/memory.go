// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tagstore

import (
	"fmt"
	"sync"

	"github.com/scadalite/engine/internal/scadaerr"
)

// Memory is a bag of tags belonging to one PLC, representing a
// homogeneous address space (Modbus coils, a DB table, or a logical
// group for OPC). Its address index is updated on every tag insertion.
// DriverState is a free slot for per-address-space driver state; the
// Modbus, OPC-UA and database drivers keep theirs in their own packages
// and leave it nil.
type Memory struct {
	Name   string
	PLCKey string

	mu            sync.RWMutex
	tags          map[string]*Tag
	tagsByAddress map[any]*Tag

	DriverState any
}

// NewMemory constructs an empty Memory owned by the given PLC key.
func NewMemory(plcKey, name string) *Memory {
	return &Memory{
		Name:          name,
		PLCKey:        plcKey,
		tags:          make(map[string]*Tag),
		tagsByAddress: make(map[any]*Tag),
	}
}

// Create builds a new Tag and registers it.
func (m *Memory) Create(key, description string, address any) *Tag {
	t := NewTag(key, description, address)
	return m.Set(key, t)
}

// Set registers (or replaces) a tag under key, indexing it by address too
// if the tag carries one. Returns the tag for chaining.
func (m *Memory) Set(key string, t *Tag) *Tag {
	t.MemoryKey = m.Name
	t.PLCKey = m.PLCKey

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[key] = t
	if t.Address != nil {
		m.tagsByAddress[t.Address] = t
	}
	return t
}

// Get looks up a tag by name within this memory.
func (m *Memory) Get(key string) (*Tag, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tags[key]
	return t, ok
}

// ByAddress looks up a tag by its driver-specific address.
func (m *Memory) ByAddress(address any) (*Tag, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tagsByAddress[address]
	return t, ok
}

// Tags returns a snapshot slice of every tag in this memory.
func (m *Memory) Tags() []*Tag {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Tag, 0, len(m.tags))
	for _, t := range m.tags {
		out = append(out, t)
	}
	return out
}

// TagIndex is the global, flat tag registry of an Ensemble: the union of
// every PLC memory's tags plus every Expression/Alarm. Expressions are
// handed an explicit TagIndex at construction, so they compose without a
// hidden package-level singleton.
type TagIndex struct {
	mu   sync.RWMutex
	tags map[string]*Tag
}

// NewTagIndex constructs an empty index.
func NewTagIndex() *TagIndex {
	return &TagIndex{tags: make(map[string]*Tag)}
}

// Register adds a tag under key, failing if the key is already taken:
// tag.key is globally unique within the Ensemble.
func (idx *TagIndex) Register(key string, t *Tag) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.tags[key]; exists {
		return fmt.Errorf("tag %q already registered: %w", key, scadaerr.ErrDuplicateKey)
	}
	idx.tags[key] = t
	return nil
}

// Get looks up a tag by its global key.
func (idx *TagIndex) Get(key string) (*Tag, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.tags[key]
	return t, ok
}

// All returns a snapshot slice of every registered tag.
func (idx *TagIndex) All() []*Tag {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*Tag, 0, len(idx.tags))
	for _, t := range idx.tags {
		out = append(out, t)
	}
	return out
}
