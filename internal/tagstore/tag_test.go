// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tagstore

import "testing"

type recordingSubscriber struct {
	updates int
	last    *Tag
}

func (r *recordingSubscriber) Update(t *Tag) {
	r.updates++
	r.last = t
}

func TestTagUpdateNotifiesOnlyOnChange(t *testing.T) {
	tag := NewTag("t1", "", nil)
	sub := &recordingSubscriber{}
	tag.Subscribe(sub)

	tag.Update(int64(1))
	if sub.updates != 1 {
		t.Fatalf("expected 1 update, got %d", sub.updates)
	}

	tag.Update(int64(1))
	if sub.updates != 1 {
		t.Fatalf("expected update count unchanged for equal value, got %d", sub.updates)
	}

	tag.Update(int64(2))
	if sub.updates != 2 {
		t.Fatalf("expected 2 updates after distinct value, got %d", sub.updates)
	}
}

func TestTagWriteUsesWriterWhenSet(t *testing.T) {
	tag := NewTag("t1", "", nil)
	var pushed Value
	tag.SetWriter(func(v Value) error {
		pushed = v
		tag.Update(v)
		return nil
	})

	if err := tag.Write(int64(42)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pushed != int64(42) {
		t.Fatalf("writer did not receive value, got %v", pushed)
	}
	if tag.Get() != int64(42) {
		t.Fatalf("tag value not updated through writer, got %v", tag.Get())
	}
}

func TestMemoryCreateIndexesByAddress(t *testing.T) {
	m := NewMemory("plc1", "mem1")
	tag := m.Create("k1", "desc", uint16(7))

	got, ok := m.Get("k1")
	if !ok || got != tag {
		t.Fatalf("Get did not return created tag")
	}

	byAddr, ok := m.ByAddress(uint16(7))
	if !ok || byAddr != tag {
		t.Fatalf("ByAddress did not return created tag")
	}
}

func TestTagIndexRegisterRejectsDuplicate(t *testing.T) {
	idx := NewTagIndex()
	tag := NewTag("dup", "", nil)
	if err := idx.Register("dup", tag); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := idx.Register("dup", tag); err == nil {
		t.Fatal("expected error registering duplicate key")
	}
}
