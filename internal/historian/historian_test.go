// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package historian

import (
	"context"
	"testing"

	"github.com/scadalite/engine/internal/tagstore"
)

func TestNewReturnsNilWhenBucketEmpty(t *testing.T) {
	h, err := New(context.Background(), Config{}, tagstore.NewTagIndex())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if h != nil {
		t.Fatal("expected nil historian when Bucket is empty")
	}
}

func TestRunOnNilHistorianReturnsImmediately(t *testing.T) {
	var h *Historian
	h.Run(context.Background())
}

func TestAvroBranchMatchesGoType(t *testing.T) {
	cases := []struct {
		v    tagstore.Value
		want string
	}{
		{nil, "null"},
		{true, "boolean"},
		{int64(1), "long"},
		{float64(1.5), "double"},
		{"s", "string"},
	}
	for _, c := range cases {
		if got := avroBranch(c.v); got != c.want {
			t.Fatalf("avroBranch(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}
