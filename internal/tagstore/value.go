// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tagstore

import (
	"strconv"
	"time"
)

// Value is the dynamic type carried by a Tag: bool, int64, float64,
// string, time.Time, or nil (null). Any other concrete type is falsy
// for Truthy and renders as "" in RenderString; Equal compares it with
// Go's == operator.
type Value = any

// Equal reports whether two tag values are the same, used by Tag.Update
// to decide whether to fire subscribers. nil == nil; otherwise values of
// different concrete types are never equal (a float 1.0 and an int64 1
// are distinct tag values, matching the source's loose-typed but
// identity-based comparison for update suppression).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

// Truthy implements the truthiness rule used by Alarm edge detection:
// numeric != 0, non-empty string, bool as-is, non-zero time.Time; null
// and anything else is falsy.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case time.Time:
		return !t.IsZero()
	default:
		return false
	}
}

// RenderString renders a value the way output sinks and the websocket
// gateway present it to humans: bool as "True"/"False", int/float as
// decimal text, strings as-is, time.Time as "YYYY-MM-DD HH:MM:SS",
// everything else (including nil) as "".
func RenderString(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}
