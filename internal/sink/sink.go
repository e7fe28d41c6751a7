// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sink implements the Output variants an AlarmGroup fans its
// edge events out to: Log, File, Database, Mail, and the NATS-backed
// Bus. Every sink satisfies alarm.Output structurally, so this package
// never imports internal/alarm.
package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/scadalite/engine/internal/expr"
)

// transform expands the {i.key}/{i.description}/{i.value} placeholders
// used in sink message templates.
func transform(template string, e *expr.Expression, value bool) string {
	r := strings.NewReplacer(
		"{i.key}", e.Tag.Key,
		"{i.description}", e.Tag.Description,
		"{i.value}", renderBool(value),
	)
	return r.Replace(template)
}

func renderBool(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

func formatInfo(info map[string]string) string {
	if len(info) == 0 {
		return ""
	}
	parts := make([]string, 0, len(info))
	for k, v := range info {
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(parts, " ")
}

func formatLine(e *expr.Expression, ts time.Time, value bool, info map[string]string) string {
	return fmt.Sprintf("%s %s %s %s", ts.Format(time.RFC3339), e.Tag.Key, renderBool(value), formatInfo(info))
}
