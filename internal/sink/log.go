// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"time"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/pkg/log"
)

// Log writes every alarm edge through the engine's structured logger,
// the simplest Output, at Warn for ON and Info for OFF.
type Log struct {
	Template string // defaults to "{i.key} ({i.description}) -> {i.value}"
}

// NewLog constructs a Log sink with the default message template.
func NewLog() *Log { return &Log{Template: "{i.key} ({i.description}) -> {i.value}"} }

func (l *Log) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	msg := transform(l.Template, e, value)
	if value {
		log.Warnf("alarm: %s %s", msg, formatInfo(info))
	} else {
		log.Infof("alarm: %s %s", msg, formatInfo(info))
	}
	return nil
}
