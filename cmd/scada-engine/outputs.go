// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/scadalite/engine/internal/alarm"
	"github.com/scadalite/engine/internal/config"
	"github.com/scadalite/engine/internal/dbdriver"
	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/sink"
)

// buildAlarmGroups constructs every configured AlarmGroup and its output
// sinks and registers them with e. dbByKey and nc let the database and
// bus sinks reuse already-open connections instead of opening their own.
func buildAlarmGroups(e *ensemble.Ensemble, dbByKey map[string]*dbdriver.PLC, nc *nats.Conn) error {
	for _, gc := range config.Keys.AlarmGroups {
		g := alarm.NewGroup(gc.Key)
		for _, oc := range gc.Outputs {
			out, err := buildOutput(oc, dbByKey, nc)
			if err != nil {
				return fmt.Errorf("outputs: group %q: %w", gc.Key, err)
			}
			g.AddOutput(out)
		}
		if err := e.AddAlarmGroup(gc.Key, g); err != nil {
			return err
		}
	}
	return nil
}

func buildOutput(oc config.OutputConfig, dbByKey map[string]*dbdriver.PLC, nc *nats.Conn) (alarm.Output, error) {
	switch oc.Type {
	case "log":
		return sink.NewLog(), nil
	case "file":
		return sink.NewFile(oc.Path)
	case "database":
		p, ok := dbByKey[oc.PLCKey]
		if !ok {
			return nil, fmt.Errorf("outputs: database sink references unknown plc %q", oc.PLCKey)
		}
		return sink.NewDatabase(p.DB(), oc.Table, p.PlaceholderFormat()), nil
	case "mail":
		return sink.NewMail(oc.Host, oc.From, oc.To, oc.User, oc.Password), nil
	case "bus":
		if nc == nil {
			return nil, fmt.Errorf("outputs: bus sink configured without nats.address")
		}
		return sink.NewBus(nc, oc.Subject), nil
	default:
		return nil, fmt.Errorf("outputs: unknown sink type %q", oc.Type)
	}
}
