// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package wsgateway

import (
	"context"
	"fmt"
	"time"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// renderable renders v for the wire, reporting false if it is nil and
// should be dropped from a batch rather than sent as an empty string.
func renderable(v tagstore.Value) (string, bool) {
	if v == nil {
		return "", false
	}
	return tagstore.RenderString(v), true
}

// handleSubscribe registers this client against every tag key and
// replies with the batch of currently-known values, skipping unset
// (null) tags. It also registers the client against every alarm group
// key and, if any groups were given, replies with the group's
// currently-active alarms. Unknown keys are reported but do not stop
// resolution of the rest of the batch.
func (c *client) handleSubscribe(tagKeys, groupKeys []string) error {
	var firstErr error
	note := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if len(tagKeys) > 0 {
		values := make([][2]string, 0, len(tagKeys))
		for _, key := range tagKeys {
			t, ok := c.gw.ens.Tag(key)
			if !ok {
				note(fmt.Errorf("subscribe %q: %w", key, scadaerr.ErrUnknownTag))
				continue
			}
			t.Subscribe(c)
			if s, ok := renderable(t.Get()); ok {
				values = append(values, [2]string{t.Key, s})
			}
		}
		c.send(valuesMsg{Action: "values", Tags: values})
	}

	if len(groupKeys) > 0 {
		var active [][]any
		for _, key := range groupKeys {
			g, ok := c.gw.ens.AlarmGroup(key)
			if !ok {
				note(fmt.Errorf("subscribe %q: %w", key, scadaerr.ErrUnknownTag))
				continue
			}
			g.AddOutput(c)
			for _, a := range g.Alarms() {
				isActive, since := a.State()
				if !isActive {
					continue
				}
				active = append(active, []any{a.Key(), since.Format(tsLayout), a.Expr.Tag.Description, isActive, g.Key})
			}
		}
		c.send(alarmsMsg{Action: "alarms", Alarms: active})
	}

	return firstErr
}

// handleChange pushes a client-initiated write through Tag.Write, which
// routes to the owning driver's Writer if there is one. Fire and forget:
// the write executes in the background and no response is sent; only an
// unknown key is reported back as an error.
func (c *client) handleChange(key string, value any) error {
	t, ok := c.gw.ens.Tag(key)
	if !ok {
		return fmt.Errorf("change %q: %w", key, scadaerr.ErrUnknownTag)
	}
	go func() {
		if err := t.Write(value); err != nil {
			log.Warnf("wsgateway: change %q: %v", key, err)
		}
	}()
	return nil
}

// handleSetRow writes one row through the database driver's PLC.SetRow.
// The request carries no table name, so the target table is inferred
// from the tags themselves: every key in tags must resolve to a tag
// backed by the same database memory.
func (c *client) handleSetRow(dateStr string, values map[string]any) error {
	if c.gw.db == nil {
		return fmt.Errorf("set_row: %w", scadaerr.ErrUnsupportedType)
	}
	if len(values) == 0 {
		return fmt.Errorf("set_row: no tags given: %w", scadaerr.ErrUnsupportedType)
	}

	var date time.Time
	if dateStr != "" {
		var err error
		date, err = time.Parse(tsLayout, dateStr)
		if err != nil {
			return fmt.Errorf("set_row: date %q: %w", dateStr, scadaerr.ErrBadExpression)
		}
	}

	var table string
	cols := make(map[string]tagstore.Value, len(values))
	for key, v := range values {
		t, ok := c.gw.ens.Tag(key)
		if !ok {
			return fmt.Errorf("set_row: tag %q: %w", key, scadaerr.ErrUnknownTag)
		}
		column, ok := t.Address.(string)
		if !ok {
			return fmt.Errorf("set_row: tag %q has no database column: %w", key, scadaerr.ErrUnsupportedType)
		}
		switch {
		case table == "":
			table = t.MemoryKey
		case table != t.MemoryKey:
			return fmt.Errorf("set_row: tags %q span multiple tables: %w", key, scadaerr.ErrUnsupportedType)
		}
		cols[column] = v
	}

	return c.gw.db.SetRow(table, cols, date)
}

// handleTrend serves a [from, to] millisecond window of history for each
// tag key, resolving every key to its owning table and column through
// the ensemble rather than trusting the client with raw table/column
// names.
func (c *client) handleTrend(id string, fromMs, toMs int64, tagKeys []string) error {
	if c.gw.db == nil {
		return fmt.Errorf("trend: %w", scadaerr.ErrUnsupportedType)
	}

	series := make([]trendSeries, 0, len(tagKeys))
	for _, key := range tagKeys {
		t, ok := c.gw.ens.Tag(key)
		if !ok {
			return fmt.Errorf("trend: tag %q: %w", key, scadaerr.ErrUnknownTag)
		}
		column, ok := t.Address.(string)
		if !ok {
			return fmt.Errorf("trend: tag %q has no database column: %w", key, scadaerr.ErrUnsupportedType)
		}

		points, err := c.gw.db.GetData(context.Background(), t.MemoryKey, column, fromMs, toMs)
		if err != nil {
			return err
		}
		data := make([][2]any, len(points))
		for i, p := range points {
			data[i] = [2]any{p.Timestamp.UnixMilli(), p.Value}
		}
		series = append(series, trendSeries{Label: key, Data: data})
	}

	c.send(trendMsg{Action: "trend", Trend: id, From: fromMs, To: toMs, Tags: series})
	return nil
}
