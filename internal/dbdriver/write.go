// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dbdriver

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
)

// writeTag returns a tagstore.Writer that inserts one new row stamped
// with the current time, setting only this tag's column. Every write
// goes through squirrel's parameterized query builder, never
// string-formatted SQL.
func (p *PLC) writeTag(t *table, column string) tagstore.Writer {
	return func(v tagstore.Value) error {
		p.mu.Lock()
		db := p.db
		p.mu.Unlock()
		if db == nil {
			return fmt.Errorf("dbdriver %s: %w", p.cfg.Key, scadaerr.ErrTransport)
		}

		query, args, err := sq.Insert(t.name).
			Columns("date", column).
			Values(time.Now().UTC(), v).
			PlaceholderFormat(p.placeholderFormat()).
			ToSql()
		if err != nil {
			return fmt.Errorf("dbdriver %s: build insert %s: %w", p.cfg.Key, t.name, scadaerr.ErrEval)
		}

		if _, err := db.ExecContext(context.Background(), query, args...); err != nil {
			return fmt.Errorf("dbdriver %s: insert %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
		}

		t.mu.RLock()
		tag := t.columns[column]
		t.mu.RUnlock()
		if tag != nil {
			tag.Update(v)
		}
		return nil
	}
}

// SetRow inserts one row covering every column in values, defaulting to
// now when date is zero.
func (p *PLC) SetRow(tableName string, values map[string]tagstore.Value, date time.Time) error {
	p.tblMu.RLock()
	t, ok := p.tables[tableName]
	p.tblMu.RUnlock()
	if !ok {
		return fmt.Errorf("dbdriver %s: unknown table %q: %w", p.cfg.Key, tableName, scadaerr.ErrUnknownTag)
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	cols := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	cols = append(cols, "date")
	args = append(args, date)
	for c, v := range values {
		cols = append(cols, c)
		args = append(args, v)
	}

	query, sqlArgs, err := sq.Insert(t.name).Columns(cols...).Values(args...).
		PlaceholderFormat(p.placeholderFormat()).ToSql()
	if err != nil {
		return fmt.Errorf("dbdriver %s: build insert %s: %w", p.cfg.Key, t.name, scadaerr.ErrEval)
	}

	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return fmt.Errorf("dbdriver %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}
	if _, err := db.ExecContext(context.Background(), query, sqlArgs...); err != nil {
		return fmt.Errorf("dbdriver %s: insert %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}
	return nil
}

// GetRow returns the latest row of tableName as a column->value map.
func (p *PLC) GetRow(ctx context.Context, tableName string) (map[string]tagstore.Value, error) {
	p.tblMu.RLock()
	t, ok := p.tables[tableName]
	p.tblMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dbdriver %s: unknown table %q: %w", p.cfg.Key, tableName, scadaerr.ErrUnknownTag)
	}

	t.mu.RLock()
	cols := make([]string, 0, len(t.columns)+1)
	cols = append(cols, "date")
	for c := range t.columns {
		cols = append(cols, c)
	}
	t.mu.RUnlock()

	query, args, err := sq.Select(cols...).From(t.name).OrderBy("date DESC").Limit(1).
		PlaceholderFormat(p.placeholderFormat()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("dbdriver %s: build select %s: %w", p.cfg.Key, t.name, scadaerr.ErrEval)
	}

	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("dbdriver %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}

	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dbdriver %s: select %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}
	defer rows.Close()

	if !rows.Next() {
		return map[string]tagstore.Value{}, nil
	}
	raw := make(map[string]any)
	if err := rows.MapScan(raw); err != nil {
		return nil, fmt.Errorf("dbdriver %s: scan %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}

	out := make(map[string]tagstore.Value, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out, nil
}

// TrendPoint is one sample of a GetData trend series.
type TrendPoint struct {
	Timestamp time.Time
	Value     tagstore.Value
}

// GetData returns column's samples within [fromMs, toMs], left- and
// right-padded with the nearest boundary sample when the window extends
// past the stored data.
func (p *PLC) GetData(ctx context.Context, tableName, column string, fromMs, toMs int64) ([]TrendPoint, error) {
	p.tblMu.RLock()
	t, ok := p.tables[tableName]
	p.tblMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dbdriver %s: unknown table %q: %w", p.cfg.Key, tableName, scadaerr.ErrUnknownTag)
	}

	from := time.UnixMilli(fromMs).UTC()
	to := time.UnixMilli(toMs).UTC()

	query, args, err := sq.Select("date", quoteIdent(column)).From(t.name).
		Where(sq.And{sq.GtOrEq{"date": from}, sq.LtOrEq{"date": to}}).
		OrderBy("date ASC").
		PlaceholderFormat(p.placeholderFormat()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("dbdriver %s: build trend %s: %w", p.cfg.Key, t.name, scadaerr.ErrEval)
	}

	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("dbdriver %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}

	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dbdriver %s: trend %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var ts time.Time
		var val any
		if err := rows.Scan(&ts, &val); err != nil {
			return nil, fmt.Errorf("dbdriver %s: scan trend %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
		}
		points = append(points, TrendPoint{Timestamp: ts, Value: val})
	}

	return padTrend(points, from, to), nil
}

// padTrend repeats the first/last sample at the window boundaries so a
// caller always gets a continuous series spanning [from, to], per the
// trend round-trip law.
func padTrend(points []TrendPoint, from, to time.Time) []TrendPoint {
	if len(points) == 0 {
		return points
	}
	out := points
	if points[0].Timestamp.After(from) {
		out = append([]TrendPoint{{Timestamp: from, Value: points[0].Value}}, out...)
	}
	if last := points[len(points)-1]; last.Timestamp.Before(to) {
		out = append(out, TrendPoint{Timestamp: to, Value: last.Value})
	}
	return out
}
