// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package dbdriver

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/scadalite/engine/internal/scadaerr"
)

// Read pulls the latest row of every registered table and updates the
// tags backed by its columns.
func (p *PLC) Read(ctx context.Context) error {
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()
	if db == nil {
		return fmt.Errorf("dbdriver %s: %w", p.cfg.Key, scadaerr.ErrTransport)
	}

	p.tblMu.RLock()
	tables := make([]*table, 0, len(p.tables))
	for _, t := range p.tables {
		tables = append(tables, t)
	}
	p.tblMu.RUnlock()

	for _, t := range tables {
		if err := p.readLatest(ctx, t); err != nil {
			if p.RecordFailure() {
				p.Disconnect()
			}
			return err
		}
	}
	p.ResetFailures()
	return nil
}

func (p *PLC) readLatest(ctx context.Context, t *table) error {
	t.mu.RLock()
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, quoteIdent(c))
	}
	t.mu.RUnlock()
	if len(cols) == 0 {
		return nil
	}

	query, args, err := sq.Select(cols...).From(t.name).OrderBy("date DESC").Limit(1).
		PlaceholderFormat(p.placeholderFormat()).ToSql()
	if err != nil {
		return fmt.Errorf("dbdriver %s: build select %s: %w", p.cfg.Key, t.name, scadaerr.ErrEval)
	}

	rows, err := p.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("dbdriver %s: select %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil
	}
	values, err := rows.SliceScan()
	if err != nil {
		return fmt.Errorf("dbdriver %s: scan %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, c := range cols {
		colName := trimIdent(c)
		if tag, ok := t.columns[colName]; ok && i < len(values) {
			tag.Update(values[i])
		}
	}
	return nil
}

func trimIdent(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
