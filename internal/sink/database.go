// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/scadaerr"
)

// Database inserts one row per alarm edge into Table, always through
// squirrel's parameterized builder — never string-interpolated SQL.
type Database struct {
	DB        *sqlx.DB
	Table     string
	Placehold sq.PlaceholderFormat // sq.Question (sqlite) or sq.Dollar (postgres)
}

// NewDatabase wraps an already-open *sqlx.DB. table must already exist
// with columns (ts, alarm_key, value, info).
func NewDatabase(db *sqlx.DB, table string, placeholder sq.PlaceholderFormat) *Database {
	return &Database{DB: db, Table: table, Placehold: placeholder}
}

func (d *Database) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	query, args, err := sq.Insert(d.Table).
		Columns("ts", "alarm_key", "value", "info").
		Values(ts.UTC(), e.Tag.Key, value, formatInfo(info)).
		PlaceholderFormat(d.placeholder()).
		ToSql()
	if err != nil {
		return fmt.Errorf("sink: build insert %s: %w", d.Table, scadaerr.ErrEval)
	}

	if _, err := d.DB.ExecContext(context.Background(), query, args...); err != nil {
		return fmt.Errorf("sink: insert %s: %w", d.Table, scadaerr.ErrTransport)
	}
	return nil
}

func (d *Database) placeholder() sq.PlaceholderFormat {
	if d.Placehold != nil {
		return d.Placehold
	}
	return sq.Question
}
