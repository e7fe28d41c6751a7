// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

func TestDatabaseSinkInsertsRow(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "alarms.db")
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("sqlx.Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE alarm_log (ts TIMESTAMP, alarm_key TEXT, value BOOLEAN, info TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	d := NewDatabase(db, "alarm_log", sq.Question)
	e := testExpression("high_temp", "boiler too hot")

	if err := d.Write(e, time.Now(), true, map[string]string{"plc": "plc1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM alarm_log WHERE alarm_key = 'high_temp'"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row inserted, got %d", count)
	}
}

func TestDatabaseSinkDefaultsPlaceholderToQuestion(t *testing.T) {
	d := &Database{}
	if d.placeholder() != sq.Question {
		t.Fatal("expected default placeholder format to be sq.Question")
	}
}
