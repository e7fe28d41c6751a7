// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package dbdriver implements the database driver: every Memory maps
// onto one table, every tag onto one column, and every Read/Write maps
// onto a parameterized row select/insert built with Masterminds/squirrel.
package dbdriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/scadalite/engine/internal/driver"
	"github.com/scadalite/engine/internal/scadaerr"
	"github.com/scadalite/engine/internal/tagstore"
	"github.com/scadalite/engine/pkg/log"
)

// Config describes the backing database. Driver is "sqlite3" or
// "postgres"; DSN is passed straight to sqlx.Open.
type Config struct {
	Key     string
	Driver  string
	DSN     string
	Polling time.Duration
}

// table tracks one Memory's column set and its backing tagstore.Memory,
// so rows can be assembled and scattered without the driver needing a
// generic reflection layer.
type table struct {
	mu      sync.RWMutex
	name    string
	mem     *tagstore.Memory
	columns map[string]*tagstore.Tag // column name -> tag
	created bool
}

// PLC is a database-backed driver.Driver. It has no block-read span like
// Modbus; each table is queried independently every scan.
type PLC struct {
	*driver.PLC
	cfg Config

	mu     sync.Mutex
	db     *sqlx.DB
	dbType string // squirrel placeholder format driver

	tblMu  sync.RWMutex
	tables map[string]*table
}

// New constructs a disconnected database PLC driver.
func New(cfg Config) *PLC {
	if cfg.Polling <= 0 {
		cfg.Polling = 5 * time.Second
	}
	return &PLC{
		cfg:    cfg,
		PLC:    driver.NewPLC(cfg.Key, cfg.Polling, 3),
		tables: make(map[string]*table),
	}
}

// RegisterMemory declares the table backing mem, keyed by tableName. Tag
// columns are added lazily via CreateTag.
func (p *PLC) RegisterMemory(tableName string, mem *tagstore.Memory) {
	p.tblMu.Lock()
	defer p.tblMu.Unlock()
	p.tables[tableName] = &table{name: tableName, mem: mem, columns: make(map[string]*tagstore.Tag)}
}

// CreateTag declares a tag stored in tableName's named column, defaulting
// to a 64-bit float for column inference.
func (p *PLC) CreateTag(tableName, column, key, description string) *tagstore.Tag {
	p.tblMu.RLock()
	tbl, ok := p.tables[tableName]
	p.tblMu.RUnlock()
	if !ok {
		return nil
	}

	t := tbl.mem.Create(key, description, column)
	t.SetWriter(p.writeTag(tbl, column))

	tbl.mu.Lock()
	tbl.columns[column] = t
	tbl.mu.Unlock()
	return t
}

// Connect opens the pool and ensures every registered table exists.
func (p *PLC) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Connected() {
		return nil
	}

	db, err := sqlx.Open(p.cfg.Driver, p.cfg.DSN)
	if err != nil {
		return fmt.Errorf("dbdriver %s: open %s: %w", p.cfg.Key, p.cfg.Driver, scadaerr.ErrTransport)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("dbdriver %s: ping: %w", p.cfg.Key, scadaerr.ErrTransport)
	}
	if p.cfg.Driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
	}

	p.db = db
	p.dbType = p.cfg.Driver

	p.tblMu.RLock()
	tables := make([]*table, 0, len(p.tables))
	for _, t := range p.tables {
		tables = append(tables, t)
	}
	p.tblMu.RUnlock()

	for _, t := range tables {
		if err := p.ensureTable(ctx, t); err != nil {
			return err
		}
	}

	p.SetConnected(true)
	log.Infof("dbdriver %s: connected (%s)", p.cfg.Key, p.cfg.Driver)
	return nil
}

// ensureTable creates tableName on first connect if it does not already
// exist, with one column per declared tag plus a date primary key.
func (p *PLC) ensureTable(ctx context.Context, t *table) error {
	t.mu.RLock()
	cols := make([]string, 0, len(t.columns))
	for c := range t.columns {
		cols = append(cols, c)
	}
	t.mu.RUnlock()

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (date TIMESTAMP PRIMARY KEY", t.name)
	for _, c := range cols {
		stmt += fmt.Sprintf(", %s DOUBLE PRECISION", quoteIdent(c))
	}
	stmt += ")"

	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("dbdriver %s: create table %s: %w", p.cfg.Key, t.name, scadaerr.ErrTransport)
	}
	t.mu.Lock()
	t.created = true
	t.mu.Unlock()
	return nil
}

func quoteIdent(s string) string { return `"` + s + `"` }

// placeholderFormat returns the squirrel placeholder style matching the
// connected database (postgres wants $N, sqlite wants ?).
func (p *PLC) placeholderFormat() sq.PlaceholderFormat {
	if p.dbType == "postgres" {
		return sq.Dollar
	}
	return sq.Question
}

// PlaceholderFormat exposes placeholderFormat for sinks that build their
// own squirrel queries against this PLC's connection (internal/sink's
// Database output).
func (p *PLC) PlaceholderFormat() sq.PlaceholderFormat {
	return p.placeholderFormat()
}

// DB returns the underlying connection pool, or nil before Connect.
func (p *PLC) DB() *sqlx.DB {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db
}

// Disconnect closes the pool.
func (p *PLC) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		_ = p.db.Close()
		p.db = nil
	}
	p.SetConnected(false)
}
