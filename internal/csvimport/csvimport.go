// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package csvimport reads the semicolon-delimited tag and alarm
// definition files and feeds them into an Ensemble as a small,
// file-driven bulk loader rather than a generic ETL framework.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/scadalite/engine/internal/alarm"
	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/scadaerr"
)

// TagRecord is one row of a tag CSV: tag_key;plc_key;memory_key;address;description.
type TagRecord struct {
	TagKey      string
	PLCKey      string
	MemoryKey   string
	Address     string
	Description string
}

// AlarmRecord is one row of an alarm CSV: alarm_key;definition;description.
type AlarmRecord struct {
	AlarmKey    string
	Definition  string
	Description string
}

// ReadTags parses a tag CSV from path, detecting UTF-8 vs Latin-1 and
// rejecting anything else — an unconditional Latin-1 decode would
// silently mangle UTF-8 input, so this distinguishes the two and
// refuses a third.
func ReadTags(path string) ([]TagRecord, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	recs := make([]TagRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("csvimport: tag row %d: expected 5 fields, got %d", i+1, len(row))
		}
		recs = append(recs, TagRecord{
			TagKey:      row[0],
			PLCKey:      row[1],
			MemoryKey:   row[2],
			Address:     row[3],
			Description: row[4],
		})
	}
	return recs, nil
}

// ReadAlarms parses an alarm CSV from path.
func ReadAlarms(path string) ([]AlarmRecord, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}

	recs := make([]AlarmRecord, 0, len(rows))
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("csvimport: alarm row %d: expected 3 fields, got %d", i+1, len(row))
		}
		recs = append(recs, AlarmRecord{
			AlarmKey:    row[0],
			Definition:  row[1],
			Description: row[2],
		})
	}
	return recs, nil
}

// readRows opens path, auto-detects its encoding, and returns every
// semicolon-delimited data row, skipping the mandatory header row.
func readRows(path string) ([][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("csvimport: read %s: %w", path, scadaerr.ErrTransport)
	}

	r, err := decodeReader(raw)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvimport: parse %s: %w", path, scadaerr.ErrProtocol)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// decodeReader returns a reader producing UTF-8 text from raw, which may
// already be UTF-8 or may be Latin-1 (ISO-8859-1) — the only two
// encodings the source tool ever emitted. Anything else is rejected
// instead of silently mis-decoded.
func decodeReader(raw []byte) (io.Reader, error) {
	if utf8.Valid(raw) {
		return strings.NewReader(string(raw)), nil
	}

	if looksLikeLatin1(raw) {
		return transform.NewReader(bufio.NewReader(strings.NewReader(string(raw))), charmap.ISO8859_1.NewDecoder()), nil
	}

	return nil, scadaerr.ErrUnsupportedEncoding
}

// looksLikeLatin1 rejects control bytes (other than common whitespace)
// that neither valid UTF-8 nor Latin-1 text would plausibly contain.
func looksLikeLatin1(raw []byte) bool {
	for _, b := range raw {
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			return false
		}
	}
	return true
}

// ImportTags creates every tag named in recs against its PLC/Memory.
// resolve is called once per record with (plcKey, memoryKey, address,
// tagKey, description) and creates the tag — the caller dispatches to
// the right driver package, so csvimport stays driver-agnostic.
func ImportTags(recs []TagRecord, resolve func(plcKey, memoryKey, address, tagKey, description string) error) error {
	for _, r := range recs {
		if err := resolve(r.PLCKey, r.MemoryKey, r.Address, r.TagKey, r.Description); err != nil {
			return fmt.Errorf("csvimport: tag %q: %w", r.TagKey, err)
		}
	}
	return nil
}

// ImportAlarms constructs and registers an alarm.Alarm per record.
func ImportAlarms(recs []AlarmRecord, e *ensemble.Ensemble) error {
	for _, r := range recs {
		a := alarm.New(r.AlarmKey, r.Description, r.Definition, e.Index)
		if err := e.AddAlarm(a); err != nil {
			return fmt.Errorf("csvimport: alarm %q: %w", r.AlarmKey, err)
		}
	}
	return nil
}

// ParseAddress parses a decimal Modbus-style address out of a CSV field.
// Other drivers (OPC-UA path strings, DB column names) use the raw
// string instead and never call this.
func ParseAddress(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("csvimport: address %q: %w", s, scadaerr.ErrBadExpression)
	}
	return uint16(n), nil
}
