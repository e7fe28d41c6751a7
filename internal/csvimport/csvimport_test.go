// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package csvimport

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/charmap"

	"github.com/scadalite/engine/internal/ensemble"
	"github.com/scadalite/engine/internal/scadaerr"
)

func writeFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(fp, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return fp
}

const tagHeader = "tag_key;plc_key;memory_key;address;description\n"

func TestReadTagsUTF8(t *testing.T) {
	fp := writeFile(t, "tags.csv", []byte(tagHeader+"temp;plc1;mem1;100;Température chaudière\n"))
	recs, err := ReadTags(fp)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if len(recs) != 1 || recs[0].Description != "Température chaudière" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestReadTagsLatin1(t *testing.T) {
	encoded, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(tagHeader + "temp;plc1;mem1;100;Température chaudière\n"))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	fp := writeFile(t, "tags.csv", encoded)

	recs, err := ReadTags(fp)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if len(recs) != 1 || recs[0].Description != "Température chaudière" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestReadTagsRejectsUnsupportedEncoding(t *testing.T) {
	fp := writeFile(t, "tags.csv", []byte{0x00, 0x01, 0x02, 0xff, 0xfe})
	if _, err := ReadTags(fp); err == nil {
		t.Fatal("expected error for unsupported encoding")
	} else if !errors.Is(err, scadaerr.ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestReadTagsRejectsShortRow(t *testing.T) {
	fp := writeFile(t, "tags.csv", []byte(tagHeader+"temp;plc1;mem1\n"))
	if _, err := ReadTags(fp); err == nil {
		t.Fatal("expected error for short row")
	}
}

func TestReadTagsSkipsHeaderRow(t *testing.T) {
	fp := writeFile(t, "tags.csv", []byte(tagHeader+"temp;plc1;mem1;100;boiler temperature\n"))
	recs, err := ReadTags(fp)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 data row, got %d: %+v", len(recs), recs)
	}
	if recs[0].TagKey != "temp" {
		t.Fatalf("expected header row to be skipped, got TagKey %q", recs[0].TagKey)
	}
}

func TestImportAlarmsRegistersAgainstEnsemble(t *testing.T) {
	e, err := ensemble.New()
	if err != nil {
		t.Fatalf("ensemble.New: %v", err)
	}
	recs := []AlarmRecord{{AlarmKey: "a1", Definition: "1 > 0", Description: "always on"}}
	if err := ImportAlarms(recs, e); err != nil {
		t.Fatalf("ImportAlarms: %v", err)
	}
	if _, ok := e.Tag("a1"); !ok {
		t.Fatal("expected alarm tag registered in ensemble's index")
	}
}

func TestParseAddress(t *testing.T) {
	n, err := ParseAddress(" 42 ")
	if err != nil || n != 42 {
		t.Fatalf("expected 42, got %v, err=%v", n, err)
	}
	if _, err := ParseAddress("not-a-number"); err == nil {
		t.Fatal("expected error for non-numeric address")
	}
}
