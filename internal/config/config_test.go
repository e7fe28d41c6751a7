// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scadalite/engine/internal/modbusdrv"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	fp := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(fp, []byte(contents), 0o644))
	return fp
}

func TestInitMinimal(t *testing.T) {
	fp := writeTempConfig(t, `{"addr": ":9090"}`)
	Keys = Config{Addr: ":8080", StaticFiles: "./web/public", Validate: true}

	require.NoError(t, Init(fp))
	require.Equal(t, ":9090", Keys.Addr)
}

func TestInitNoFile(t *testing.T) {
	Keys = Config{Addr: ":8080", StaticFiles: "./web/public", Validate: true}

	t.Run("missing config file leaves defaults", func(t *testing.T) {
		require.NoError(t, Init(""))
		require.Equal(t, ":8080", Keys.Addr, "expected default addr to survive")
	})
}

func TestValidateRejectsDuplicateKeys(t *testing.T) {
	Keys = Config{
		Addr:   ":8080",
		Modbus: []modbusdrv.Config{{Key: "plc1"}, {Key: "plc1"}},
	}
	require.Error(t, Validate(), "expected error for duplicate plc key")
}

func TestValidateRejectsEmptyAddr(t *testing.T) {
	Keys = Config{Addr: ""}
	require.Error(t, Validate(), "expected error for empty addr")
}
