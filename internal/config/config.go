// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config holds the engine's JSON configuration: a package-level
// Keys var populated by Init(file), with godotenv layered on top for
// environment overrides of per-driver secrets.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/scadalite/engine/internal/dbdriver"
	"github.com/scadalite/engine/internal/historian"
	"github.com/scadalite/engine/internal/modbusdrv"
	"github.com/scadalite/engine/internal/opcuadrv"
	"github.com/scadalite/engine/pkg/log"
)

// Config is the root JSON configuration document.
type Config struct {
	Addr        string `json:"addr"`
	StaticFiles string `json:"static-files"`
	Validate    bool   `json:"validate"`

	// User/Group let the process bind a privileged Addr as root, then
	// drop to an unprivileged account before serving any request.
	User  string `json:"user"`
	Group string `json:"group"`

	TagsFile   string `json:"tags-file"`
	AlarmsFile string `json:"alarms-file"`

	Modbus   []modbusdrv.Config `json:"modbus"`
	OPCUA    []opcuadrv.Config  `json:"opcua"`
	Database []dbdriver.Config  `json:"database"`

	Historian historian.Config `json:"historian"`

	NATS struct {
		Address string `json:"address"`
		Subject string `json:"subject"`
	} `json:"nats"`

	AlarmGroups []AlarmGroupConfig `json:"alarm-groups"`
}

// AlarmGroupConfig names an AlarmGroup and the output sinks its alarm
// edges fan out to.
type AlarmGroupConfig struct {
	Key     string         `json:"key"`
	Outputs []OutputConfig `json:"outputs"`
}

// OutputConfig describes one sink instance. Type selects which fields
// apply: "log" and "file" only need Path (file) or nothing (log);
// "database" needs Table (and reuses the matching Database driver's
// connection); "mail" needs Host/From/To/User/Password; "bus" needs
// Subject and reuses the shared NATS connection.
type OutputConfig struct {
	Type   string `json:"type"`
	Path   string `json:"path"`
	PLCKey string `json:"plc-key"` // database sink: which Database driver's connection to reuse
	Table  string `json:"table"`   // database sink: destination table name

	Host     string   `json:"host"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	User     string   `json:"user"`
	Password string   `json:"password"`

	Subject string `json:"subject"`
}

// Keys is the process-wide configuration, overridden by Init.
var Keys = Config{
	Addr:        ":8080",
	StaticFiles: "./web/public",
	Validate:    true,
}

// Init loads .env (if present), then a JSON config file, into Keys.
// Environment variables of the form SCADALITE_* override individual
// fields after the file is parsed — the same two-stage precedence the
// teacher's .env loader + JSON config gives it.
func Init(configFile string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("config: load .env: %w", err)
	}

	if configFile != "" {
		raw, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", configFile, err)
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&Keys); err != nil {
			return fmt.Errorf("config: parse %s: %w", configFile, err)
		}
	}

	applyEnvOverrides()

	if err := Validate(); err != nil {
		return err
	}
	log.Infof("config: loaded (addr=%s, modbus=%d, opcua=%d, database=%d)",
		Keys.Addr, len(Keys.Modbus), len(Keys.OPCUA), len(Keys.Database))
	return nil
}

// applyEnvOverrides lets deployment secrets (DSNs, credentials) come
// from the environment instead of the checked-in config file.
func applyEnvOverrides() {
	if v := os.Getenv("SCADALITE_ADDR"); v != "" {
		Keys.Addr = v
	}
	if v := os.Getenv("SCADALITE_NATS_ADDRESS"); v != "" {
		Keys.NATS.Address = v
	}
	for i := range Keys.Database {
		env := "SCADALITE_DB_DSN_" + strings.ToUpper(Keys.Database[i].Key)
		if v := os.Getenv(env); v != "" {
			Keys.Database[i].DSN = v
		}
	}
}

// Validate rejects structurally impossible configuration before Deploy
// is attempted. See DESIGN.md for why this is a small set of explicit
// checks rather than a JSON Schema validator.
func Validate() error {
	if Keys.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}

	seen := make(map[string]bool)
	claim := func(key string) error {
		if key == "" {
			return fmt.Errorf("config: plc entry missing key")
		}
		if seen[key] {
			return fmt.Errorf("config: duplicate plc key %q", key)
		}
		seen[key] = true
		return nil
	}

	for _, m := range Keys.Modbus {
		if err := claim(m.Key); err != nil {
			return err
		}
	}
	for _, o := range Keys.OPCUA {
		if err := claim(o.Key); err != nil {
			return err
		}
	}
	for _, d := range Keys.Database {
		if err := claim(d.Key); err != nil {
			return err
		}
	}
	return nil
}
