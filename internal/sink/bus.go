// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sink

import (
	"fmt"
	"time"

	influx "github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"

	"github.com/scadalite/engine/internal/expr"
	"github.com/scadalite/engine/internal/scadaerr"
)

// Bus publishes every alarm edge as an InfluxDB line-protocol message on
// a NATS subject, encoding each edge the way a line-protocol decoder's
// inverse would.
type Bus struct {
	Conn        *nats.Conn
	Subject     string // e.g. "scadalite.alarms"
	Measurement string // defaults to "alarm"
}

// NewBus wraps an already-connected NATS connection.
func NewBus(conn *nats.Conn, subject string) *Bus {
	return &Bus{Conn: conn, Subject: subject, Measurement: "alarm"}
}

func (b *Bus) Write(e *expr.Expression, ts time.Time, value bool, info map[string]string) error {
	var enc influx.Encoder
	enc.SetPrecision(influx.Nanosecond)

	measurement := b.Measurement
	if measurement == "" {
		measurement = "alarm"
	}
	enc.StartLine(measurement)
	enc.AddTag([]byte("key"), []byte(e.Tag.Key))
	for k, v := range info {
		enc.AddTag([]byte(k), []byte(v))
	}
	enc.AddField([]byte("value"), influx.MustNewValue(value))
	enc.EndLine(ts)

	if err := enc.Err(); err != nil {
		return fmt.Errorf("sink: encode line protocol: %w", scadaerr.ErrEval)
	}

	if err := b.Conn.Publish(b.Subject, enc.Bytes()); err != nil {
		return fmt.Errorf("sink: nats publish %s: %w", b.Subject, scadaerr.ErrTransport)
	}
	return nil
}
