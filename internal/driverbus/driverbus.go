// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package driverbus schedules every connected driver's scan cycle using a
// central gocron scheduler — one recurring job per driver at its own
// PollingTime — instead of a per-PLC goroutine+sleep loop, which
// simplifies shutdown to a single call.
package driverbus

import (
	"context"

	"github.com/go-co-op/gocron/v2"

	"github.com/scadalite/engine/internal/driver"
	"github.com/scadalite/engine/internal/metrics"
	"github.com/scadalite/engine/pkg/log"
)

// Bus owns the scheduler and every driver registered with it.
type Bus struct {
	sched   gocron.Scheduler
	drivers []driver.Driver
	jobs    []gocron.Job
}

// New creates a Bus with its own gocron scheduler.
func New() (*Bus, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Bus{sched: s}, nil
}

// Register schedules d's scan cycle. Ensemble.AddPLC calls Register for
// every PLC as it is added, before Deploy calls Start.
func (b *Bus) Register(ctx context.Context, d driver.Driver) error {
	job, err := b.sched.NewJob(
		gocron.DurationJob(d.PollingTime()),
		gocron.NewTask(func() { b.tick(ctx, d) }),
	)
	if err != nil {
		return err
	}
	b.drivers = append(b.drivers, d)
	b.jobs = append(b.jobs, job)
	return nil
}

// tick implements the scan loop: while connected, read() once; otherwise
// attempt reconnect. A failing read counts against the driver's own
// consecutive-failure budget; the driver disconnects itself once that
// budget is exhausted, so a transient error here does not force an
// immediate reconnect.
func (b *Bus) tick(ctx context.Context, d driver.Driver) {
	if !d.Connected() {
		if err := d.Connect(ctx); err != nil {
			logTransportError(d.Key(), "connect", err)
		}
		return
	}

	timer := metrics.StartScan(d.Key())
	err := d.Read(ctx)
	timer.ObserveDuration()

	if err != nil {
		metrics.ScanFailures.WithLabelValues(d.Key()).Inc()
		logTransportError(d.Key(), "read", err)
	}
}

func logTransportError(plcKey, op string, err error) {
	log.Errorf("driverbus: %s: %s: %v", plcKey, op, err)
}

// Start begins running every registered driver's schedule. Drivers start
// disconnected; the first tick of each job performs the initial Connect.
func (b *Bus) Start() {
	b.sched.Start()
}

// Shutdown stops the scheduler and disconnects every driver.
func (b *Bus) Shutdown() error {
	err := b.sched.Shutdown()
	for _, d := range b.drivers {
		d.Disconnect()
	}
	return err
}
