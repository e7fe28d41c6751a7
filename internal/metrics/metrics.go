// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes the engine's Prometheus instrumentation,
// scraped by internal/httpserver's /metrics route.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ScanDuration observes how long a single driver scan cycle
	// (Driver.Read) takes, labeled by PLC key.
	ScanDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scadalite",
		Subsystem: "driver",
		Name:      "scan_duration_seconds",
		Help:      "Duration of one full driver scan cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"plc"})

	// ScanFailures counts failed scan cycles, labeled by PLC key.
	ScanFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scadalite",
		Subsystem: "driver",
		Name:      "scan_failures_total",
		Help:      "Count of driver scan cycles that returned an error.",
	}, []string{"plc"})

	// TagUpdates is a counter for tag value changes, labeled by the
	// owning PLC key. It is registered and exported, but no package in
	// this module increments it, so it stays at zero.
	TagUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scadalite",
		Subsystem: "tag",
		Name:      "updates_total",
		Help:      "Count of tag value changes that notified subscribers.",
	}, []string{"plc"})

	// AlarmEdges is a counter for ON/OFF alarm transitions, labeled by
	// alarm key and the new state. It is registered and exported, but no
	// package in this module increments it, so it stays at zero.
	AlarmEdges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scadalite",
		Subsystem: "alarm",
		Name:      "edges_total",
		Help:      "Count of alarm ON/OFF edge events.",
	}, []string{"alarm", "state"})

	// WebsocketClients gauges the number of currently-connected
	// websocket gateway clients.
	WebsocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scadalite",
		Subsystem: "wsgateway",
		Name:      "clients",
		Help:      "Number of currently-connected websocket clients.",
	})
)

func init() {
	prometheus.MustRegister(ScanDuration, ScanFailures, TagUpdates, AlarmEdges, WebsocketClients)
}

// ScanTimer wraps a prometheus timer so driverbus doesn't need to import
// the library directly.
type ScanTimer struct {
	timer *prometheus.Timer
}

// StartScan begins timing a scan cycle for the given PLC key.
func StartScan(plcKey string) *ScanTimer {
	return &ScanTimer{timer: prometheus.NewTimer(ScanDuration.WithLabelValues(plcKey))}
}

// ObserveDuration records the elapsed time since StartScan.
func (t *ScanTimer) ObserveDuration() {
	t.timer.ObserveDuration()
}
