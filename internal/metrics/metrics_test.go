// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStartScanObservesDuration(t *testing.T) {
	before := testutil.CollectAndCount(ScanDuration)

	timer := StartScan("plc1")
	timer.ObserveDuration()

	after := testutil.CollectAndCount(ScanDuration)
	if after <= before {
		t.Fatalf("expected scan duration observation to add a sample, before=%d after=%d", before, after)
	}
}

func TestScanFailuresIncrementsByLabel(t *testing.T) {
	before := testutil.ToFloat64(ScanFailures.WithLabelValues("plc-metrics-test"))
	ScanFailures.WithLabelValues("plc-metrics-test").Inc()
	after := testutil.ToFloat64(ScanFailures.WithLabelValues("plc-metrics-test"))

	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, before=%v after=%v", before, after)
	}
}
