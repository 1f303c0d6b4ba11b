/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"context"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// SyncMetrics instruments mesh reconciliation runs
// A nil *SyncMetrics records nothing.
type SyncMetrics struct {
	CountTotal  *Counter
	ErrorTotal  *Counter
	MergedTotal *Counter
	Duration    *Histogram
	InFlight    *UpDownCounter
}

func NewSyncMetrics(meter otelmetric.Meter) (*SyncMetrics, error) {
	countTotal, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("sync_count", MetricNameSuffixTotal),
		Description: "total number of sync attempts, by trigger",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	errorTotal, err := NewCounter(meter, MetricOptions{
		Name: BuildMetricName("sync_error", MetricNameSuffixTotal),
		Description: "total number of failed syncs. " +
			"success% = 1 - hearthline_sync_error_total / hearthline_sync_count_total",
		Unit: "1",
	})
	if err != nil {
		return nil, err
	}

	mergedTotal, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("sync_merged_records", MetricNameSuffixTotal),
		Description: "records merged into the local store by sync, by collection",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, MetricOptions{
		Name:        BuildMetricName("sync", MetricNameSuffixDuration),
		Description: "wall time of a sync run",
		Unit:        "s",
	})
	if err != nil {
		return nil, err
	}

	inFlight, err := NewUpDownCounter(meter, MetricOptions{
		Name:        BuildMetricName("sync_in_flight", ""),
		Description: "syncs currently running",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		CountTotal:  countTotal,
		ErrorTotal:  errorTotal,
		MergedTotal: mergedTotal,
		Duration:    duration,
		InFlight:    inFlight,
	}, nil
}

// RecordSyncStart marks a run as started and returns the func that completes it
func (sm *SyncMetrics) RecordSyncStart(ctx context.Context, trigger string) func(err error) {
	if sm == nil {
		return func(error) {}
	}
	start := time.Now()
	sm.CountTotal.Inc(ctx, WithTrigger(trigger))
	sm.InFlight.Inc(ctx)

	return func(err error) {
		sm.InFlight.Dec(ctx)
		sm.Duration.RecordSince(ctx, start, StatusOf(err))
		if err != nil {
			sm.ErrorTotal.Inc(ctx, WithTrigger(trigger))
		}
	}
}

func (sm *SyncMetrics) RecordMerged(ctx context.Context, alerts, messages int) {
	if sm == nil {
		return
	}
	sm.MergedTotal.Add(ctx, int64(alerts), WithCollection("alerts"))
	sm.MergedTotal.Add(ctx, int64(messages), WithCollection("messages"))
}
