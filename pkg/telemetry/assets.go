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

	otelmetric "go.opentelemetry.io/otel/metric"
)

// AssetMetrics instruments the offline asset cache
type AssetMetrics struct {
	FetchTotal    *Counter
	InstallTotal  *Counter
	ActivateTotal *Counter
}

func NewAssetMetrics(meter otelmetric.Meter) (*AssetMetrics, error) {
	fetchTotal, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("asset_fetch", MetricNameSuffixTotal),
		Description: "asset fetches by outcome: hit, network, fallback, bypass, unserviceable",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	installTotal, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("asset_install", MetricNameSuffixTotal),
		Description: "generation installs by status",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	activateTotal, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("asset_activate", MetricNameSuffixTotal),
		Description: "generation activations by status",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}

	return &AssetMetrics{
		FetchTotal:    fetchTotal,
		InstallTotal:  installTotal,
		ActivateTotal: activateTotal,
	}, nil
}

func (am *AssetMetrics) RecordFetch(ctx context.Context, outcome string) {
	if am == nil {
		return
	}
	am.FetchTotal.Inc(ctx, WithOutcome(outcome))
}

func (am *AssetMetrics) RecordInstall(ctx context.Context, generation string, err error) {
	if am == nil {
		return
	}
	am.InstallTotal.Inc(ctx, WithGeneration(generation), StatusOf(err))
}

func (am *AssetMetrics) RecordActivate(ctx context.Context, generation string, err error) {
	if am == nil {
		return
	}
	am.ActivateTotal.Inc(ctx, WithGeneration(generation), StatusOf(err))
}
