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
	"go.opentelemetry.io/otel/attribute"
)

// naming conventions for metric names
const (
	MetricNameSuffixTotal    = "_total"
	MetricNameSuffixDuration = "_duration_seconds"
	MetricNameSuffixBytes    = "_bytes"
)

const (
	AttrOperation  = "hearthline_operation"
	AttrStatus     = "hearthline_status"
	AttrOutcome    = "hearthline_outcome"
	AttrCollection = "hearthline_collection"
	AttrGeneration = "hearthline_generation"
	AttrTrigger    = "hearthline_trigger"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func BuildMetricName(baseName, suffix string) string {
	return "hearthline_" + baseName + suffix
}

func WithOperation(operation string) attribute.KeyValue {
	return attribute.String(AttrOperation, operation)
}

func WithStatus(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// StatusOf maps an error to StatusSuccess or StatusError
func StatusOf(err error) attribute.KeyValue {
	if err != nil {
		return WithStatus(StatusError)
	}
	return WithStatus(StatusSuccess)
}

// creates attribute for an asset fetch outcome (hit, network, fallback, bypass, unserviceable)
func WithOutcome(outcome string) attribute.KeyValue {
	return attribute.String(AttrOutcome, outcome)
}

// creates attribute for the persisted collection key
func WithCollection(key string) attribute.KeyValue {
	return attribute.String(AttrCollection, key)
}

// creates attribute for the asset generation tag
func WithGeneration(tag string) attribute.KeyValue {
	return attribute.String(AttrGeneration, tag)
}

// creates attribute for what started a sync (api, background-sync)
func WithTrigger(trigger string) attribute.KeyValue {
	return attribute.String(AttrTrigger, trigger)
}
