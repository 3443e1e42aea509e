// Copyright 2025 The Ember Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package metric holds the process-level metrics of the engine. Metrics
// are registered once at component construction and exported through a
// prometheus registry; per-task execution statistics live elsewhere (see
// the execstats package) because they are attempt-scoped values, not
// process counters.
package metric

import (
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metadata holds the static information of a metric.
type Metadata struct {
	Name        string
	Help        string
	Measurement string
	Unit        string
}

// Counter is a monotonic counter that can be read back directly and is
// collectable by a prometheus registry.
type Counter struct {
	Metadata
	desc  *prometheus.Desc
	count atomic.Int64
}

var _ prometheus.Collector = (*Counter)(nil)

// NewCounter creates a counter. Metric names use dots as separators;
// the exported prometheus name replaces them with underscores.
func NewCounter(md Metadata) *Counter {
	return &Counter{
		Metadata: md,
		desc:     prometheus.NewDesc(exportedName(md.Name), md.Help, nil, nil),
	}
}

func exportedName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// Inc increments the counter by n.
func (c *Counter) Inc(n int64) {
	c.count.Add(n)
}

// Count returns the current value.
func (c *Counter) Count() int64 {
	return c.count.Load()
}

// Describe implements prometheus.Collector.
func (c *Counter) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Counter) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(c.Count()))
}
