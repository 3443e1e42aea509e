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

package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is a list of metrics. It is safe for concurrent registration
// and is itself a prometheus.Collector, so it can be added to any scrape
// pipeline wholesale.
type Registry struct {
	mu      sync.Mutex
	metrics []*Counter
}

var _ prometheus.Collector = (*Registry)(nil)

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddMetric adds the passed-in metric to the registry.
func (r *Registry) AddMetric(c *Counter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, c)
}

// Each calls the given closure for all metrics.
func (r *Registry) Each(fn func(name string, c *Counter)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.metrics {
		fn(c.Name, c)
	}
}

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.metrics {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.metrics {
		c.Collect(ch)
	}
}
