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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter(Metadata{Name: "shuffle.commits", Help: "Committed map outputs"})
	require.Equal(t, int64(0), c.Count())
	c.Inc(1)
	c.Inc(5)
	require.Equal(t, int64(6), c.Count())
}

func TestCounterPrometheusExport(t *testing.T) {
	reg := NewRegistry()
	c := NewCounter(Metadata{Name: "shuffle.bytes.written", Help: "Bytes written"})
	reg.AddMetric(c)
	c.Inc(42)

	// The registry plugs into a prometheus scrape as a collector; dots in
	// metric names are exported as underscores.
	promReg := prometheus.NewRegistry()
	require.NoError(t, promReg.Register(reg))
	families, err := promReg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, "shuffle_bytes_written", families[0].GetName())
	require.Equal(t, dto.MetricType_COUNTER, families[0].GetType())
	require.Equal(t, float64(42), families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestRegistryEach(t *testing.T) {
	reg := NewRegistry()
	reg.AddMetric(NewCounter(Metadata{Name: "a.one"}))
	reg.AddMetric(NewCounter(Metadata{Name: "a.two"}))

	var names []string
	reg.Each(func(name string, c *Counter) { names = append(names, name) })
	require.Equal(t, []string{"a.one", "a.two"}, names)
}
