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

// Package execstats holds per-attempt execution statistics for natively
// executed plans. A Node tree is built alongside the plan tree it
// describes (one node per operator, children in dependency order),
// populated while the runtime executes the attempt, and reported upward
// with task completion. A retried attempt gets a brand new tree; values
// never straddle two attempts of the same partition.
package execstats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

// Common counter names. Operators may also register ad-hoc counters.
const (
	OutputRows   = "output_rows"
	OutputBytes  = "output_bytes"
	IOBytes      = "io_bytes"
	SpilledBytes = "spilled_bytes"
)

// Counter is a named additive counter. It is safe for concurrent use;
// the runtime may populate several counters of an attempt in parallel.
type Counter struct {
	name string
	v    atomic.Int64
}

// Name returns the counter's name.
func (c *Counter) Name() string { return c.name }

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) { c.v.Add(delta) }

// Count returns the current value.
func (c *Counter) Count() int64 { return c.v.Load() }

// Node is one node of a per-attempt metrics tree, isomorphic to the plan
// tree it was built for.
type Node struct {
	name     string
	children []*Node

	mu       sync.Mutex
	counters map[string]*Counter
}

// NewNode builds a metrics node for the named operator with the given
// already-built child nodes, in dependency order. This is the metrics
// analogue of wrapping a translated child plan: the caller passes the
// nodes returned by each upstream dependency's materialization.
func NewNode(name string, children ...*Node) *Node {
	return &Node{
		name:     name,
		children: children,
		counters: make(map[string]*Counter),
	}
}

// Name returns the operator name this node describes.
func (n *Node) Name() string { return n.name }

// Children returns the child nodes in dependency order.
func (n *Node) Children() []*Node { return n.children }

// Counter returns the counter with the given name, creating it at zero
// if it does not exist yet.
func (n *Node) Counter(name string) *Counter {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.counters[name]
	if !ok {
		c = &Counter{name: name}
		n.counters[name] = c
	}
	return c
}

// Counters returns the node's counters sorted by name.
func (n *Node) Counters() []*Counter {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Counter, 0, len(n.counters))
	for _, c := range n.counters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Visit walks the tree depth-first, parents before children.
func (n *Node) Visit(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Visit(fn)
	}
}

// String renders the tree for diagnostics, one operator per line with
// its counters; byte-valued counters are humanized.
func (n *Node) String() string {
	var buf strings.Builder
	n.format(&buf, 0)
	return buf.String()
}

func (n *Node) format(buf *strings.Builder, indent int) {
	buf.WriteString(strings.Repeat("  ", indent))
	buf.WriteString(n.name)
	for i, c := range n.Counters() {
		if i == 0 {
			buf.WriteString(": ")
		} else {
			buf.WriteString(", ")
		}
		if strings.HasSuffix(c.name, "_bytes") {
			fmt.Fprintf(buf, "%s=%s", c.name, humanize.IBytes(uint64(c.Count())))
		} else {
			fmt.Fprintf(buf, "%s=%d", c.name, c.Count())
		}
	}
	buf.WriteByte('\n')
	for _, c := range n.children {
		c.format(buf, indent+1)
	}
}
