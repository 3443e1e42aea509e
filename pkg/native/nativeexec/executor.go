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

// Package nativeexec bridges the engine's physical operators to the
// native runtime. Each operator is a lazy partitioned executor: an
// ordered set of partition descriptors plus, per partition, a deferred
// materialization that builds the wire plan for exactly that partition
// when the scheduler runs it. Nothing is materialized eagerly, no state
// is shared between partitions, and re-materializing a partition (for a
// retried attempt) starts from scratch.
package nativeexec

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/emberdb/ember/pkg/native/execstats"
	"github.com/emberdb/ember/pkg/native/nativepb"
	"github.com/emberdb/ember/pkg/shuffle"
)

// Partition identifies one partition of an executor's output by its
// index. Indices are stable and dense (0..N-1) for a given executor.
type Partition struct {
	Index int
}

// Executor is an operator whose output is produced by the native
// runtime, one partition at a time.
type Executor interface {
	// Name is a human-readable operator name for diagnostics.
	Name() string
	// Schema describes the operator's output columns.
	Schema() []nativepb.Attribute
	// Partitions returns the ordered partition descriptors.
	Partitions() []Partition
	// FullShuffleRead reports whether executing this operator's
	// partitions reads the full shuffle output of an upstream stage.
	// Pass-through operators forward their upstream's flag unchanged.
	FullShuffleRead() bool
	// Materialize builds the wire plan and the metrics node for one
	// partition. It may be called only with an index within the declared
	// partition range. Each call is independent and idempotent: the
	// returned metrics node is fresh, so a retried attempt never
	// accumulates on top of a prior attempt's values. On error no
	// partially built plan is returned.
	Materialize(ctx context.Context, execCtx *ExecContext, partition int) (*nativepb.PlanNode, *execstats.Node, error)
}

// OneToOneDependency is the dependency edge of a pass-through operator:
// downstream partition i reads exactly upstream partition i.
type OneToOneDependency struct {
	Upstream Executor
}

// UpstreamPartition maps a downstream partition index to its single
// upstream partition index.
func (d OneToOneDependency) UpstreamPartition(partition int) int { return partition }

// checkPartition validates a partition index against an executor's
// declared range.
func checkPartition(ex Executor, partition int) error {
	if n := len(ex.Partitions()); partition < 0 || partition >= n {
		return errors.AssertionFailedf(
			"partition %d out of range [0, %d) for %s", partition, n, ex.Name())
	}
	return nil
}

// Runtime is the narrow contract with the native runtime. It consumes
// serialized plans; its internal execution semantics are opaque to this
// package.
type Runtime interface {
	// ExecutePartition runs the plan for one partition and returns the
	// partition's output as an IPC byte stream. Counters on stats are
	// populated during execution.
	ExecutePartition(
		ctx context.Context,
		plan *nativepb.PlanNode,
		partition int,
		stats *execstats.Node,
	) (io.ReadCloser, error)

	// ExecuteShuffleWrite runs a shuffle-write plan for one map
	// partition, streaming the partitioned output through w in reduce
	// partition order. The caller owns committing w's result.
	ExecuteShuffleWrite(
		ctx context.Context,
		plan *nativepb.PlanNode,
		partition int,
		stats *execstats.Node,
		w *shuffle.PartitionedWriter,
	) error
}
