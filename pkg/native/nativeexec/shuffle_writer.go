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

package nativeexec

import (
	"context"

	"github.com/emberdb/ember/pkg/native/execstats"
	"github.com/emberdb/ember/pkg/native/nativepb"
	"github.com/emberdb/ember/pkg/shuffle"
	"github.com/emberdb/ember/pkg/util/log"
)

// ShuffleWriterExec terminates a map stage: each of its partitions runs
// the wrapped child plan natively, splits the output by destination
// partition into a temp file, and commits it through the shuffle
// write-commit protocol. One map task per upstream partition; the map
// ID is the partition index.
type ShuffleWriterExec struct {
	dep          OneToOneDependency
	shuffleID    int64
	partitioning nativepb.HashPartitioning
	writerOpts   shuffle.WriterOpts
}

var _ Executor = (*ShuffleWriterExec)(nil)

// NewShuffleWriterExec wraps upstream with a shuffle write. The
// partitioning's key columns are validated against the upstream schema.
func NewShuffleWriterExec(
	upstream Executor,
	shuffleID int64,
	partitioning nativepb.HashPartitioning,
	writerOpts shuffle.WriterOpts,
) (*ShuffleWriterExec, error) {
	if _, err := TranslateShuffleWrite(&nativepb.PlanNode{}, upstream.Schema(), partitioning); err != nil {
		return nil, err
	}
	return &ShuffleWriterExec{
		dep:          OneToOneDependency{Upstream: upstream},
		shuffleID:    shuffleID,
		partitioning: partitioning,
		writerOpts:   writerOpts,
	}, nil
}

// Name implements Executor.
func (e *ShuffleWriterExec) Name() string { return "shuffle_write" }

// ShuffleID returns the shuffle this writer produces.
func (e *ShuffleWriterExec) ShuffleID() int64 { return e.shuffleID }

// Schema implements Executor.
func (e *ShuffleWriterExec) Schema() []nativepb.Attribute { return e.dep.Upstream.Schema() }

// Partitions implements Executor.
func (e *ShuffleWriterExec) Partitions() []Partition { return e.dep.Upstream.Partitions() }

// FullShuffleRead implements Executor.
func (e *ShuffleWriterExec) FullShuffleRead() bool { return e.dep.Upstream.FullShuffleRead() }

// Materialize implements Executor.
func (e *ShuffleWriterExec) Materialize(
	ctx context.Context, execCtx *ExecContext, partition int,
) (*nativepb.PlanNode, *execstats.Node, error) {
	if err := checkPartition(e, partition); err != nil {
		return nil, nil, err
	}
	child, childStats, err := e.dep.Upstream.Materialize(
		ctx, execCtx, e.dep.UpstreamPartition(partition))
	if err != nil {
		return nil, nil, err
	}
	plan, err := TranslateShuffleWrite(child, e.dep.Upstream.Schema(), e.partitioning)
	if err != nil {
		return nil, nil, err
	}
	return plan, execstats.NewNode(e.Name(), childStats), nil
}

// RunPartition executes one map task attempt end to end: materialize,
// native execution into a temp file, commit, MapStatus. A cancelled
// attempt never commits; its temp file is discarded and a fresh attempt
// starts from a fresh temp file.
func (e *ShuffleWriterExec) RunPartition(
	ctx context.Context, execCtx *ExecContext, partition int,
) (shuffle.MapStatus, *execstats.Node, error) {
	ctx = execCtx.annotateCtx(ctx, partition)
	mapID := int64(partition)

	plan, stats, err := e.Materialize(ctx, execCtx, partition)
	if err != nil {
		return shuffle.MapStatus{}, nil, err
	}

	w, err := execCtx.Resolver.NewTempWriter(
		e.shuffleID, mapID, e.partitioning.NumPartitions, e.writerOpts)
	if err != nil {
		return shuffle.MapStatus{}, nil, err
	}

	if err := execCtx.Runtime.ExecuteShuffleWrite(ctx, plan, partition, stats, w); err != nil {
		w.Abort()
		return shuffle.MapStatus{}, nil, err
	}
	res, err := w.Finish()
	if err != nil {
		w.Abort()
		return shuffle.MapStatus{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		// The attempt was cancelled while the runtime was writing. Do not
		// publish; remove the temp file instead.
		w.Abort()
		return shuffle.MapStatus{}, nil, err
	}

	stats.Counter(execstats.OutputBytes).Add(res.DataSize)
	status, err := execCtx.Resolver.Commit(ctx, shuffle.CommitArgs{
		ShuffleID: e.shuffleID,
		MapID:     mapID,
		TempData:  res.Path,
		Lengths:   res.Lengths,
		DataSize:  res.DataSize,
		Checksums: res.Checksums,
	})
	if err != nil {
		return shuffle.MapStatus{}, nil, err
	}
	log.VInfof(ctx, 1, "map task %d wrote %d bytes across %d partitions",
		mapID, res.DataSize, e.partitioning.NumPartitions)
	return status, stats, nil
}
