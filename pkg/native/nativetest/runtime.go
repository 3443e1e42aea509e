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

// Package nativetest provides an in-process stand-in for the native
// runtime. It does not execute plans; tests program it with the bytes
// each partition should produce.
package nativetest

import (
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/emberdb/ember/pkg/native/execstats"
	"github.com/emberdb/ember/pkg/native/nativeexec"
	"github.com/emberdb/ember/pkg/native/nativepb"
	"github.com/emberdb/ember/pkg/shuffle"
)

// StubRuntime implements nativeexec.Runtime for tests.
type StubRuntime struct {
	// PartitionPayload returns the bytes one (map partition, reduce
	// partition) pair produces. Nil or empty means no bytes.
	PartitionPayload func(partition, reduce int) []byte
	// PartitionStream returns the IPC stream ExecutePartition serves.
	PartitionStream func(partition int) []byte
	// BeforeWrite, when set, runs before a shuffle write starts. Tests
	// use it to inject failures or to block until cancellation.
	BeforeWrite func(ctx context.Context, partition int) error
}

var _ nativeexec.Runtime = (*StubRuntime)(nil)

// ExecutePartition implements nativeexec.Runtime.
func (r *StubRuntime) ExecutePartition(
	ctx context.Context, plan *nativepb.PlanNode, partition int, stats *execstats.Node,
) (io.ReadCloser, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	var payload []byte
	if r.PartitionStream != nil {
		payload = r.PartitionStream(partition)
	}
	stats.Counter(execstats.OutputBytes).Add(int64(len(payload)))
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// ExecuteShuffleWrite implements nativeexec.Runtime.
func (r *StubRuntime) ExecuteShuffleWrite(
	ctx context.Context,
	plan *nativepb.PlanNode,
	partition int,
	stats *execstats.Node,
	w *shuffle.PartitionedWriter,
) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	if plan.ShuffleWrite == nil {
		return errors.AssertionFailedf("shuffle write requires a shuffleWrite root, got %s", plan.Tag())
	}
	if r.BeforeWrite != nil {
		if err := r.BeforeWrite(ctx, partition); err != nil {
			return err
		}
	}
	for reduce := 0; reduce < plan.ShuffleWrite.Partitioning.NumPartitions; reduce++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var payload []byte
		if r.PartitionPayload != nil {
			payload = r.PartitionPayload(partition, reduce)
		}
		if len(payload) == 0 {
			continue
		}
		if err := w.Append(reduce, payload); err != nil {
			return err
		}
		stats.Counter(execstats.IOBytes).Add(int64(len(payload)))
	}
	return nil
}
