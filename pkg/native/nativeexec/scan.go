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
)

// IpcScanExec is the leaf executor: each partition reads an ordered list
// of IPC segments. Segments come either from local channels (converted
// host data, broadcast reads) or from committed shuffle files, selected
// by the read mode.
type IpcScanExec struct {
	name     string
	schema   []nativepb.Attribute
	mode     nativepb.IpcReadMode
	segments [][]string
}

var _ Executor = (*IpcScanExec)(nil)

// NewIpcScanExec builds a scan over segmentsByPartition; partition i
// reads segmentsByPartition[i] in order.
func NewIpcScanExec(
	name string,
	schema []nativepb.Attribute,
	mode nativepb.IpcReadMode,
	segmentsByPartition [][]string,
) *IpcScanExec {
	return &IpcScanExec{
		name:     name,
		schema:   schema,
		mode:     mode,
		segments: segmentsByPartition,
	}
}

// Name implements Executor.
func (e *IpcScanExec) Name() string { return e.name }

// Schema implements Executor.
func (e *IpcScanExec) Schema() []nativepb.Attribute { return e.schema }

// Partitions implements Executor.
func (e *IpcScanExec) Partitions() []Partition {
	parts := make([]Partition, len(e.segments))
	for i := range parts {
		parts[i] = Partition{Index: i}
	}
	return parts
}

// FullShuffleRead implements Executor. Scans reading committed shuffle
// file segments address the full shuffle output of the upstream stage.
func (e *IpcScanExec) FullShuffleRead() bool {
	return e.mode == nativepb.IpcReadMode_CHANNEL_AND_FILE_SEGMENT
}

// Materialize implements Executor.
func (e *IpcScanExec) Materialize(
	ctx context.Context, execCtx *ExecContext, partition int,
) (*nativepb.PlanNode, *execstats.Node, error) {
	if err := checkPartition(e, partition); err != nil {
		return nil, nil, err
	}
	plan := TranslateIpcScan(e.segments[partition], e.mode, e.schema)
	return plan, execstats.NewNode(e.name), nil
}
