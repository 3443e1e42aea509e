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

// Package nativepb defines the wire representation of execution plans
// handed to the native runtime. A plan is an immutable tree of tagged
// variant nodes; each node is built once per scheduled partition task,
// serialized, consumed by the runtime, and discarded.
package nativepb

import (
	"github.com/cockroachdb/errors"
	json "github.com/goccy/go-json"
)

// PlanNode is one operator of a native plan. Exactly one of the variant
// fields is set; which one acts as the node's type tag on the wire.
// Nodes are value trees: arity and fields are fixed at construction and
// must not be mutated afterwards.
type PlanNode struct {
	IpcReader     *IpcReaderNode     `json:"ipcReader,omitempty"`
	RenameColumns *RenameColumnsNode `json:"renameColumns,omitempty"`
	ShuffleWrite  *ShuffleWriteNode  `json:"shuffleWrite,omitempty"`
}

// IpcReadMode selects how the runtime locates and decodes the IPC
// segments of a reader node.
type IpcReadMode int32

const (
	// IpcReadMode_CHANNEL_UNCOMPRESSED reads raw batches from a local
	// channel (used when converting host data to native).
	IpcReadMode_CHANNEL_UNCOMPRESSED IpcReadMode = iota
	// IpcReadMode_CHANNEL reads compressed batches from a local channel
	// (broadcast reads).
	IpcReadMode_CHANNEL
	// IpcReadMode_CHANNEL_AND_FILE_SEGMENT additionally reads committed
	// shuffle file segments; readers in this mode address the full
	// shuffle output of the upstream stage.
	IpcReadMode_CHANNEL_AND_FILE_SEGMENT
)

// IpcReaderNode is a leaf producing batches from an ordered list of IPC
// segments.
type IpcReaderNode struct {
	Segments []string    `json:"segments"`
	Mode     IpcReadMode `json:"mode"`
	Schema   []Attribute `json:"schema"`
}

// RenameColumnsNode renames the columns of its input, in order, leaving
// partitioning and ordering untouched.
type RenameColumnsNode struct {
	Input          *PlanNode `json:"input"`
	NewColumnNames []string  `json:"renamedColumnNames"`
}

// HashPartitioning describes how a shuffle write splits rows across
// downstream partitions.
type HashPartitioning struct {
	NumPartitions int     `json:"numPartitions"`
	KeyColumns    []int32 `json:"keyColumns"`
}

// ShuffleWriteNode writes its input split by destination partition.
type ShuffleWriteNode struct {
	Input        *PlanNode        `json:"input"`
	Partitioning HashPartitioning `json:"partitioning"`
}

// Tag returns the node's operator tag.
func (n *PlanNode) Tag() string {
	switch {
	case n.IpcReader != nil:
		return "ipcReader"
	case n.RenameColumns != nil:
		return "renameColumns"
	case n.ShuffleWrite != nil:
		return "shuffleWrite"
	}
	return "none"
}

// Children returns the node's inputs in order.
func (n *PlanNode) Children() []*PlanNode {
	switch {
	case n.RenameColumns != nil:
		return []*PlanNode{n.RenameColumns.Input}
	case n.ShuffleWrite != nil:
		return []*PlanNode{n.ShuffleWrite.Input}
	}
	return nil
}

// Validate checks that exactly one variant is set on every node of the
// tree and that every child reference is non-nil.
func (n *PlanNode) Validate() error {
	if n == nil {
		return errors.AssertionFailedf("nil plan node")
	}
	set := 0
	if n.IpcReader != nil {
		set++
	}
	if n.RenameColumns != nil {
		set++
	}
	if n.ShuffleWrite != nil {
		set++
	}
	if set != 1 {
		return errors.AssertionFailedf("plan node must have exactly one variant set, found %d", set)
	}
	for _, c := range n.Children() {
		if c == nil {
			return errors.AssertionFailedf("%s node has nil input", n.Tag())
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Marshal serializes the plan tree. Serialization is deterministic:
// structurally identical trees produce identical bytes.
func (n *PlanNode) Marshal() ([]byte, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling plan node")
	}
	return b, nil
}

// Unmarshal deserializes a plan tree previously produced by Marshal.
func Unmarshal(b []byte) (*PlanNode, error) {
	n := &PlanNode{}
	if err := json.Unmarshal(b, n); err != nil {
		return nil, errors.Wrap(err, "unmarshaling plan node")
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
