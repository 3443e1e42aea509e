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
	"github.com/cockroachdb/errors"

	"github.com/emberdb/ember/pkg/native/nativepb"
)

// ErrArityMismatch marks translation failures where an operator's
// parameters do not line up with its child's schema. The failure is
// fatal to the current task attempt; this layer performs no retries.
var ErrArityMismatch = errors.New("arity mismatch")

// The Translate functions map one host operator, with its
// already-translated children, to a wire plan node. They are pure and
// reentrant: identical inputs produce structurally identical nodes, and
// the only effect is allocating the returned node. Child nodes are
// wrapped by reference and must not be mutated afterwards.

// TranslateIpcScan builds the leaf node reading the given IPC segments.
func TranslateIpcScan(
	segments []string, mode nativepb.IpcReadMode, schema []nativepb.Attribute,
) *nativepb.PlanNode {
	return &nativepb.PlanNode{
		IpcReader: &nativepb.IpcReaderNode{
			Segments: segments,
			Mode:     mode,
			Schema:   schema,
		},
	}
}

// TranslateRename wraps child with a column rename carrying newNames
// verbatim, in order. The child's partitioning and ordering are
// untouched; output attribute i keeps the type and nullability of
// childSchema[i]. Fails with ErrArityMismatch unless the child produces
// exactly len(newNames) attributes.
func TranslateRename(
	child *nativepb.PlanNode, childSchema []nativepb.Attribute, newNames []string,
) (*nativepb.PlanNode, []nativepb.Attribute, error) {
	if len(childSchema) != len(newNames) {
		return nil, nil, errors.Mark(errors.Newf(
			"renaming %d columns with %d names", len(childSchema), len(newNames)),
			ErrArityMismatch)
	}
	node := &nativepb.PlanNode{
		RenameColumns: &nativepb.RenameColumnsNode{
			Input:          child,
			NewColumnNames: newNames,
		},
	}
	return node, nativepb.RenameAttributes(childSchema, newNames), nil
}

// TranslateShuffleWrite wraps child with a shuffle write under the given
// partitioning. Every key column must exist in the child's schema.
func TranslateShuffleWrite(
	child *nativepb.PlanNode, childSchema []nativepb.Attribute, partitioning nativepb.HashPartitioning,
) (*nativepb.PlanNode, error) {
	if partitioning.NumPartitions <= 0 {
		return nil, errors.Newf("shuffle write needs a positive partition count, got %d",
			partitioning.NumPartitions)
	}
	for _, col := range partitioning.KeyColumns {
		if col < 0 || int(col) >= len(childSchema) {
			return nil, errors.Mark(errors.Newf(
				"partitioning key column %d out of range for %d input columns",
				col, len(childSchema)), ErrArityMismatch)
		}
	}
	return &nativepb.PlanNode{
		ShuffleWrite: &nativepb.ShuffleWriteNode{
			Input:        child,
			Partitioning: partitioning,
		},
	}, nil
}
