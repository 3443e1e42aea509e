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

// RenameExec renames its upstream's columns, in order. It is a
// pass-through operator: partitions, the dependency edge, and the
// full-shuffle-read flag all come from its single upstream unchanged.
type RenameExec struct {
	dep      OneToOneDependency
	newNames []string
}

var _ Executor = (*RenameExec)(nil)

// NewRenameExec wraps upstream with a rename to newNames. The name
// count must match the upstream's attribute count; a mismatch fails
// with ErrArityMismatch, the same condition translation itself
// enforces.
func NewRenameExec(upstream Executor, newNames []string) (*RenameExec, error) {
	// Translating against the upstream schema performs the arity check;
	// the node itself is discarded.
	if _, _, err := TranslateRename(&nativepb.PlanNode{}, upstream.Schema(), newNames); err != nil {
		return nil, err
	}
	return &RenameExec{dep: OneToOneDependency{Upstream: upstream}, newNames: newNames}, nil
}

// Name implements Executor.
func (e *RenameExec) Name() string { return "rename" }

// Schema implements Executor.
func (e *RenameExec) Schema() []nativepb.Attribute {
	return nativepb.RenameAttributes(e.dep.Upstream.Schema(), e.newNames)
}

// Partitions implements Executor.
func (e *RenameExec) Partitions() []Partition { return e.dep.Upstream.Partitions() }

// FullShuffleRead implements Executor.
func (e *RenameExec) FullShuffleRead() bool { return e.dep.Upstream.FullShuffleRead() }

// Materialize implements Executor. It fetches the upstream's wire plan
// for the same partition index, wraps it, and composes this operator's
// metrics node with the upstream's as its only child.
func (e *RenameExec) Materialize(
	ctx context.Context, execCtx *ExecContext, partition int,
) (*nativepb.PlanNode, *execstats.Node, error) {
	if err := checkPartition(e, partition); err != nil {
		return nil, nil, err
	}
	child, childStats, err := e.dep.Upstream.Materialize(
		ctx, execCtx, e.dep.UpstreamPartition(partition))
	if err != nil {
		// Upstream materialization failures propagate unchanged; this
		// layer adds no recovery of its own.
		return nil, nil, err
	}
	plan, _, err := TranslateRename(child, e.dep.Upstream.Schema(), e.newNames)
	if err != nil {
		return nil, nil, err
	}
	return plan, execstats.NewNode(e.Name(), childStats), nil
}
