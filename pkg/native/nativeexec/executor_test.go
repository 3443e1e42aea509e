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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/emberdb/ember/pkg/native/execstats"
	"github.com/emberdb/ember/pkg/native/nativepb"
	"github.com/emberdb/ember/pkg/shuffle"
	"github.com/emberdb/ember/pkg/testutils/leaktest"
)

func testScan(numPartitions int) *IpcScanExec {
	segments := make([][]string, numPartitions)
	for i := range segments {
		segments[i] = []string{"seg"}
	}
	return NewIpcScanExec("scan", testSchema, nativepb.IpcReadMode_CHANNEL, segments)
}

func TestIpcScanExec(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	ex := NewIpcScanExec("scan", testSchema, nativepb.IpcReadMode_CHANNEL, [][]string{
		{"p0-seg0", "p0-seg1"},
		{"p1-seg0"},
	})
	require.Equal(t, []Partition{{Index: 0}, {Index: 1}}, ex.Partitions())
	require.False(t, ex.FullShuffleRead())

	plan, stats, err := ex.Materialize(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"p0-seg0", "p0-seg1"}, plan.IpcReader.Segments)
	require.Equal(t, "scan", stats.Name())
	require.Empty(t, stats.Children())

	plan, _, err = ex.Materialize(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"p1-seg0"}, plan.IpcReader.Segments)

	_, _, err = ex.Materialize(ctx, nil, 2)
	require.Error(t, err)
	_, _, err = ex.Materialize(ctx, nil, -1)
	require.Error(t, err)
}

func TestIpcScanFullShuffleRead(t *testing.T) {
	defer leaktest.AfterTest(t)()

	ex := NewIpcScanExec("scan", testSchema,
		nativepb.IpcReadMode_CHANNEL_AND_FILE_SEGMENT, [][]string{{"seg"}})
	require.True(t, ex.FullShuffleRead())
}

func TestRenameExec(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	scan := testScan(3)
	ex, err := NewRenameExec(scan, []string{"x", "y"})
	require.NoError(t, err)

	// Pass-through: partitions and shuffle-read flag mirror the upstream.
	require.Equal(t, scan.Partitions(), ex.Partitions())
	require.Equal(t, scan.FullShuffleRead(), ex.FullShuffleRead())
	require.Equal(t, []nativepb.Attribute{
		{Name: "x", Type: nativepb.ColumnType_INT64},
		{Name: "y", Type: nativepb.ColumnType_STRING, Nullable: true},
	}, ex.Schema())

	plan, stats, err := ex.Materialize(ctx, nil, 1)
	require.NoError(t, err)
	require.Equal(t, "renameColumns", plan.Tag())
	require.Equal(t, []string{"x", "y"}, plan.RenameColumns.NewColumnNames)
	require.Equal(t, "ipcReader", plan.RenameColumns.Input.Tag())

	// The metrics tree mirrors the plan tree.
	require.Equal(t, "rename", stats.Name())
	require.Len(t, stats.Children(), 1)
	require.Equal(t, "scan", stats.Children()[0].Name())
}

func TestRenameExecArityMismatch(t *testing.T) {
	defer leaktest.AfterTest(t)()

	_, err := NewRenameExec(testScan(1), []string{"too", "many", "names"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrArityMismatch))
}

func TestMaterializeReturnsFreshStats(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	ex, err := NewRenameExec(testScan(1), []string{"x", "y"})
	require.NoError(t, err)

	planA, statsA, err := ex.Materialize(ctx, nil, 0)
	require.NoError(t, err)
	statsA.Counter("output_rows").Add(10)

	// A retried attempt re-materializes and must start from zero.
	planB, statsB, err := ex.Materialize(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, planA, planB)
	require.NotSame(t, statsA, statsB)
	require.Equal(t, int64(0), statsB.Counter("output_rows").Count())
}

func TestShuffleWriterExecMaterialize(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	rename, err := NewRenameExec(testScan(2), []string{"x", "y"})
	require.NoError(t, err)
	ex, err := NewShuffleWriterExec(rename, 42, nativepb.HashPartitioning{
		NumPartitions: 4, KeyColumns: []int32{0},
	}, shuffle.WriterOpts{})
	require.NoError(t, err)

	require.Equal(t, int64(42), ex.ShuffleID())
	require.Equal(t, rename.Schema(), ex.Schema())
	require.Len(t, ex.Partitions(), 2)

	plan, stats, err := ex.Materialize(ctx, nil, 0)
	require.NoError(t, err)
	require.Equal(t, "shuffleWrite", plan.Tag())
	require.Equal(t, "renameColumns", plan.ShuffleWrite.Input.Tag())
	require.NoError(t, plan.Validate())

	require.Equal(t, "shuffle_write", stats.Name())
	require.Equal(t, "rename", stats.Children()[0].Name())
	require.Equal(t, "scan", stats.Children()[0].Children()[0].Name())
}

func TestShuffleWriterExecValidatesPartitioning(t *testing.T) {
	defer leaktest.AfterTest(t)()

	_, err := NewShuffleWriterExec(testScan(1), 1, nativepb.HashPartitioning{
		NumPartitions: 2, KeyColumns: []int32{5},
	}, shuffle.WriterOpts{})
	require.True(t, errors.Is(err, ErrArityMismatch))

	_, err = NewShuffleWriterExec(testScan(1), 1, nativepb.HashPartitioning{
		NumPartitions: -1,
	}, shuffle.WriterOpts{})
	require.Error(t, err)
}

func TestMaterializePropagatesUpstreamError(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	boom := errors.New("upstream boom")
	ex, err := NewRenameExec(&failingExec{err: boom}, []string{"x", "y"})
	require.NoError(t, err)

	_, _, got := ex.Materialize(ctx, nil, 0)
	// Upstream failures surface unchanged.
	require.True(t, errors.Is(got, boom))
}

// failingExec declares one partition and fails every materialization.
type failingExec struct {
	err error
}

var _ Executor = (*failingExec)(nil)

func (e *failingExec) Name() string                 { return "failing" }
func (e *failingExec) Schema() []nativepb.Attribute { return testSchema }
func (e *failingExec) Partitions() []Partition      { return []Partition{{Index: 0}} }
func (e *failingExec) FullShuffleRead() bool        { return false }
func (e *failingExec) Materialize(
	ctx context.Context, execCtx *ExecContext, partition int,
) (*nativepb.PlanNode, *execstats.Node, error) {
	return nil, nil, e.err
}
