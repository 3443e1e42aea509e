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

package nativepb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberdb/ember/pkg/testutils/leaktest"
)

func scanNode() *PlanNode {
	return &PlanNode{
		IpcReader: &IpcReaderNode{
			Segments: []string{"shuffle_1_0.data:0:10"},
			Mode:     IpcReadMode_CHANNEL_AND_FILE_SEGMENT,
			Schema: []Attribute{
				{Name: "a", Type: ColumnType_INT64},
				{Name: "b", Type: ColumnType_STRING, Nullable: true},
			},
		},
	}
}

func TestPlanNodeValidate(t *testing.T) {
	defer leaktest.AfterTest(t)()

	require.NoError(t, scanNode().Validate())

	// No variant set.
	require.Error(t, (&PlanNode{}).Validate())

	// Two variants set.
	double := scanNode()
	double.RenameColumns = &RenameColumnsNode{Input: scanNode(), NewColumnNames: []string{"x", "y"}}
	require.Error(t, double.Validate())

	// Nil child.
	require.Error(t, (&PlanNode{
		RenameColumns: &RenameColumnsNode{NewColumnNames: []string{"x"}},
	}).Validate())

	// Invalid grandchild.
	require.Error(t, (&PlanNode{
		ShuffleWrite: &ShuffleWriteNode{
			Input:        &PlanNode{},
			Partitioning: HashPartitioning{NumPartitions: 2},
		},
	}).Validate())
}

func TestPlanNodeTagAndChildren(t *testing.T) {
	defer leaktest.AfterTest(t)()

	leaf := scanNode()
	require.Equal(t, "ipcReader", leaf.Tag())
	require.Empty(t, leaf.Children())

	rename := &PlanNode{RenameColumns: &RenameColumnsNode{Input: leaf, NewColumnNames: []string{"x", "y"}}}
	require.Equal(t, "renameColumns", rename.Tag())
	require.Equal(t, []*PlanNode{leaf}, rename.Children())

	write := &PlanNode{ShuffleWrite: &ShuffleWriteNode{Input: rename, Partitioning: HashPartitioning{NumPartitions: 4}}}
	require.Equal(t, "shuffleWrite", write.Tag())
	require.Equal(t, []*PlanNode{rename}, write.Children())
}

func TestRenameWireFormat(t *testing.T) {
	defer leaktest.AfterTest(t)()

	node := &PlanNode{RenameColumns: &RenameColumnsNode{
		Input:          scanNode(),
		NewColumnNames: []string{"x", "y"},
	}}
	b, err := node.Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"renameColumns": {
			"input": {
				"ipcReader": {
					"segments": ["shuffle_1_0.data:0:10"],
					"mode": 2,
					"schema": [
						{"name": "a", "type": 1, "nullable": false},
						{"name": "b", "type": 3, "nullable": true}
					]
				}
			},
			"renamedColumnNames": ["x", "y"]
		}
	}`, string(b))
}

func TestMarshalDeterminism(t *testing.T) {
	defer leaktest.AfterTest(t)()

	build := func() *PlanNode {
		return &PlanNode{ShuffleWrite: &ShuffleWriteNode{
			Input: &PlanNode{RenameColumns: &RenameColumnsNode{
				Input:          scanNode(),
				NewColumnNames: []string{"x", "y"},
			}},
			Partitioning: HashPartitioning{NumPartitions: 8, KeyColumns: []int32{0}},
		}}
	}
	first, err := build().Marshal()
	require.NoError(t, err)
	second, err := build().Marshal()
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, build(), build())
}

func TestMarshalRoundTrip(t *testing.T) {
	defer leaktest.AfterTest(t)()

	node := &PlanNode{ShuffleWrite: &ShuffleWriteNode{
		Input:        scanNode(),
		Partitioning: HashPartitioning{NumPartitions: 3, KeyColumns: []int32{1}},
	}}
	b, err := node.Marshal()
	require.NoError(t, err)
	got, err := Unmarshal(b)
	require.NoError(t, err)
	require.Equal(t, node, got)

	// Unmarshal rejects trees violating the one-variant invariant.
	_, err = Unmarshal([]byte(`{}`))
	require.Error(t, err)
}

func TestRenameAttributes(t *testing.T) {
	defer leaktest.AfterTest(t)()

	in := []Attribute{
		{Name: "a", Type: ColumnType_INT64},
		{Name: "b", Type: ColumnType_STRING, Nullable: true},
	}
	out := RenameAttributes(in, []string{"x", "y"})
	require.Equal(t, []Attribute{
		{Name: "x", Type: ColumnType_INT64},
		{Name: "y", Type: ColumnType_STRING, Nullable: true},
	}, out)
	// The input is untouched.
	require.Equal(t, "a", in[0].Name)
}
