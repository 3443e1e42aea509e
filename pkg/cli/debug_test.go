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

package cli

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/emberdb/ember/pkg/testutils/leaktest"
)

func writeIndexFile(t *testing.T, offsets []uint64) string {
	t.Helper()
	buf := make([]byte, 8*len(offsets))
	for i, o := range offsets {
		binary.BigEndian.PutUint64(buf[8*i:], o)
	}
	path := filepath.Join(t.TempDir(), "shuffle_1_0.index")
	require.NoError(t, os.WriteFile(path, buf, 0644))
	return path
}

func TestDebugShuffleIndex(t *testing.T) {
	defer leaktest.AfterTest(t)()

	path := writeIndexFile(t, []uint64{0, 10, 10, 30})
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runDebugShuffleIndex(cmd, []string{path}))

	got := out.String()
	require.Contains(t, got, "partition    0: [0, 10) 10 B")
	require.Contains(t, got, "partition    1: [10, 10) 0 B")
	require.Contains(t, got, "partition    2: [10, 30) 20 B")
	require.Contains(t, got, "total: 3 partitions, 30 B")
}

func TestDebugShuffleIndexMalformed(t *testing.T) {
	defer leaktest.AfterTest(t)()

	cmd := &cobra.Command{}

	// First offset must be zero.
	path := writeIndexFile(t, []uint64{5, 10})
	require.Error(t, runDebugShuffleIndex(cmd, []string{path}))

	// Offsets must not decrease.
	path = writeIndexFile(t, []uint64{0, 10, 5})
	require.Error(t, runDebugShuffleIndex(cmd, []string{path}))

	// Too short.
	path = writeIndexFile(t, []uint64{0})
	require.Error(t, runDebugShuffleIndex(cmd, []string{path}))
}
