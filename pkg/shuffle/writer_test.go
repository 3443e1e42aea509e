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

package shuffle

import (
	"io"
	"os"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"github.com/emberdb/ember/pkg/testutils/leaktest"
)

func readFile(t *testing.T, fs vfs.FS, path string) []byte {
	t.Helper()
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestPartitionedWriterLayout(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	w, err := NewPartitionedWriter(fs, "out.tmp", 3, WriterOpts{})
	require.NoError(t, err)

	require.NoError(t, w.Append(0, []byte("abc")))
	// Several appends to the same partition accumulate.
	require.NoError(t, w.Append(2, []byte("def")))
	require.NoError(t, w.Append(2, []byte("gh")))

	res, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, []int64{3, 0, 5}, res.Lengths)
	require.Equal(t, int64(8), res.DataSize)
	require.Equal(t, "abcdefgh", string(readFile(t, fs, "out.tmp")))
}

func TestPartitionedWriterEnforcesOrder(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	w, err := NewPartitionedWriter(fs, "out.tmp", 4, WriterOpts{})
	require.NoError(t, err)

	require.NoError(t, w.Append(2, []byte("x")))
	err = w.Append(1, []byte("y"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "appended after")

	err = w.Append(4, []byte("z"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
	w.Abort()
}

func TestPartitionedWriterZstd(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	w, err := NewPartitionedWriter(fs, "out.tmp", 3, WriterOpts{Compression: CompressionZstd})
	require.NoError(t, err)

	p0 := []byte("the first partition's rows, compressible compressible")
	p2 := []byte("partition two")
	require.NoError(t, w.Append(0, p0))
	require.NoError(t, w.Append(2, p2))

	res, err := w.Finish()
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Lengths[1])
	require.Equal(t, res.DataSize, res.Lengths[0]+res.Lengths[2])

	// Each partition is one self-contained zstd frame.
	data := readFile(t, fs, "out.tmp")
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	got0, err := dec.DecodeAll(data[:res.Lengths[0]], nil)
	require.NoError(t, err)
	require.Equal(t, p0, got0)
	got2, err := dec.DecodeAll(data[res.Lengths[0]:], nil)
	require.NoError(t, err)
	require.Equal(t, p2, got2)
}

func TestPartitionedWriterChecksums(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	w, err := NewPartitionedWriter(fs, "out.tmp", 3, WriterOpts{Checksum: true})
	require.NoError(t, err)

	require.NoError(t, w.Append(1, []byte("hello")))
	res, err := w.Finish()
	require.NoError(t, err)

	empty := xxhash.Sum64(nil)
	require.Equal(t, []uint64{
		empty,
		xxhash.Sum64([]byte("hello")),
		empty,
	}, res.Checksums)
}

func TestPartitionedWriterAbortRemovesFile(t *testing.T) {
	defer leaktest.AfterTest(t)()
	fs := vfs.NewMem()
	w, err := NewPartitionedWriter(fs, "out.tmp", 2, WriterOpts{})
	require.NoError(t, err)
	require.NoError(t, w.Append(0, []byte("partial")))

	w.Abort()
	_, err = fs.Stat("out.tmp")
	require.True(t, errors.Is(err, os.ErrNotExist))

	err = w.Append(1, []byte("more"))
	require.Error(t, err)
}
