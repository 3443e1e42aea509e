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
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the per-partition codec of a PartitionedWriter.
type Compression int

const (
	// CompressionNone writes partition payloads verbatim.
	CompressionNone Compression = iota
	// CompressionZstd wraps each partition's bytes in one zstd frame.
	CompressionZstd
)

// WriterOpts configures a PartitionedWriter.
type WriterOpts struct {
	Compression Compression
	// Checksum enables per-partition xxhash64 checksums over the bytes
	// as they land in the file (post-compression), so a verifier can
	// check a fetched segment without decoding it.
	Checksum bool
}

// PartitionedWriter writes a temporary shuffle data file as contiguous
// byte ranges in partition order. Partitions must be appended in
// non-decreasing order; partitions that receive no appends occupy zero
// bytes. The writer tracks exact per-partition lengths, which a
// Resolver.Commit turns into the index.
type PartitionedWriter struct {
	fs   vfs.FS
	f    vfs.File
	path string
	opts WriterOpts

	lengths   []int64
	checksums []uint64
	written   int64

	cur  int
	open bool
	enc  *zstd.Encoder
	hash *xxhash.Digest

	finished bool
}

// NewPartitionedWriter creates the temp file and a writer over it.
func NewPartitionedWriter(
	fs vfs.FS, path string, numPartitions int, opts WriterOpts,
) (*PartitionedWriter, error) {
	if numPartitions <= 0 {
		return nil, errors.AssertionFailedf("numPartitions must be positive, got %d", numPartitions)
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp data file %q", path)
	}
	w := &PartitionedWriter{
		fs:      fs,
		f:       f,
		path:    path,
		opts:    opts,
		lengths: make([]int64, numPartitions),
	}
	if opts.Checksum {
		w.checksums = make([]uint64, numPartitions)
	}
	if opts.Compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			_ = f.Close()
			_ = fs.Remove(path)
			return nil, errors.Wrap(err, "creating zstd encoder")
		}
		w.enc = enc
	}
	return w, nil
}

// Path returns the temp file path; it is what Commit consumes.
func (w *PartitionedWriter) Path() string { return w.path }

// Write implements io.Writer against the current partition; the counted
// bytes land in the file.
func (w *PartitionedWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.lengths[w.cur] += int64(n)
	w.written += int64(n)
	if w.hash != nil {
		_, _ = w.hash.Write(p[:n])
	}
	return n, err
}

// Append adds payload bytes to the given reduce partition. Partitions
// must be visited in non-decreasing order.
func (w *PartitionedWriter) Append(reduce int, payload []byte) error {
	if w.finished {
		return errors.AssertionFailedf("Append after Finish")
	}
	if reduce < 0 || reduce >= len(w.lengths) {
		return errors.Newf("reduce partition %d out of range [0, %d)", reduce, len(w.lengths))
	}
	if reduce < w.cur {
		return errors.Newf("partition %d appended after partition %d", reduce, w.cur)
	}
	if reduce > w.cur || !w.open {
		if err := w.closePartition(); err != nil {
			return err
		}
		w.cur = reduce
		w.openPartition()
	}
	var err error
	if w.enc != nil {
		_, err = w.enc.Write(payload)
	} else {
		_, err = w.Write(payload)
	}
	return errors.Wrapf(err, "writing partition %d", reduce)
}

func (w *PartitionedWriter) openPartition() {
	if w.opts.Checksum {
		w.hash = xxhash.New()
	}
	if w.enc != nil {
		w.enc.Reset(w)
	}
	w.open = true
}

func (w *PartitionedWriter) closePartition() error {
	if !w.open {
		return nil
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			return errors.Wrapf(err, "flushing partition %d", w.cur)
		}
	}
	if w.hash != nil {
		w.checksums[w.cur] = w.hash.Sum64()
		w.hash = nil
	}
	w.open = false
	return nil
}

// WriteResult is the accounting of a finished temp data file.
type WriteResult struct {
	Path      string
	Lengths   []int64
	DataSize  int64
	Checksums []uint64
}

// Finish flushes and closes the temp file and returns its accounting.
// DataSize always equals the sum of Lengths.
func (w *PartitionedWriter) Finish() (WriteResult, error) {
	if w.finished {
		return WriteResult{}, errors.AssertionFailedf("Finish called twice")
	}
	w.finished = true
	if err := w.closePartition(); err != nil {
		_ = w.f.Close()
		return WriteResult{}, err
	}
	if w.opts.Checksum {
		empty := xxhash.Sum64(nil)
		for i, l := range w.lengths {
			if l == 0 {
				w.checksums[i] = empty
			}
		}
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return WriteResult{}, errors.Wrap(err, "syncing temp data file")
	}
	if err := w.f.Close(); err != nil {
		return WriteResult{}, errors.Wrap(err, "closing temp data file")
	}
	return WriteResult{
		Path:      w.path,
		Lengths:   w.lengths,
		DataSize:  w.written,
		Checksums: w.checksums,
	}, nil
}

// Abort closes and removes the temp file. Partially-written temp files
// are never reused; a fresh attempt starts from a fresh writer.
func (w *PartitionedWriter) Abort() {
	if w.finished {
		_ = w.fs.Remove(w.path)
		return
	}
	w.finished = true
	_ = w.f.Close()
	_ = w.fs.Remove(w.path)
}
