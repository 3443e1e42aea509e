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

// Package shuffle implements the local storage side of shuffles: writing
// partition-ordered map output, committing it crash-consistently, and
// addressing committed byte ranges for readers.
//
// A committed map output for (shuffleID, mapID) is a pair of files:
//
//	shuffle_<shuffleID>_<mapID>.data   partition-ordered byte ranges
//	shuffle_<shuffleID>_<mapID>.index  numPartitions+1 big-endian uint64
//	                                   offsets; offset[0] = 0, the last
//	                                   offset equals the data size
//
// plus an optional .checksum file carrying one xxhash64 per partition.
// The pair is published by renaming temporary files into their final
// names, data before index, so a reader that finds an index always finds
// the data it describes. Re-commits for the same (shuffleID, mapID)
// replace the pair; the most recently completed commit wins.
package shuffle

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"

	"github.com/emberdb/ember/pkg/util/log"
	"github.com/emberdb/ember/pkg/util/metric"
)

// ErrIOFailure marks commit failures. Nothing was published when a
// commit fails with it; the prior commit, if any, remains the visible
// one and the task attempt should be retried from scratch.
var ErrIOFailure = errors.New("shuffle io failure")

// Metrics holds the resolver's process-level counters.
type Metrics struct {
	Commits        *metric.Counter
	CommitFailures *metric.Counter
	BytesWritten   *metric.Counter
}

func makeMetrics() Metrics {
	return Metrics{
		Commits: metric.NewCounter(metric.Metadata{
			Name:        "shuffle.commits",
			Help:        "Number of committed map outputs",
			Measurement: "Commits",
			Unit:        "count",
		}),
		CommitFailures: metric.NewCounter(metric.Metadata{
			Name:        "shuffle.commit.failures",
			Help:        "Number of failed map output commits",
			Measurement: "Commits",
			Unit:        "count",
		}),
		BytesWritten: metric.NewCounter(metric.Metadata{
			Name:        "shuffle.bytes.written",
			Help:        "Bytes of committed shuffle data",
			Measurement: "Bytes",
			Unit:        "bytes",
		}),
	}
}

// Resolver maps (shuffleID, mapID) pairs to their committed data and
// index files under a local directory and implements the write-commit
// protocol over them.
type Resolver struct {
	fs      vfs.FS
	dir     string
	loc     Location
	metrics Metrics

	// commitMu serializes the publish step. Each rename is atomic on its
	// own; the lock orders the data/index pair so concurrent speculative
	// commits for the same map task cannot interleave their renames.
	commitMu sync.Mutex
}

// NewResolver creates a Resolver rooted at dir, creating the directory
// if needed. The resolver's counters are added to reg when it is
// non-nil.
func NewResolver(fs vfs.FS, dir string, loc Location, reg *metric.Registry) (*Resolver, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating shuffle directory %q", dir)
	}
	r := &Resolver{fs: fs, dir: dir, loc: loc, metrics: makeMetrics()}
	if reg != nil {
		reg.AddMetric(r.metrics.Commits)
		reg.AddMetric(r.metrics.CommitFailures)
		reg.AddMetric(r.metrics.BytesWritten)
	}
	return r, nil
}

// Location returns the location committed MapStatuses will reference.
func (r *Resolver) Location() Location { return r.loc }

// Metrics returns the resolver's counters.
func (r *Resolver) Metrics() Metrics { return r.metrics }

// DataFile returns the final data file path for a map output.
func (r *Resolver) DataFile(shuffleID, mapID int64) string {
	return r.fs.PathJoin(r.dir, fmt.Sprintf("shuffle_%d_%d.data", shuffleID, mapID))
}

// IndexFile returns the final index file path for a map output.
func (r *Resolver) IndexFile(shuffleID, mapID int64) string {
	return r.fs.PathJoin(r.dir, fmt.Sprintf("shuffle_%d_%d.index", shuffleID, mapID))
}

// ChecksumFile returns the final checksum file path for a map output.
func (r *Resolver) ChecksumFile(shuffleID, mapID int64) string {
	return r.fs.PathJoin(r.dir, fmt.Sprintf("shuffle_%d_%d.checksum", shuffleID, mapID))
}

// tempName derives a fresh temporary name next to a final path. Temp
// files live in the shuffle directory itself so the final rename never
// crosses a filesystem boundary.
func (r *Resolver) tempName(final string) string {
	return final + "." + uuid.NewString() + ".tmp"
}

// NewTempWriter returns a PartitionedWriter targeting a fresh temporary
// data file for the given map output. The writer's result is what a
// subsequent Commit consumes.
func (r *Resolver) NewTempWriter(
	shuffleID, mapID int64, numPartitions int, opts WriterOpts,
) (*PartitionedWriter, error) {
	return NewPartitionedWriter(r.fs, r.tempName(r.DataFile(shuffleID, mapID)), numPartitions, opts)
}

// CommitArgs are the inputs to Commit. TempData must already contain
// len(Lengths) contiguous byte ranges in partition order, and DataSize
// must equal the sum of Lengths. Checksums, when non-nil, carries one
// xxhash64 per partition and is committed alongside the pair.
type CommitArgs struct {
	ShuffleID int64
	MapID     int64
	TempData  string
	Lengths   []int64
	DataSize  int64
	Checksums []uint64
}

// Commit atomically publishes (data, index) as the authoritative output
// for (ShuffleID, MapID), replacing any prior commit for the same pair,
// and returns the MapStatus describing it. On failure nothing is
// published, temporary files are removed, and the error is marked with
// ErrIOFailure when retrying the attempt may help. A commit for a
// cancelled attempt is never published.
func (r *Resolver) Commit(ctx context.Context, args CommitArgs) (MapStatus, error) {
	status, err := r.commit(ctx, args)
	if err != nil {
		r.metrics.CommitFailures.Inc(1)
		// The temp data file is never reused across attempts.
		_ = r.fs.Remove(args.TempData)
		return MapStatus{}, err
	}
	r.metrics.Commits.Inc(1)
	r.metrics.BytesWritten.Inc(args.DataSize)
	return status, nil
}

func (r *Resolver) commit(ctx context.Context, args CommitArgs) (MapStatus, error) {
	var total int64
	for i, l := range args.Lengths {
		if l < 0 {
			return MapStatus{}, errors.AssertionFailedf("negative length %d for partition %d", l, i)
		}
		total += l
	}
	if total != args.DataSize {
		return MapStatus{}, errors.AssertionFailedf(
			"data size %d does not match sum of partition lengths %d", args.DataSize, total)
	}
	if args.Checksums != nil && len(args.Checksums) != len(args.Lengths) {
		return MapStatus{}, errors.AssertionFailedf(
			"%d checksums for %d partitions", len(args.Checksums), len(args.Lengths))
	}
	if err := ctx.Err(); err != nil {
		return MapStatus{}, errors.Wrap(err, "commit aborted")
	}

	fi, err := r.fs.Stat(args.TempData)
	if err != nil {
		return MapStatus{}, errors.Mark(errors.Wrap(err, "temp data file"), ErrIOFailure)
	}
	if fi.Size() != args.DataSize {
		return MapStatus{}, errors.Mark(errors.Newf(
			"temp data file %q is incomplete: %d of %d bytes", args.TempData, fi.Size(), args.DataSize),
			ErrIOFailure)
	}

	finalData := r.DataFile(args.ShuffleID, args.MapID)
	finalIndex := r.IndexFile(args.ShuffleID, args.MapID)

	tempIndex := r.tempName(finalIndex)
	if err := r.writeIndexFile(tempIndex, args.Lengths); err != nil {
		_ = r.fs.Remove(tempIndex)
		return MapStatus{}, errors.Mark(err, ErrIOFailure)
	}

	var tempChecksum, finalChecksum string
	if args.Checksums != nil {
		finalChecksum = r.ChecksumFile(args.ShuffleID, args.MapID)
		tempChecksum = r.tempName(finalChecksum)
		if err := r.writeChecksumFile(tempChecksum, args.Checksums); err != nil {
			_ = r.fs.Remove(tempIndex)
			_ = r.fs.Remove(tempChecksum)
			return MapStatus{}, errors.Mark(err, ErrIOFailure)
		}
	}

	r.commitMu.Lock()
	defer r.commitMu.Unlock()
	// Publish data first, index last: a reader that can see the index can
	// always see the data it describes. A crash between the renames fails
	// the attempt; the scheduler re-runs the map task and the re-commit
	// re-establishes a consistent pair.
	if err := r.fs.Rename(args.TempData, finalData); err != nil {
		_ = r.fs.Remove(tempIndex)
		if tempChecksum != "" {
			_ = r.fs.Remove(tempChecksum)
		}
		return MapStatus{}, errors.Mark(errors.Wrap(err, "publishing data file"), ErrIOFailure)
	}
	if tempChecksum != "" {
		if err := r.fs.Rename(tempChecksum, finalChecksum); err != nil {
			_ = r.fs.Remove(tempIndex)
			return MapStatus{}, errors.Mark(errors.Wrap(err, "publishing checksum file"), ErrIOFailure)
		}
	}
	if err := r.fs.Rename(tempIndex, finalIndex); err != nil {
		return MapStatus{}, errors.Mark(errors.Wrap(err, "publishing index file"), ErrIOFailure)
	}

	log.VInfof(ctx, 1, "committed map output %d/%d: %d partitions, %d bytes",
		args.ShuffleID, args.MapID, len(args.Lengths), args.DataSize)

	lengths := make([]int64, len(args.Lengths))
	copy(lengths, args.Lengths)
	return MapStatus{Location: r.loc, MapID: args.MapID, Lengths: lengths}, nil
}

// writeIndexFile writes the offsets derived from lengths, including the
// trailing terminal offset, and fsyncs.
func (r *Resolver) writeIndexFile(path string, lengths []int64) error {
	f, err := r.fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating index file")
	}
	buf := make([]byte, 8*(len(lengths)+1))
	var offset uint64
	for i, l := range lengths {
		binary.BigEndian.PutUint64(buf[8*i:], offset)
		offset += uint64(l)
	}
	binary.BigEndian.PutUint64(buf[8*len(lengths):], offset)
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing index file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "syncing index file")
	}
	return errors.Wrap(f.Close(), "closing index file")
}

func (r *Resolver) writeChecksumFile(path string, checksums []uint64) error {
	f, err := r.fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating checksum file")
	}
	buf := make([]byte, 8*len(checksums))
	for i, c := range checksums {
		binary.BigEndian.PutUint64(buf[8*i:], c)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "writing checksum file")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "syncing checksum file")
	}
	return errors.Wrap(f.Close(), "closing checksum file")
}

// ReadIndex reads the committed offsets for a map output and validates
// the index invariants: numPartitions+1 entries, offset[0] = 0,
// non-decreasing.
func (r *Resolver) ReadIndex(shuffleID, mapID int64) ([]int64, error) {
	f, err := r.fs.Open(r.IndexFile(shuffleID, mapID))
	if err != nil {
		return nil, errors.Wrap(err, "opening index file")
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading index file")
	}
	if len(raw) < 16 || len(raw)%8 != 0 {
		return nil, errors.Newf("malformed index file: %d bytes", len(raw))
	}
	offsets := make([]int64, len(raw)/8)
	for i := range offsets {
		offsets[i] = int64(binary.BigEndian.Uint64(raw[8*i:]))
	}
	if offsets[0] != 0 {
		return nil, errors.Newf("malformed index file: first offset is %d", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return nil, errors.Newf("malformed index file: offset %d decreases", i)
		}
	}
	return offsets, nil
}

// ReadChecksums reads the committed per-partition checksums, if any.
func (r *Resolver) ReadChecksums(shuffleID, mapID int64) ([]uint64, error) {
	f, err := r.fs.Open(r.ChecksumFile(shuffleID, mapID))
	if err != nil {
		return nil, errors.Wrap(err, "opening checksum file")
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading checksum file")
	}
	if len(raw)%8 != 0 {
		return nil, errors.Newf("malformed checksum file: %d bytes", len(raw))
	}
	checksums := make([]uint64, len(raw)/8)
	for i := range checksums {
		checksums[i] = binary.BigEndian.Uint64(raw[8*i:])
	}
	return checksums, nil
}

type segmentReader struct {
	*io.SectionReader
	f vfs.File
}

func (s *segmentReader) Close() error { return s.f.Close() }

// OpenSegment opens the committed byte range of one reduce partition for
// random-access reading. The returned length is the segment's size.
func (r *Resolver) OpenSegment(shuffleID, mapID int64, reduce int) (io.ReadCloser, int64, error) {
	offsets, err := r.ReadIndex(shuffleID, mapID)
	if err != nil {
		return nil, 0, err
	}
	if reduce < 0 || reduce >= len(offsets)-1 {
		return nil, 0, errors.Newf("reduce partition %d out of range [0, %d)", reduce, len(offsets)-1)
	}
	start, end := offsets[reduce], offsets[reduce+1]
	f, err := r.fs.Open(r.DataFile(shuffleID, mapID))
	if err != nil {
		return nil, 0, errors.Wrap(err, "opening data file")
	}
	return &segmentReader{SectionReader: io.NewSectionReader(f, start, end-start), f: f}, end - start, nil
}

// RemoveMapOutput removes a committed map output. The index goes first
// so the "index implies data" invariant holds throughout.
func (r *Resolver) RemoveMapOutput(shuffleID, mapID int64) error {
	for _, path := range []string{
		r.IndexFile(shuffleID, mapID),
		r.ChecksumFile(shuffleID, mapID),
		r.DataFile(shuffleID, mapID),
	} {
		if err := r.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "removing %q", path)
		}
	}
	return nil
}

// RemoveShuffle removes every file of a shuffle, committed or temporary.
// Called when the shuffle's consumers have completed or the stage is
// invalidated.
func (r *Resolver) RemoveShuffle(ctx context.Context, shuffleID int64) error {
	names, err := r.fs.List(r.dir)
	if err != nil {
		return errors.Wrap(err, "listing shuffle directory")
	}
	prefix := fmt.Sprintf("shuffle_%d_", shuffleID)
	var removed int
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if err := r.fs.Remove(r.fs.PathJoin(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Wrapf(err, "removing %q", name)
		}
		removed++
	}
	log.VInfof(ctx, 1, "removed %d files for shuffle %d", removed, shuffleID)
	return nil
}
