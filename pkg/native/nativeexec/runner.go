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
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/emberdb/ember/pkg/shuffle"
)

// RunShuffleWrites runs every map partition of a shuffle writer with
// bounded parallelism and returns each map task's MapStatus in
// partition order. Partitions are independent units of work: each gets
// a fresh attempt context, and the first failure cancels the remaining
// ones. Cancelled or failed attempts never commit. Completed statuses
// are registered with tracker when it is non-nil.
func RunShuffleWrites(
	ctx context.Context,
	ex *ShuffleWriterExec,
	base ExecContext,
	parallelism int,
	tracker *shuffle.Tracker,
) ([]shuffle.MapStatus, error) {
	parts := ex.Partitions()
	if parallelism <= 0 {
		parallelism = len(parts)
	}
	pool, err := ants.NewPool(parallelism)
	if err != nil {
		return nil, errors.Wrap(err, "creating worker pool")
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if tracker != nil {
		tracker.RegisterShuffle(ex.ShuffleID(), len(parts))
	}

	statuses := make([]shuffle.MapStatus, len(parts))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for _, p := range parts {
		p := p
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			execCtx := base.NewAttempt()
			status, _, err := ex.RunPartition(ctx, &execCtx, p.Index)
			if err != nil {
				fail(err)
				return
			}
			statuses[p.Index] = status
			if tracker != nil {
				if err := tracker.RegisterMapOutput(ex.ShuffleID(), status); err != nil {
					fail(err)
				}
			}
		}); err != nil {
			wg.Done()
			fail(errors.Wrap(err, "submitting map task"))
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return statuses, nil
}
