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
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Tracker is the in-memory registry of committed map outputs, keyed by
// shuffle. The scheduler registers each completed map task's MapStatus
// here; reduce tasks consult it to locate the byte ranges they need to
// fetch. Registration for an already-registered mapID overwrites: the
// most recently committed (speculative) attempt wins, matching the
// on-disk commit protocol.
type Tracker struct {
	shuffles *xsync.MapOf[int64, *shuffleOutputs]
}

type shuffleOutputs struct {
	numMaps int
	outputs *xsync.MapOf[int64, MapStatus]
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{shuffles: xsync.NewMapOf[int64, *shuffleOutputs]()}
}

// RegisterShuffle declares a shuffle with the given number of map tasks.
// Registering an existing shuffle is a no-op.
func (t *Tracker) RegisterShuffle(shuffleID int64, numMaps int) {
	t.shuffles.LoadOrCompute(shuffleID, func() *shuffleOutputs {
		return &shuffleOutputs{
			numMaps: numMaps,
			outputs: xsync.NewMapOf[int64, MapStatus](),
		}
	})
}

// RegisterMapOutput records the MapStatus of a committed map task.
func (t *Tracker) RegisterMapOutput(shuffleID int64, status MapStatus) error {
	s, ok := t.shuffles.Load(shuffleID)
	if !ok {
		return errors.Newf("shuffle %d is not registered", shuffleID)
	}
	s.outputs.Store(status.MapID, status)
	return nil
}

// GetMapStatus returns the registered status for one map task.
func (t *Tracker) GetMapStatus(shuffleID, mapID int64) (MapStatus, bool) {
	s, ok := t.shuffles.Load(shuffleID)
	if !ok {
		return MapStatus{}, false
	}
	return s.outputs.Load(mapID)
}

// NumAvailable returns how many map outputs have been registered.
func (t *Tracker) NumAvailable(shuffleID int64) int {
	s, ok := t.shuffles.Load(shuffleID)
	if !ok {
		return 0
	}
	return s.outputs.Size()
}

// MissingMapOutputs returns the mapIDs that have no registered output
// yet, in ascending order.
func (t *Tracker) MissingMapOutputs(shuffleID int64) []int64 {
	s, ok := t.shuffles.Load(shuffleID)
	if !ok {
		return nil
	}
	var missing []int64
	for mapID := int64(0); mapID < int64(s.numMaps); mapID++ {
		if _, ok := s.outputs.Load(mapID); !ok {
			missing = append(missing, mapID)
		}
	}
	return missing
}

// ReduceSize returns the total bytes registered for one reduce
// partition across all available map outputs.
func (t *Tracker) ReduceSize(shuffleID int64, reduce int) int64 {
	s, ok := t.shuffles.Load(shuffleID)
	if !ok {
		return 0
	}
	var total int64
	s.outputs.Range(func(_ int64, st MapStatus) bool {
		if reduce < len(st.Lengths) {
			total += st.Lengths[reduce]
		}
		return true
	})
	return total
}

// UnregisterShuffle drops all registered outputs of a shuffle. Called
// when the shuffle's consumers have completed or the stage is
// invalidated.
func (t *Tracker) UnregisterShuffle(shuffleID int64) {
	t.shuffles.Delete(shuffleID)
}
