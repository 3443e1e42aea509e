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

import "fmt"

// Location identifies the node whose local store holds a committed map
// output. Readers contact this location to fetch byte ranges.
type Location struct {
	ExecutorID string
	Host       string
	Port       int
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%s:%d)", l.ExecutorID, l.Host, l.Port)
}

// MapStatus describes where a completed map task's shuffle output lives
// and how large each downstream partition's share is. It is handed to
// the scheduler on task completion; readers use Lengths together with
// the committed index to address byte ranges without recomputation.
type MapStatus struct {
	Location Location
	MapID    int64
	// Lengths holds the byte length of each reduce partition's range, in
	// partition order.
	Lengths []int64
}

// TotalSize returns the total committed data size.
func (s MapStatus) TotalSize() int64 {
	var total int64
	for _, l := range s.Lengths {
		total += l
	}
	return total
}

// SizeForReduce returns the byte length of the given reduce partition's
// range.
func (s MapStatus) SizeForReduce(reduce int) int64 {
	return s.Lengths[reduce]
}
