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
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "debugging commands for on-disk artifacts",
}

var debugShuffleIndexCmd = &cobra.Command{
	Use:   "shuffle-index <index-file>",
	Short: "dump the offsets of a committed shuffle index file",
	Long: `
Dumps the offsets of a shuffle index file, one reduce partition per
line with its byte range and humanized size. The file must contain
numPartitions+1 big-endian uint64 offsets starting at 0.
`,
	Args: cobra.ExactArgs(1),
	RunE: runDebugShuffleIndex,
}

func init() {
	debugCmd.AddCommand(debugShuffleIndexCmd)
}

func runDebugShuffleIndex(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if len(raw) < 16 || len(raw)%8 != 0 {
		return errors.Newf("malformed index file: %d bytes", len(raw))
	}
	offsets := make([]uint64, len(raw)/8)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint64(raw[8*i:])
	}
	if offsets[0] != 0 {
		return errors.Newf("malformed index file: first offset is %d", offsets[0])
	}
	w := cmd.OutOrStdout()
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return errors.Newf("malformed index file: offset %d decreases", i)
		}
		size := offsets[i] - offsets[i-1]
		fmt.Fprintf(w, "partition %4d: [%d, %d) %s\n", i-1, offsets[i-1], offsets[i], humanize.IBytes(size))
	}
	fmt.Fprintf(w, "total: %d partitions, %s\n", len(offsets)-1, humanize.IBytes(offsets[len(offsets)-1]))
	return nil
}
