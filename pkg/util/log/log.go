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

// Package log provides leveled, context-tagged logging for the engine.
// Messages are prefixed with the tags carried by the context (see
// logtags.AddTag), so a task's shuffle/map identity shows up on every
// line logged on its behalf without being threaded through call
// signatures.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
)

var logger atomic.Pointer[slog.Logger]

var verbosity atomic.Int32

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// SetLogger replaces the process-wide sink. Intended for tests and for
// embedders that already own a slog pipeline.
func SetLogger(l *slog.Logger) { logger.Store(l) }

// SetVerbosity sets the level below which V returns true.
func SetVerbosity(level int32) { verbosity.Store(level) }

// V returns true if verbose logging at the given level is enabled.
func V(level int32) bool { return verbosity.Load() >= level }

// Infof logs to the INFO level.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logger.Load().Info(formatWithContextTags(ctx, format, args...))
}

// VInfof logs to the INFO level when verbosity is at or above level.
func VInfof(ctx context.Context, level int32, format string, args ...interface{}) {
	if V(level) {
		Infof(ctx, format, args...)
	}
}

// Warningf logs to the WARNING level.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logger.Load().Warn(formatWithContextTags(ctx, format, args...))
}

// Errorf logs to the ERROR level.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logger.Load().Error(formatWithContextTags(ctx, format, args...))
}

// Fatalf logs to the ERROR level and terminates the process.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	logger.Load().Error(formatWithContextTags(ctx, format, args...))
	os.Exit(1)
}

// formatWithContextTags formats the message and prepends the context
// tags, e.g. "[shuffle=3,map=7] committed map output".
func formatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	var buf strings.Builder
	if b := logtags.FromContext(ctx); b != nil {
		buf.WriteByte('[')
		for i, t := range b.Get() {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(t.Key())
			if v := t.ValueStr(); v != "" {
				buf.WriteByte('=')
				buf.WriteString(v)
			}
		}
		buf.WriteString("] ")
	}
	fmt.Fprintf(&buf, format, args...)
	return buf.String()
}
