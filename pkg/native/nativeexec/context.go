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

	"github.com/cockroachdb/logtags"
	"github.com/google/uuid"

	"github.com/emberdb/ember/pkg/shuffle"
)

// ExecContext carries everything a per-partition computation needs,
// passed explicitly instead of captured: the runtime handle, the shuffle
// resolver, and the identity of the current task attempt. It is a value
// type; NewAttempt derives a copy for a fresh attempt so nothing is
// shared across attempts.
type ExecContext struct {
	// AttemptID identifies one attempt of one partition task. Metrics
	// and temp files are scoped to it.
	AttemptID uuid.UUID
	// StageID identifies the stage this executor tree belongs to.
	StageID int64

	Runtime  Runtime
	Resolver *shuffle.Resolver
}

// MakeExecContext returns an ExecContext for the first attempt.
func MakeExecContext(stageID int64, rt Runtime, resolver *shuffle.Resolver) ExecContext {
	return ExecContext{
		AttemptID: uuid.New(),
		StageID:   stageID,
		Runtime:   rt,
		Resolver:  resolver,
	}
}

// NewAttempt derives a context for a fresh attempt of a partition task.
func (ec ExecContext) NewAttempt() ExecContext {
	ec.AttemptID = uuid.New()
	return ec
}

// annotateCtx tags the context with the attempt's identity for logging.
func (ec *ExecContext) annotateCtx(ctx context.Context, partition int) context.Context {
	ctx = logtags.AddTag(ctx, "stage", ec.StageID)
	ctx = logtags.AddTag(ctx, "part", partition)
	return logtags.AddTag(ctx, "attempt", ec.AttemptID.String()[:8])
}
