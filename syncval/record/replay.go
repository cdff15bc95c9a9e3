// Copyright (C) 2024 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package record

import (
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
)

// ReplayState replays a recorded command buffer against an execution
// context: the recorded first uses are checked in command order,
// interleaved with the recorded sync ops, which are applied to the target
// as they are passed.
type ReplayState struct {
	target   ReplayTarget
	recorded *CommandBufferAccessContext
	// baseTag is the global tag of the recording's local tag zero.
	baseTag access.Tag
}

// NewReplayState prepares a replay of recorded onto target with the given
// tag bias.
func NewReplayState(target ReplayTarget, recorded *CommandBufferAccessContext, baseTag access.Tag) *ReplayState {
	return &ReplayState{target: target, recorded: recorded, baseTag: baseTag}
}

// BaseTag returns the global tag of the recording's first command.
func (r *ReplayState) BaseTag() access.Tag { return r.baseTag }

// GlobalTag converts a recording-local tag to a global one.
func (r *ReplayState) GlobalTag(local access.Tag) access.Tag { return r.baseTag + local }

// ValidateFirstUse checks the recording's first uses against the target,
// applying the recorded sync ops along the way. The target's context is
// modified; callers validate against the context they will resolve into.
func (r *ReplayState) ValidateFirstUse() []access.HazardResult {
	var hazards []access.HazardResult
	detect := func(localRange access.TagRange) {
		if localRange.Begin >= localRange.End {
			return
		}
		h := r.recorded.ctx.DetectFirstUseHazard(r.target.QueueID(), localRange, r.target.CurrentContext())
		if h.IsHazard() {
			hazards = append(hazards, h)
		}
	}
	next := access.Tag(0)
	for _, rec := range r.recorded.syncOps {
		detect(access.TagRange{Begin: next, End: rec.Tag})
		if h := rec.Op.ReplayValidate(r.target); h.IsHazard() {
			hazards = append(hazards, h)
		}
		rec.Op.ReplayRecord(r.target, r.GlobalTag(rec.Tag))
		next = rec.Tag + 1
	}
	detect(access.TagRange{Begin: next, End: r.recorded.tagCount})
	return hazards
}

// ReplayOps applies the recorded sync ops to the target without checking
// first uses. The target's state still has to advance when validation is
// disabled so later submissions resolve against it.
func (r *ReplayState) ReplayOps() {
	for _, rec := range r.recorded.syncOps {
		rec.Op.ReplayRecord(r.target, r.GlobalTag(rec.Tag))
	}
}

// Resolve imports the recording's accesses into the target, rebasing tags
// and binding them to the target queue.
func (r *ReplayState) Resolve() {
	queue := r.target.QueueID()
	bias := r.baseTag
	r.target.CurrentContext().ResolveFromContext(r.recorded.ctx, nil, func(s *access.ResourceAccessState) {
		s.OffsetTags(bias)
		s.SetQueueID(queue)
	})
}
