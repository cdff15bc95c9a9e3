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
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// CommandRecord is the provenance of one recorded command.
type CommandRecord struct {
	Cmd Command
	Tag access.Tag
}

// RecordedSyncOp is a sync op with its recording-local tag.
type RecordedSyncOp struct {
	Tag access.Tag
	Op  SyncOp
}

// CommandBufferAccessContext is the recording state of one command buffer:
// its access ledger with local tags, the recorded sync ops, and the event
// states.
type CommandBufferAccessContext struct {
	handle    state.Handle
	queueCaps access.QueueFlags

	ctx    *access.AccessContext
	events *SyncEventsContext
	rp     *RenderPassAccessContext

	tagCount access.Tag
	commands []CommandRecord
	syncOps  []RecordedSyncOp
}

// NewCommandBufferAccessContext returns the recording state for a command
// buffer that will execute on queues with the given capabilities.
func NewCommandBufferAccessContext(h state.Handle, queueCaps access.QueueFlags) *CommandBufferAccessContext {
	return &CommandBufferAccessContext{
		handle:    h,
		queueCaps: queueCaps,
		ctx:       access.NewAccessContext(),
		events:    NewSyncEventsContext(),
	}
}

// Reset returns the recording to its initial state.
func (cb *CommandBufferAccessContext) Reset() {
	cb.ctx.Reset()
	cb.events.Reset()
	cb.rp = nil
	cb.tagCount = 0
	cb.commands = nil
	cb.syncOps = nil
}

// Handle returns the command buffer handle.
func (cb *CommandBufferAccessContext) Handle() state.Handle { return cb.handle }

// TagCount returns the number of local tags assigned so far.
func (cb *CommandBufferAccessContext) TagCount() access.Tag { return cb.tagCount }

// Commands returns the recorded command provenance, indexed by local tag.
func (cb *CommandBufferAccessContext) Commands() []CommandRecord { return cb.commands }

// SyncOps returns the recorded sync ops in recording order.
func (cb *CommandBufferAccessContext) SyncOps() []RecordedSyncOp { return cb.syncOps }

// AccessContext returns the recording access ledger.
func (cb *CommandBufferAccessContext) AccessContext() *access.AccessContext { return cb.ctx }

// QueueID implements ReplayTarget; recordings are not bound to a queue.
func (cb *CommandBufferAccessContext) QueueID() access.QueueID { return access.QueueIDInvalid }

// QueueCaps implements ReplayTarget.
func (cb *CommandBufferAccessContext) QueueCaps() access.QueueFlags { return cb.queueCaps }

// CurrentContext implements ReplayTarget.
func (cb *CommandBufferAccessContext) CurrentContext() *access.AccessContext { return cb.ctx }

// EventsContext implements ReplayTarget.
func (cb *CommandBufferAccessContext) EventsContext() *SyncEventsContext { return cb.events }

// RenderPass returns the active render pass instance, or nil.
func (cb *CommandBufferAccessContext) RenderPass() *RenderPassAccessContext { return cb.rp }

// NextCommandTag assigns the next local tag to cmd.
func (cb *CommandBufferAccessContext) NextCommandTag(cmd Command) access.Tag {
	tag := cb.tagCount
	cb.tagCount++
	cb.commands = append(cb.commands, CommandRecord{Cmd: cmd, Tag: tag})
	return tag
}

// DetectHazard checks a proposed access against the recording.
func (cb *CommandBufferAccessContext) DetectHazard(gen access.RangeGen, u access.Usage, ordering access.Ordering) access.HazardResult {
	return cb.ctx.DetectHazard(gen, u, ordering, access.QueueIDInvalid)
}

// UpdateAccess records an access at the given local tag.
func (cb *CommandBufferAccessContext) UpdateAccess(gen access.RangeGen, u access.Usage, ordering access.Ordering, tag access.Tag) {
	cb.ctx.UpdateAccessState(gen, u, ordering, tag, access.QueueIDInvalid)
}

// ValidateSyncOp checks a sync op against the recording.
func (cb *CommandBufferAccessContext) ValidateSyncOp(op SyncOp) access.HazardResult {
	return op.ReplayValidate(cb)
}

// RecordSyncOp assigns a tag to the op, applies it to the recording and
// remembers it for submit time replay.
func (cb *CommandBufferAccessContext) RecordSyncOp(op SyncOp) access.Tag {
	tag := cb.NextCommandTag(op.Cmd())
	op.ReplayRecord(cb, tag)
	cb.syncOps = append(cb.syncOps, RecordedSyncOp{Tag: tag, Op: op})
	return tag
}

// proxyTarget is a throwaway copy of a replay target, so validation can
// apply sync ops without mutating the recording.
type proxyTarget struct {
	queue  access.QueueID
	caps   access.QueueFlags
	ctx    *access.AccessContext
	events *SyncEventsContext
}

func newProxyTarget(t ReplayTarget) *proxyTarget {
	return &proxyTarget{
		queue:  t.QueueID(),
		caps:   t.QueueCaps(),
		ctx:    t.CurrentContext().Clone(),
		events: t.EventsContext().DeepCopy(),
	}
}

func (p *proxyTarget) QueueID() access.QueueID               { return p.queue }
func (p *proxyTarget) QueueCaps() access.QueueFlags          { return p.caps }
func (p *proxyTarget) CurrentContext() *access.AccessContext { return p.ctx }
func (p *proxyTarget) EventsContext() *SyncEventsContext     { return p.events }

// ValidateExecuteCommands replays a secondary command buffer's first uses
// against a proxy of this recording; the recording is not modified.
func (cb *CommandBufferAccessContext) ValidateExecuteCommands(secondary *CommandBufferAccessContext) []access.HazardResult {
	replay := NewReplayState(newProxyTarget(cb), secondary, cb.tagCount)
	return replay.ValidateFirstUse()
}

// RecordExecuteCommands imports a secondary command buffer's accesses and
// sync ops into this recording, rebasing its local tags.
func (cb *CommandBufferAccessContext) RecordExecuteCommands(secondary *CommandBufferAccessContext) {
	bias := cb.tagCount
	// Replay the secondary's sync ops so their barrier and event effects
	// also cover accesses recorded in this command buffer before the
	// execute.
	for _, rec := range secondary.syncOps {
		rec.Op.ReplayRecord(cb, bias+rec.Tag)
		cb.syncOps = append(cb.syncOps, RecordedSyncOp{Tag: bias + rec.Tag, Op: rec.Op})
	}
	cb.ctx.ResolveFromContext(secondary.ctx, nil, func(s *access.ResourceAccessState) {
		s.OffsetTags(bias)
	})
	for _, rec := range secondary.commands {
		cb.commands = append(cb.commands, CommandRecord{Cmd: rec.Cmd, Tag: bias + rec.Tag})
	}
	cb.tagCount += secondary.tagCount
}
