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

package syncval

import (
	"context"

	"github.com/zmike/Vulkan-ValidationLayers/core/log"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/record"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// SemaphoreWait is one semaphore wait of a submission batch.
type SemaphoreWait struct {
	Semaphore state.Handle
	Stages    access.StageFlags
}

// SemaphoreSignalInfo is one semaphore signal of a submission batch.
type SemaphoreSignalInfo struct {
	Semaphore state.Handle
	Stages    access.StageFlags
}

// SubmitInfo is one batch of a queue submission.
type SubmitInfo struct {
	Waits          []SemaphoreWait
	CommandBuffers []state.Handle
	Signals        []SemaphoreSignalInfo
}

// QueueSyncState is the per queue tail of the timeline: the last batch
// submitted, which transitively retains every unsynchronized access of the
// queue.
type QueueSyncState struct {
	queue       *state.QueueState
	lastBatch   *QueueBatchContext
	submitIndex uint64
}

// Queue returns the tracked queue metadata.
func (q *QueueSyncState) Queue() *state.QueueState { return q.queue }

// LastBatch returns the most recent batch, or nil.
func (q *QueueSyncState) LastBatch() *QueueBatchContext { return q.lastBatch }

// QueueBatchContext is the execution context of one submitted batch. It
// implements record.ReplayTarget: recorded command buffers are replayed
// against it, and their accesses resolve into it.
type QueueBatchContext struct {
	queue    *QueueSyncState
	ctx      *access.AccessContext
	events   *record.SyncEventsContext
	tagRange access.TagRange
	log      *BatchAccessLog
	// syncTags holds, per queue, the first tag not known to be ordered
	// before this batch. Accesses of that queue at or after the tag race.
	syncTags map[access.QueueID]access.Tag
}

func newQueueBatchContext(q *QueueSyncState) *QueueBatchContext {
	return &QueueBatchContext{
		queue:    q,
		ctx:      access.NewAccessContext(),
		events:   record.NewSyncEventsContext(),
		log:      &BatchAccessLog{},
		syncTags: map[access.QueueID]access.Tag{},
	}
}

// QueueID implements record.ReplayTarget.
func (b *QueueBatchContext) QueueID() access.QueueID { return b.queue.queue.ID }

// QueueCaps implements record.ReplayTarget.
func (b *QueueBatchContext) QueueCaps() access.QueueFlags { return b.queue.queue.Flags }

// CurrentContext implements record.ReplayTarget.
func (b *QueueBatchContext) CurrentContext() *access.AccessContext { return b.ctx }

// EventsContext implements record.ReplayTarget.
func (b *QueueBatchContext) EventsContext() *record.SyncEventsContext { return b.events }

// TagRange returns the global tags reserved for this batch.
func (b *QueueBatchContext) TagRange() access.TagRange { return b.tagRange }

// AccessLog returns the batch's tag provenance log.
func (b *QueueBatchContext) AccessLog() *BatchAccessLog { return b.log }

func (b *QueueBatchContext) mergeSyncTags(from *QueueBatchContext) {
	for q, t := range from.syncTags {
		if t > b.syncTags[q] {
			b.syncTags[q] = t
		}
	}
	if from.tagRange.End > b.syncTags[from.QueueID()] {
		b.syncTags[from.QueueID()] = from.tagRange.End
	}
}

// importPrevBatch makes the previous batch of the same queue visible in
// this one. Same queue submissions are implicitly ordered; no barrier or
// scope rewrite applies.
func (b *QueueBatchContext) importPrevBatch(prev *QueueBatchContext) {
	b.ctx.ResolveFromContext(prev.ctx, nil, nil)
	b.events.Merge(prev.events)
	b.log.MergeFrom(prev.log)
	b.mergeSyncTags(prev)
}

// importSignal makes the signaling batch visible through the semaphore
// scope pair: accesses in the signal scope become ordered behind the wait
// scope, everything else loses its synchronization.
func (b *QueueBatchContext) importSignal(sig *SemaphoreSignal, wait access.SemaphoreScope) {
	signal := sig.Scope
	b.ctx.ResolveFromContext(sig.Batch.ctx, nil, func(s *access.ResourceAccessState) {
		s.ApplySemaphore(signal, wait)
	})
	b.log.MergeFrom(sig.Batch.log)
	b.mergeSyncTags(sig.Batch)
}

// importAsync snapshots an unsynchronized sibling queue's last batch.
// Accesses below the sync tag floor were ordered by an earlier wait and do
// not race.
func (b *QueueBatchContext) importAsync(other *QueueBatchContext) {
	b.ctx.AddAsyncContext(other.ctx.Clone(), b.syncTags[other.QueueID()])
}

// waitScope builds the destination half of a semaphore dependency.
func waitScope(queueID access.QueueID, caps access.QueueFlags, stages access.StageFlags) access.SemaphoreScope {
	expanded := access.ExpandStages(stages, caps)
	return access.SemaphoreScope{
		Queue: queueID,
		Exec:  access.WithLaterStages(expanded),
		Scope: access.AccessScope(expanded, access.ValidAccesses(expanded)),
	}
}

// signalScope builds the source half of a semaphore dependency.
func signalScope(queueID access.QueueID, caps access.QueueFlags, stages access.StageFlags) access.SemaphoreScope {
	expanded := access.ExpandStages(stages, caps)
	return access.SemaphoreScope{
		Queue: queueID,
		Exec:  access.WithEarlierStages(expanded),
		Scope: access.AccessScope(expanded, access.ValidAccesses(expanded)),
	}
}

// QueueSubmit validates the batches against the queue timelines and, when
// they pass the caller's policy, resolves them into the queue's state.
// Returns true if a hazard was reported.
func (v *Validator) QueueSubmit(ctx context.Context, queue state.Handle, submits []SubmitInfo, fence state.Handle) (bool, error) {
	return v.queueSubmit(ctx, queue, submits, fence, record.CmdQueueSubmit)
}

// QueueSubmit2 is QueueSubmit for the dependency-info calling convention;
// SubmitInfo carries the per semaphore stage masks either way.
func (v *Validator) QueueSubmit2(ctx context.Context, queue state.Handle, submits []SubmitInfo, fence state.Handle) (bool, error) {
	return v.queueSubmit(ctx, queue, submits, fence, record.CmdQueueSubmit2)
}

func (v *Validator) queueSubmit(ctx context.Context, queue state.Handle, submits []SubmitInfo, fence state.Handle, cmd record.Command) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	qs, ok := v.queues[queue]
	if !ok {
		log.D(ctx, "queue submit on untracked queue %#x", uint64(queue))
		return false, nil
	}

	signaled := NewSignaledSemaphores(v.signaled)
	skip := false
	var lastTag access.Tag

	for batchIndex, submit := range submits {
		batch := newQueueBatchContext(qs)
		if qs.lastBatch != nil {
			batch.importPrevBatch(qs.lastBatch)
		}
		for _, w := range submit.Waits {
			sig := signaled.Unsignal(w.Semaphore)
			if sig == nil {
				// Signaled by an agent this validator cannot see.
				log.D(ctx, "wait on unsignaled semaphore %#x", uint64(w.Semaphore))
				continue
			}
			batch.importSignal(sig, waitScope(batch.QueueID(), batch.QueueCaps(), w.Stages))
		}
		for _, other := range v.queues {
			if other == qs || other.lastBatch == nil {
				continue
			}
			batch.importAsync(other.lastBatch)
		}

		cbs := make([]*record.CommandBufferAccessContext, 0, len(submit.CommandBuffers))
		total := uint64(0)
		for _, h := range submit.CommandBuffers {
			cb, ok := v.cbs[h]
			if !ok {
				log.D(ctx, "submit of untracked command buffer %#x", uint64(h))
				continue
			}
			cbs = append(cbs, cb)
			total += uint64(cb.TagCount())
		}
		if total == 0 {
			// Signal only batches still occupy a tag for ordering.
			total = 1
		}
		batch.tagRange = v.reserveTags(total)

		rec := BatchRecord{Queue: queue, SubmitIndex: qs.submitIndex, BatchIndex: uint32(batchIndex)}
		base := batch.tagRange.Begin
		for _, cb := range cbs {
			replay := record.NewReplayState(batch, cb, base)
			if v.cfg.QueueSubmitValidation {
				for _, h := range replay.ValidateFirstUse() {
					skip = true
					v.report(ctx, HazardReport{
						Hazard:        h,
						Command:       cmd,
						CommandBuffer: cb.Handle(),
						Queue:         queue,
						Prior:         v.priorRecord(batch, h),
					})
				}
			} else {
				replay.ReplayOps()
			}
			replay.Resolve()
			batch.log.Insert(rec, cb.Handle(),
				access.TagRange{Begin: base, End: base + cb.TagCount()}, cb.Commands())
			base += cb.TagCount()
		}

		for _, s := range submit.Signals {
			ok := signaled.Signal(s.Semaphore, &SemaphoreSignal{
				Batch: batch,
				Scope: signalScope(batch.QueueID(), batch.QueueCaps(), s.Stages),
			})
			if !ok {
				log.D(ctx, "signal of already signaled semaphore %#x", uint64(s.Semaphore))
			}
		}

		batch.syncTags[batch.QueueID()] = batch.tagRange.End
		if prev := qs.lastBatch; prev != nil {
			// The superseded batch's events were merged forward; only its
			// access context is still reachable through semaphore signals.
			prev.events.Reset()
		}
		qs.lastBatch = batch
		lastTag = batch.tagRange.End
	}
	qs.submitIndex++

	if fence != 0 && len(submits) > 0 {
		v.fences[fence] = &FenceSyncState{Fence: fence, Queue: qs.queue.ID, Tag: lastTag}
	}

	// Hazards are reported, not enforced; the submission always commits.
	signaled.Resolve()
	return skip, nil
}

// priorRecord resolves the provenance of a hazard's conflicting access
// from the batch's access log.
func (v *Validator) priorRecord(batch *QueueBatchContext, h access.HazardResult) *AccessRecord {
	if rec, ok := batch.log.GetRecord(h.PriorTag); ok {
		return &rec
	}
	return nil
}
