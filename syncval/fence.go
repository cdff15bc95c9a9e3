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
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// FenceSyncState records what completing a fence wait synchronizes: a
// queue timeline up to a tag, or an acquired swapchain image.
type FenceSyncState struct {
	Fence state.Handle
	Queue access.QueueID
	Tag   access.Tag

	AcquireImage *state.ImageState
	AcquireTag   access.Tag
}

// IsAcquire returns true for fences signaled by an image acquisition.
func (f *FenceSyncState) IsAcquire() bool { return f.AcquireImage != nil }

// applyTaggedWait erases accesses matched by the predicate from every
// queue's retained batch. Synchronized events are dropped up to maxTag.
func (v *Validator) applyTaggedWait(pred access.QueuePredicate, queue access.QueueID, maxTag access.Tag) {
	for _, qs := range v.queues {
		b := qs.lastBatch
		if b == nil {
			continue
		}
		b.ctx.ApplyPredicatedWait(pred)
		if queue == access.QueueAny || queue == b.QueueID() {
			b.events.ApplyTaggedWait(maxTag)
		}
	}
	v.trimLocked()
}

// applyAcquireWait erases the acquired image's accesses up to the
// acquisition tag; the presentation engine guarantees they completed.
func (v *Validator) applyAcquireWait(img *state.ImageState, acquireTag access.Tag) {
	pred := func(q access.QueueID, t access.Tag) bool { return t <= acquireTag }
	for _, qs := range v.queues {
		b := qs.lastBatch
		if b == nil {
			continue
		}
		b.ctx.ApplyPredicatedWaitRanged(state.NewImageRangeGen(img, img.FullRange()), pred)
	}
	v.trimLocked()
}

// WaitForFence applies the synchronization of a completed fence wait.
func (v *Validator) WaitForFence(ctx context.Context, fence state.Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.retireFenceLocked(ctx, fence)
}

// GetFenceStatus applies the fence's synchronization when a status poll
// observed it signaled; an unsignaled poll synchronizes nothing.
func (v *Validator) GetFenceStatus(ctx context.Context, fence state.Handle, signaled bool) {
	if !signaled {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.retireFenceLocked(ctx, fence)
}

func (v *Validator) retireFenceLocked(ctx context.Context, fence state.Handle) {
	f, ok := v.fences[fence]
	if !ok {
		log.D(ctx, "wait on untracked fence %#x", uint64(fence))
		return
	}
	delete(v.fences, fence)
	if f.IsAcquire() {
		v.applyAcquireWait(f.AcquireImage, f.AcquireTag)
		return
	}
	queue, tag := f.Queue, f.Tag
	v.applyTaggedWait(func(q access.QueueID, t access.Tag) bool {
		return q == queue && t <= tag
	}, queue, tag)
}

// QueueWaitIdle synchronizes everything submitted to the queue so far.
func (v *Validator) QueueWaitIdle(ctx context.Context, queue state.Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	qs, ok := v.queues[queue]
	if !ok {
		log.D(ctx, "wait idle on untracked queue %#x", uint64(queue))
		return
	}
	id := qs.queue.ID
	maxTag := access.InvalidTag
	if qs.lastBatch != nil {
		maxTag = qs.lastBatch.tagRange.End
	}
	v.applyTaggedWait(func(q access.QueueID, t access.Tag) bool {
		return q == id
	}, id, maxTag)
	// The queue's waitable fences are retired by the idle wait.
	for h, f := range v.fences {
		if !f.IsAcquire() && f.Queue == id {
			delete(v.fences, h)
		}
	}
}

// DeviceWaitIdle synchronizes every queue. Only acquire fences stay
// waitable; the presentation engine is not a queue.
func (v *Validator) DeviceWaitIdle(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.applyTaggedWait(func(q access.QueueID, t access.Tag) bool {
		return true
	}, access.QueueAny, access.InvalidTag)
	for h, f := range v.fences {
		if !f.IsAcquire() {
			delete(v.fences, h)
		}
	}
}
