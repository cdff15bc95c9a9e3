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

// PresentInfo selects one swapchain image to present.
type PresentInfo struct {
	Swapchain  state.Handle
	ImageIndex uint32
}

type presentKey struct {
	swapchain state.Handle
	index     uint32
}

// PresentedImage records an image handed to the presentation engine and
// the batch that presented it.
type PresentedImage struct {
	Image *state.ImageState
	Batch *QueueBatchContext
	Tag   access.Tag
}

// QueuePresent validates a presentation against the queue timelines. The
// present acts as a device write by the presentation engine: any access
// not ordered before it through the wait semaphores is a hazard.
func (v *Validator) QueuePresent(ctx context.Context, queue state.Handle, waits []SemaphoreWait, images []PresentInfo) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	qs, ok := v.queues[queue]
	if !ok {
		log.D(ctx, "present on untracked queue %#x", uint64(queue))
		return false, nil
	}

	signaled := NewSignaledSemaphores(v.signaled)
	batch := newQueueBatchContext(qs)
	if qs.lastBatch != nil {
		batch.importPrevBatch(qs.lastBatch)
	}
	for _, w := range waits {
		sig := signaled.Unsignal(w.Semaphore)
		if sig == nil {
			log.D(ctx, "present wait on unsignaled semaphore %#x", uint64(w.Semaphore))
			continue
		}
		// Present waits release to the presentation engine.
		batch.importSignal(sig, access.SemaphoreScope{
			Queue: batch.QueueID(),
			Exec:  access.StagePresentEngine,
			Scope: access.StageScope(access.StagePresentEngine),
		})
	}
	for _, other := range v.queues {
		if other == qs || other.lastBatch == nil {
			continue
		}
		batch.importAsync(other.lastBatch)
	}

	n := uint64(len(images))
	if n == 0 {
		n = 1
	}
	batch.tagRange = v.reserveTags(n)

	skip := false
	for i, p := range images {
		sc, err := v.tracker.Swapchain(p.Swapchain)
		if err != nil || int(p.ImageIndex) >= len(sc.Images) {
			log.D(ctx, "present of untracked swapchain image %#x[%d]", uint64(p.Swapchain), p.ImageIndex)
			continue
		}
		img := sc.Images[p.ImageIndex]
		tag := batch.tagRange.Begin + access.Tag(i)
		gen := state.NewImageRangeGen(img, img.FullRange())
		if h := batch.ctx.DetectHazard(gen, access.UsagePresent, access.OrderingNone, batch.QueueID()); h.IsHazard() {
			skip = true
			v.report(ctx, HazardReport{
				Hazard:  h,
				Command: record.CmdQueuePresent,
				Queue:   queue,
				Prior:   v.priorRecord(batch, h),
			})
		}
		batch.ctx.UpdateAccessState(state.NewImageRangeGen(img, img.FullRange()),
			access.UsagePresent, access.OrderingNone, tag, batch.QueueID())
		v.presented[presentKey{p.Swapchain, p.ImageIndex}] = &PresentedImage{Image: img, Batch: batch, Tag: tag}
	}

	batch.syncTags[batch.QueueID()] = batch.tagRange.End
	if prev := qs.lastBatch; prev != nil {
		prev.events.Reset()
	}
	qs.lastBatch = batch
	signaled.Resolve()
	return skip, nil
}

// AcquireNextImage records the reacquisition of a presented image. The
// semaphore and fence, when given, export the presentation engine's read
// so later submissions can order against it.
func (v *Validator) AcquireNextImage(ctx context.Context, swapchain state.Handle, imageIndex uint32, semaphore, fence state.Handle) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sc, err := v.tracker.Swapchain(swapchain)
	if err != nil {
		log.D(ctx, "acquire on untracked swapchain %#x", uint64(swapchain))
		return nil
	}
	if int(imageIndex) >= len(sc.Images) {
		return nil
	}
	img := sc.Images[imageIndex]
	tag := v.reserveTags(1).Begin

	key := presentKey{swapchain, imageIndex}
	p := v.presented[key]
	if p != nil {
		// The acquire consumes the presented record; acquiring again
		// without a new present exports nothing.
		delete(v.presented, key)
		// The acquire reads the image after the present completed.
		p.Batch.ctx.UpdateAccessState(state.NewImageRangeGen(img, img.FullRange()),
			access.UsageAcquireRead, access.OrderingNone, tag, p.Batch.QueueID())
		if semaphore != 0 {
			ok := v.signaled.Signal(semaphore, &SemaphoreSignal{
				Batch: p.Batch,
				Scope: access.SemaphoreScope{
					Queue: p.Batch.QueueID(),
					Exec:  access.StagePresentEngine,
					Scope: access.StageScope(access.StagePresentEngine),
				},
			})
			if !ok {
				log.D(ctx, "acquire signal of already signaled semaphore %#x", uint64(semaphore))
			}
		}
	}
	if fence != 0 {
		v.fences[fence] = &FenceSyncState{Fence: fence, AcquireImage: img, AcquireTag: tag}
	}
	return nil
}
