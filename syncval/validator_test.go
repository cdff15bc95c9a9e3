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
	"testing"

	"github.com/zmike/Vulkan-ValidationLayers/core/assert"
	"github.com/zmike/Vulkan-ValidationLayers/core/log"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/record"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

const caps = access.QueueGraphics | access.QueueCompute | access.QueueTransfer

func newTestValidator(cfg Config) (*Validator, *CollectReporter) {
	rep := &CollectReporter{}
	return New(cfg, nil, rep), rep
}

func copyDep() DependencyInfo {
	return DependencyInfo{Memory: []MemoryBarrier{{
		SrcStages: access.StageCopy,
		SrcAccess: access.AccessTransferWrite,
		DstStages: access.StageCopy,
		DstAccess: access.AccessTransferRead | access.AccessTransferWrite,
	}}}
}

func TestRecordingCopyHazard(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 256)
	v.Tracker().AddBuffer(2, 256)
	v.RegisterCommandBuffer(10, caps)

	skip, err := v.CmdCopyBuffer(ctx, 10, 1, 2, []BufferCopy{{Size: 256}})
	assert.For(ctx, "first err").ThatError(err).Succeeded()
	assert.For(ctx, "first").That(skip).Equals(false)

	// Back to back copies to the same destination hazard; the source reads
	// do not.
	skip, _ = v.CmdCopyBuffer(ctx, 10, 1, 2, []BufferCopy{{Size: 256}})
	assert.For(ctx, "second").That(skip).Equals(true)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(1)
	assert.For(ctx, "kind").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardWriteAfterWrite)
	assert.For(ctx, "cmd").That(rep.Reports[0].Command).Equals(record.CmdCopyBuffer)
	assert.For(ctx, "cb").That(rep.Reports[0].CommandBuffer).Equals(state.Handle(10))

	skip, _ = v.CmdPipelineBarrier(ctx, 10, copyDep())
	assert.For(ctx, "barrier").That(skip).Equals(false)
	skip, _ = v.CmdCopyBuffer(ctx, 10, 1, 2, []BufferCopy{{Size: 256}})
	assert.For(ctx, "after barrier").That(skip).Equals(false)
	assert.For(ctx, "no new reports").ThatSlice(rep.Reports).IsLength(1)
}

func TestRegionsOfOneCopyDoNotConflict(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 256)
	v.RegisterCommandBuffer(10, caps)

	// A self copy between disjoint halves is a single command; its read and
	// write are not ordered against each other.
	skip, _ := v.CmdCopyBuffer(ctx, 10, 1, 1, []BufferCopy{{SrcOffset: 0, DstOffset: 128, Size: 128}})
	assert.For(ctx, "self copy").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestSubmitReplayHazardHasProvenance(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)

	_, err := v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	assert.For(ctx, "fill err").ThatError(err).Succeeded()

	submit := []SubmitInfo{{CommandBuffers: []state.Handle{10}}}
	skip, err := v.QueueSubmit(ctx, 100, submit, 0)
	assert.For(ctx, "first err").ThatError(err).Succeeded()
	assert.For(ctx, "first").That(skip).Equals(false)

	// Resubmitting the same fill is a write after write against the first
	// submission; the access log names the conflicting command.
	skip, _ = v.QueueSubmit(ctx, 100, submit, 0)
	assert.For(ctx, "second").That(skip).Equals(true)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(1)
	r := rep.Reports[0]
	assert.For(ctx, "kind").That(r.Hazard.Kind).Equals(access.HazardWriteAfterWrite)
	assert.For(ctx, "cmd").That(r.Command).Equals(record.CmdQueueSubmit)
	assert.For(ctx, "queue").That(r.Queue).Equals(state.Handle(100))
	assert.For(ctx, "prior").That(r.Prior != nil).Equals(true)
	assert.For(ctx, "prior cmd").That(r.Prior.Cmd).Equals(record.CmdFillBuffer)
}

func TestSubmitValidationDisabled(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(Config{})
	v.Tracker().AddBuffer(1, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)

	// With submit scope validation off the resubmission neither reports
	// nor skips; the batch state still advances.
	submit := []SubmitInfo{{CommandBuffers: []state.Handle{10}}}
	skip, err := v.QueueSubmit(ctx, 100, submit, 0)
	assert.For(ctx, "first err").ThatError(err).Succeeded()
	skip, _ = v.QueueSubmit(ctx, 100, submit, 0)
	assert.For(ctx, "second").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestSubmitTagsAreMonotonic(t *testing.T) {
	ctx := log.Testing(t)
	v, _ := newTestValidator(Config{})
	v.Tracker().AddBuffer(1, 64)
	qs := v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)

	submit := []SubmitInfo{{CommandBuffers: []state.Handle{10}}}
	v.QueueSubmit(ctx, 100, submit, 0)
	first := qs.LastBatch().TagRange()
	// Tag zero is reserved.
	assert.For(ctx, "first begin").That(first.Begin).Equals(access.Tag(1))

	v.QueueSubmit(ctx, 100, submit, 0)
	second := qs.LastBatch().TagRange()
	assert.For(ctx, "second begin").That(second.Begin).Equals(first.End)

	// Signal only batches still consume a tag.
	v.QueueSubmit(ctx, 100, []SubmitInfo{{}}, 0)
	third := qs.LastBatch().TagRange()
	assert.For(ctx, "empty batch").That(third.End - third.Begin).Equals(access.Tag(1))
}

func TestCrossQueueSemaphore(t *testing.T) {
	ctx := log.Testing(t)
	setup := func() (*Validator, *CollectReporter) {
		v, rep := newTestValidator(DefaultConfig())
		v.Tracker().AddBuffer(1, 64)
		v.Tracker().AddBuffer(2, 64)
		v.RegisterQueue(100, 0, caps)
		v.RegisterQueue(101, 1, caps)
		v.RegisterCommandBuffer(10, caps)
		v.RegisterCommandBuffer(11, caps)
		v.CmdFillBuffer(ctx, 10, 1, 0, 64)
		v.CmdCopyBuffer(ctx, 11, 1, 2, []BufferCopy{{Size: 64}})
		return v, rep
	}

	// Unsynchronized queues race on the shared buffer.
	v, rep := setup()
	v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 0)
	skip, _ := v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "racing").That(skip).Equals(true)
	assert.For(ctx, "racing kind").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardReadRacingWrite)

	// The semaphore orders the read behind the write.
	v, rep = setup()
	v.QueueSubmit(ctx, 100, []SubmitInfo{{
		CommandBuffers: []state.Handle{10},
		Signals:        []SemaphoreSignalInfo{{Semaphore: 50, Stages: access.StageAllCommands}},
	}}, 0)
	skip, _ = v.QueueSubmit(ctx, 101, []SubmitInfo{{
		Waits:          []SemaphoreWait{{Semaphore: 50, Stages: access.StageAllCommands}},
		CommandBuffers: []state.Handle{11},
	}}, 0)
	assert.For(ctx, "ordered").That(skip).Equals(false)
	assert.For(ctx, "no reports").ThatSlice(rep.Reports).IsLength(0)

	// The wait also floors later async snapshots of the writing queue.
	v.RegisterCommandBuffer(12, caps)
	v.CmdCopyBuffer(ctx, 12, 1, 2, []BufferCopy{{Size: 64}})
	skip, _ = v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{12}}}, 0)
	assert.For(ctx, "still ordered").That(skip).Equals(true)
	// The second copy hazards against the first copy's write of buffer 2 on
	// the same queue, not against the other queue.
	assert.For(ctx, "waw reports").ThatSlice(rep.Reports).IsLength(1)
	assert.For(ctx, "waw").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardWriteAfterWrite)
}

func TestWaitOnUnsignaledSemaphore(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)

	// Waits the validator cannot resolve are skipped, not failed.
	skip, err := v.QueueSubmit(ctx, 100, []SubmitInfo{{
		Waits:          []SemaphoreWait{{Semaphore: 99, Stages: access.StageAllCommands}},
		CommandBuffers: []state.Handle{10},
	}}, 0)
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "skip").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestSuppressBenignStorageWAW(t *testing.T) {
	ctx := log.Testing(t)
	info := DrawInfo{Buffers: []BufferAccess{{Buffer: 1, Offset: 0, Size: 64, Usage: access.UsageComputeStorageWrite}}}

	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.RegisterCommandBuffer(10, caps)
	v.CmdDispatch(ctx, 10, info)
	skip, _ := v.CmdDispatch(ctx, 10, info)
	assert.For(ctx, "suppressed").That(skip).Equals(false)
	assert.For(ctx, "no reports").ThatSlice(rep.Reports).IsLength(0)

	v, rep = newTestValidator(Config{QueueSubmitValidation: true})
	v.Tracker().AddBuffer(1, 64)
	v.RegisterCommandBuffer(10, caps)
	v.CmdDispatch(ctx, 10, info)
	skip, _ = v.CmdDispatch(ctx, 10, info)
	assert.For(ctx, "reported").That(skip).Equals(true)
	assert.For(ctx, "kind").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardWriteAfterWrite)
}

func TestFenceWaitRetiresAccesses(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.Tracker().AddBuffer(2, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterQueue(101, 1, caps)
	v.RegisterCommandBuffer(10, caps)
	v.RegisterCommandBuffer(11, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	v.CmdCopyBuffer(ctx, 11, 1, 2, []BufferCopy{{Size: 64}})

	v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 200)
	v.WaitForFence(ctx, 200)

	// The fill completed; the cross queue read no longer races.
	skip, _ := v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "after fence").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestQueueWaitIdleRetiresFences(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.Tracker().AddBuffer(2, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterQueue(101, 1, caps)
	v.RegisterCommandBuffer(10, caps)
	v.RegisterCommandBuffer(11, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	v.CmdCopyBuffer(ctx, 11, 1, 2, []BufferCopy{{Size: 64}})

	v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 200)
	v.QueueWaitIdle(ctx, 100)
	assert.For(ctx, "fences").That(len(v.fences)).Equals(0)

	skip, _ := v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "after idle").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestDeviceWaitIdle(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.Tracker().AddBuffer(2, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterQueue(101, 1, caps)
	v.RegisterCommandBuffer(10, caps)
	v.RegisterCommandBuffer(11, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	v.CmdCopyBuffer(ctx, 11, 1, 2, []BufferCopy{{Size: 64}})

	v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 0)
	v.DeviceWaitIdle(ctx)

	skip, _ := v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "after idle").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func swapchainInfo() state.ImageInfo {
	return state.ImageInfo{
		Aspects:     state.AspectColor,
		Extent:      state.Extent{Width: 4, Height: 4, Depth: 1},
		MipLevels:   1,
		ArrayLayers: 1,
	}
}

func TestPresentAfterWriteHazard(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddSwapchain(300, []state.Handle{301, 302}, swapchainInfo())
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	img, _ := v.tracker.Image(301)
	v.CmdClearColorImage(ctx, 10, 301, []state.SubresourceRange{img.FullRange()})

	v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 0)

	// Presenting without a wait semaphore races the clear.
	skip, err := v.QueuePresent(ctx, 100, nil, []PresentInfo{{Swapchain: 300}})
	assert.For(ctx, "err").ThatError(err).Succeeded()
	assert.For(ctx, "skip").That(skip).Equals(true)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(1)
	assert.For(ctx, "cmd").That(rep.Reports[0].Command).Equals(record.CmdQueuePresent)
	assert.For(ctx, "kind").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardPresentAfterWrite)
}

func TestWriteAfterPresentHazard(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddSwapchain(300, []state.Handle{301}, swapchainInfo())
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	img, _ := v.tracker.Image(301)
	full := []state.SubresourceRange{img.FullRange()}
	v.CmdClearColorImage(ctx, 10, 301, full)

	v.QueueSubmit(ctx, 100, []SubmitInfo{{
		CommandBuffers: []state.Handle{10},
		Signals:        []SemaphoreSignalInfo{{Semaphore: 50, Stages: access.StageAllCommands}},
	}}, 0)
	v.QueuePresent(ctx, 100, []SemaphoreWait{{Semaphore: 50}}, []PresentInfo{{Swapchain: 300}})

	// Writing the image again without waiting for its reacquisition races
	// the presentation engine.
	v.RegisterCommandBuffer(11, caps)
	v.CmdClearColorImage(ctx, 11, 301, full)
	skip, _ := v.QueueSubmit(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "skip").That(skip).Equals(true)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(1)
	assert.For(ctx, "kind").That(rep.Reports[0].Hazard.Kind).Equals(access.HazardWriteAfterPresent)
}

func TestPresentAcquireCycle(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddSwapchain(300, []state.Handle{301}, swapchainInfo())
	v.RegisterQueue(100, 0, caps)
	v.RegisterCommandBuffer(10, caps)
	img, _ := v.tracker.Image(301)
	full := []state.SubresourceRange{img.FullRange()}
	v.CmdClearColorImage(ctx, 10, 301, full)

	v.QueueSubmit(ctx, 100, []SubmitInfo{{
		CommandBuffers: []state.Handle{10},
		Signals:        []SemaphoreSignalInfo{{Semaphore: 50, Stages: access.StageAllCommands}},
	}}, 0)

	skip, _ := v.QueuePresent(ctx, 100,
		[]SemaphoreWait{{Semaphore: 50}}, []PresentInfo{{Swapchain: 300}})
	assert.For(ctx, "present").That(skip).Equals(false)

	// Reacquire the image; the acquire semaphore exports the presentation
	// engine's read.
	err := v.AcquireNextImage(ctx, 300, 0, 51, 400)
	assert.For(ctx, "acquire err").ThatError(err).Succeeded()

	v.RegisterCommandBuffer(11, caps)
	v.CmdClearColorImage(ctx, 11, 301, full)
	skip, _ = v.QueueSubmit(ctx, 100, []SubmitInfo{{
		Waits:          []SemaphoreWait{{Semaphore: 51, Stages: access.StageAllCommands}},
		CommandBuffers: []state.Handle{11},
	}}, 0)
	assert.For(ctx, "rewrite").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)

	// The acquire fence retires the image's accesses.
	v.WaitForFence(ctx, 400)
}

func TestQueueSubmit2AndFenceStatus(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.Tracker().AddBuffer(2, 64)
	v.RegisterQueue(100, 0, caps)
	v.RegisterQueue(101, 1, caps)
	v.RegisterCommandBuffer(10, caps)
	v.RegisterCommandBuffer(11, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	v.CmdCopyBuffer(ctx, 11, 1, 2, []BufferCopy{{Size: 64}})

	skip, err := v.QueueSubmit2(ctx, 100, []SubmitInfo{{CommandBuffers: []state.Handle{10}}}, 200)
	assert.For(ctx, "submit2 err").ThatError(err).Succeeded()
	assert.For(ctx, "submit2").That(skip).Equals(false)

	// An unsignaled poll synchronizes nothing; a signaled one retires the
	// fence like a wait.
	v.GetFenceStatus(ctx, 200, false)
	assert.For(ctx, "still pending").That(len(v.fences)).Equals(1)
	v.GetFenceStatus(ctx, 200, true)
	assert.For(ctx, "retired").That(len(v.fences)).Equals(0)

	skip, _ = v.QueueSubmit(ctx, 101, []SubmitInfo{{CommandBuffers: []state.Handle{11}}}, 0)
	assert.For(ctx, "after status").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
}

func TestResetCommandBuffer(t *testing.T) {
	ctx := log.Testing(t)
	v, rep := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.RegisterCommandBuffer(10, caps)

	v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	v.ResetCommandBuffer(10)
	skip, _ := v.CmdFillBuffer(ctx, 10, 1, 0, 64)
	assert.For(ctx, "after reset").That(skip).Equals(false)
	assert.For(ctx, "reports").ThatSlice(rep.Reports).IsLength(0)
	assert.For(ctx, "tags").That(v.CommandBuffer(10).TagCount()).Equals(access.Tag(1))
}
