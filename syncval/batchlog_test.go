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

func logRange(begin, end access.Tag) access.TagRange {
	return access.TagRange{Begin: begin, End: end}
}

func TestAccessLogResolvesTags(t *testing.T) {
	ctx := log.Testing(t)
	l := &BatchAccessLog{}
	batch := BatchRecord{Queue: 100, SubmitIndex: 3, BatchIndex: 0}
	l.Insert(batch, 10, logRange(5, 7), []record.CommandRecord{
		{Cmd: record.CmdCopyBuffer, Tag: 0},
		{Cmd: record.CmdFillBuffer, Tag: 1},
	})
	l.Insert(batch, 11, logRange(7, 8), []record.CommandRecord{
		{Cmd: record.CmdDispatch, Tag: 0},
	})

	rec, ok := l.GetRecord(6)
	assert.For(ctx, "found").That(ok).Equals(true)
	assert.For(ctx, "cmd").That(rec.Cmd).Equals(record.CmdFillBuffer)
	assert.For(ctx, "cb").That(rec.CommandBuffer).Equals(state.Handle(10))
	assert.For(ctx, "batch").That(rec.Batch).Equals(batch)

	rec, ok = l.GetRecord(7)
	assert.For(ctx, "second entry").That(ok).Equals(true)
	assert.For(ctx, "second cmd").That(rec.Cmd).Equals(record.CmdDispatch)

	_, ok = l.GetRecord(42)
	assert.For(ctx, "unknown").That(ok).Equals(false)
}

func TestAccessLogInsertKeepsOrder(t *testing.T) {
	ctx := log.Testing(t)
	l := &BatchAccessLog{}
	batch := BatchRecord{Queue: 100}
	// Merging an older log inserts out of order.
	l.Insert(batch, 11, logRange(10, 12), nil)
	l.Insert(batch, 10, logRange(1, 4), nil)
	l.Insert(batch, 12, logRange(6, 8), nil)

	for _, tag := range []access.Tag{2, 7, 11} {
		_, ok := l.GetRecord(tag)
		assert.For(ctx, "tag %d", tag).That(ok).Equals(true)
	}
}

func TestAccessLogTrim(t *testing.T) {
	ctx := log.Testing(t)
	l := &BatchAccessLog{}
	batch := BatchRecord{Queue: 100}
	l.Insert(batch, 10, logRange(1, 4), nil)
	l.Insert(batch, 11, logRange(4, 8), nil)
	l.Insert(batch, 12, logRange(8, 9), nil)

	l.Trim([]access.Tag{5, 8})
	assert.For(ctx, "kept").That(l.Len()).Equals(2)
	_, ok := l.GetRecord(2)
	assert.For(ctx, "trimmed").That(ok).Equals(false)
	_, ok = l.GetRecord(5)
	assert.For(ctx, "live").That(ok).Equals(true)
	_, ok = l.GetRecord(8)
	assert.For(ctx, "live tail").That(ok).Equals(true)
}

func TestSignaledSemaphoresLayering(t *testing.T) {
	ctx := log.Testing(t)
	root := NewSignaledSemaphores(nil)
	sig := &SemaphoreSignal{}
	assert.For(ctx, "signal").That(root.Signal(50, sig)).Equals(true)
	// A binary semaphore holds at most one pending signal.
	assert.For(ctx, "double signal").That(root.Signal(50, &SemaphoreSignal{})).Equals(false)

	child := NewSignaledSemaphores(root)
	assert.For(ctx, "fallthrough").That(child.Lookup(50) == sig).Equals(true)

	// Consuming in the child shadows the parent without mutating it.
	got := child.Unsignal(50)
	assert.For(ctx, "consumed").That(got == sig).Equals(true)
	assert.For(ctx, "shadowed").That(child.Lookup(50) == nil).Equals(true)
	assert.For(ctx, "parent intact").That(root.Lookup(50) == sig).Equals(true)
	// The consumed semaphore can be signaled again through the child.
	assert.For(ctx, "resignal").That(child.Signal(50, sig)).Equals(true)
	child.Unsignal(50)

	sig2 := &SemaphoreSignal{}
	child.Signal(51, sig2)
	assert.For(ctx, "parent unsignaled").That(root.Lookup(51) == nil).Equals(true)

	child.Resolve()
	assert.For(ctx, "resolved unsignal").That(root.Lookup(50) == nil).Equals(true)
	assert.For(ctx, "resolved signal").That(root.Lookup(51) == sig2).Equals(true)
}

func TestValidatorTrimDropsDeadProvenance(t *testing.T) {
	ctx := log.Testing(t)
	v, _ := newTestValidator(DefaultConfig())
	v.Tracker().AddBuffer(1, 64)
	v.RegisterQueue(100, 0, caps)
	qs := v.queues[100]
	v.RegisterCommandBuffer(10, caps)
	v.CmdFillBuffer(ctx, 10, 1, 0, 64)

	submit := []SubmitInfo{{CommandBuffers: []state.Handle{10}}}
	v.QueueSubmit(ctx, 100, submit, 0)
	v.QueueSubmit(ctx, 100, submit, 0)
	// Both fills are retained: the older one as the prior write provenance
	// until the newer write fully shadows it.
	assert.For(ctx, "entries").That(qs.lastBatch.log.Len() > 0).Equals(true)

	// Idling the queue erases every access; trim then drops all provenance.
	v.QueueWaitIdle(ctx, 100)
	assert.For(ctx, "trimmed").That(qs.lastBatch.log.Len()).Equals(0)
}
