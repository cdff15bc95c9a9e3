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

package access

import (
	"testing"

	"github.com/zmike/Vulkan-ValidationLayers/core/assert"
	"github.com/zmike/Vulkan-ValidationLayers/core/log"
	"github.com/zmike/Vulkan-ValidationLayers/core/math/interval"
)

func span(start, end uint64) interval.U64Span {
	return interval.U64Span{Start: start, End: end}
}

func TestContextPartialOverlap(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 512)), UsageCopyWrite, OrderingNone, 1, 0)

	// Only [256, 512) overlaps the write.
	h := c.DetectHazard(NewSingleRangeGen(span(256, 1024)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "kind").That(h.Kind).Equals(HazardReadAfterWrite)
	assert.For(ctx, "range").That(h.Range).Equals(span(256, 512))

	h = c.DetectHazard(NewSingleRangeGen(span(512, 1024)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "disjoint").That(h.IsHazard()).Equals(false)
}

func TestContextRangedBarrier(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 1024)), UsageCopyWrite, OrderingNone, 1, 0)

	b := NewBarrier(caps, StageCopy, AccessTransferWrite, StageCopy, AccessTransferRead)
	c.ApplyBarriers(NewSingleRangeGen(span(0, 512)), []Barrier{b}, false, 2, 0)

	h := c.DetectHazard(NewSingleRangeGen(span(0, 512)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "guarded half").That(h.IsHazard()).Equals(false)
	h = c.DetectHazard(NewSingleRangeGen(span(512, 1024)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "unguarded half").That(h.Kind).Equals(HazardReadAfterWrite)
}

func TestContextGlobalBarrier(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 1, 0)
	c.UpdateAccessState(NewSingleRangeGen(span(100, 164)), UsageBlitWrite, OrderingNone, 2, 0)

	b := NewBarrier(caps, StageAllTransfer, AccessTransferWrite, StageAllTransfer, AccessTransferRead)
	c.ApplyGlobalBarriers([]Barrier{b}, 3, 0)

	h := c.DetectHazard(NewSingleRangeGen(span(0, 164)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "all guarded").That(h.IsHazard()).Equals(false)
}

func TestContextCloneIsSnapshot(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 1, 0)

	snap := c.Clone()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageBlitWrite, OrderingNone, 2, 0)

	assert.For(ctx, "snapshot write").That(snap.StateAt(0).LastWrite().Usage).Equals(UsageCopyWrite)
	assert.For(ctx, "live write").That(c.StateAt(0).LastWrite().Usage).Equals(UsageBlitWrite)
}

func TestContextAsyncHazard(t *testing.T) {
	ctx := log.Testing(t)
	sibling := NewAccessContext()
	sibling.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 10, 1)

	c := NewAccessContext()
	c.AddAsyncContext(sibling, 5)

	h := c.DetectHazard(NewSingleRangeGen(span(0, 64)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "race").That(h.Kind).Equals(HazardReadRacingWrite)

	// With the floor above the sibling write, the access was synchronized.
	c2 := NewAccessContext()
	c2.AddAsyncContext(sibling, 11)
	h = c2.DetectHazard(NewSingleRangeGen(span(0, 64)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "floored").That(h.IsHazard()).Equals(false)
}

func TestResolveFromContext(t *testing.T) {
	ctx := log.Testing(t)
	from := NewAccessContext()
	from.UpdateAccessState(NewSingleRangeGen(span(0, 128)), UsageCopyWrite, OrderingNone, 1, QueueIDInvalid)

	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(64, 192)), UsageBlitWrite, OrderingNone, 50, 2)

	c.ResolveFromContext(from, nil, func(s *ResourceAccessState) {
		s.OffsetTags(100)
		s.SetQueueID(3)
	})

	// [0, 64): imported only.
	s := c.StateAt(0)
	assert.For(ctx, "imported usage").That(s.LastWrite().Usage).Equals(UsageCopyWrite)
	assert.For(ctx, "imported tag").That(s.LastWrite().Tag).Equals(Tag(101))
	assert.For(ctx, "imported queue").That(s.LastWrite().Queue).Equals(QueueID(3))
	// [64, 128): merged; the imported write is newer.
	s = c.StateAt(64)
	assert.For(ctx, "merged usage").That(s.LastWrite().Usage).Equals(UsageCopyWrite)
	// [128, 192): untouched.
	s = c.StateAt(128)
	assert.For(ctx, "existing usage").That(s.LastWrite().Usage).Equals(UsageBlitWrite)

	// The source context is not modified.
	assert.For(ctx, "source tag").That(from.StateAt(0).LastWrite().Tag).Equals(Tag(1))
}

func TestDetectFirstUseHazard(t *testing.T) {
	ctx := log.Testing(t)
	recorded := NewAccessContext()
	recorded.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyRead, OrderingNone, 0, QueueIDInvalid)
	recorded.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 1, QueueIDInvalid)

	exec := NewAccessContext()
	exec.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 5, 0)

	h := recorded.DetectFirstUseHazard(0, TagRange{Begin: 0, End: 2}, exec)
	assert.For(ctx, "first read hazards").That(h.Kind).Equals(HazardReadAfterWrite)

	// Restricting the replay window to the write skips the read.
	h = recorded.DetectFirstUseHazard(0, TagRange{Begin: 1, End: 2}, exec)
	assert.For(ctx, "window").That(h.Kind).Equals(HazardWriteAfterWrite)
}

func TestEventBarrierScopeCutoff(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 64)), UsageCopyWrite, OrderingNone, 1, 0)

	// Event set at tag 2; a later write is outside its first scope.
	c.UpdateAccessState(NewSingleRangeGen(span(64, 128)), UsageCopyWrite, OrderingNone, 3, 0)

	b := NewBarrier(caps, StageCopy, AccessTransferWrite, StageCopy, AccessTransferRead)
	c.ApplyEventBarriers([]Barrier{b}, 2, 4, 0)

	h := c.DetectHazard(NewSingleRangeGen(span(0, 64)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "in first scope").That(h.IsHazard()).Equals(false)
	h = c.DetectHazard(NewSingleRangeGen(span(64, 128)), UsageCopyRead, OrderingNone, 0)
	assert.For(ctx, "after set").That(h.Kind).Equals(HazardReadAfterWrite)
}

func TestEntryGenClipsToMap(t *testing.T) {
	ctx := log.Testing(t)
	c := NewAccessContext()
	c.UpdateAccessState(NewSingleRangeGen(span(0, 10)), UsageCopyWrite, OrderingNone, 1, 0)
	c.UpdateAccessState(NewSingleRangeGen(span(20, 30)), UsageCopyWrite, OrderingNone, 2, 0)

	eg := NewEntryGen(&c.accesses, NewSingleRangeGen(span(5, 25)))
	var got []interval.U64Span
	for e, ok := eg.Next(); ok; e, ok = eg.Next() {
		got = append(got, e.Span)
	}
	assert.For(ctx, "entries").ThatSlice(got).Equals([]interval.U64Span{span(5, 10), span(20, 25)})
}
