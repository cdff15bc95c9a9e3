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

// BufferCopy is one region of a buffer to buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// ImageCopy is one region of an image to image copy or resolve.
type ImageCopy struct {
	SrcRange  state.SubresourceRange
	SrcOffset state.Offset
	DstRange  state.SubresourceRange
	DstOffset state.Offset
	Extent    state.Extent
}

// BufferImageCopy is one region of a buffer to image or image to buffer
// copy.
type BufferImageCopy struct {
	BufferOffset uint64
	ImageRange   state.SubresourceRange
	ImageOffset  state.Offset
	ImageExtent  state.Extent
}

// ImageBlit is one region of a blit. Offsets may be flipped.
type ImageBlit struct {
	SrcRange   state.SubresourceRange
	SrcOffsets [2]state.Offset
	DstRange   state.SubresourceRange
	DstOffsets [2]state.Offset
}

// BufferAccess is one buffer binding a draw or dispatch reads or writes.
type BufferAccess struct {
	Buffer state.Handle
	Offset uint64
	Size   uint64
	Usage  access.Usage
}

// ImageAccess is one image binding a draw or dispatch reads or writes.
type ImageAccess struct {
	Image state.Handle
	Range state.SubresourceRange
	Usage access.Usage
}

// DrawInfo describes the resources bound to a draw or dispatch.
type DrawInfo struct {
	Buffers []BufferAccess
	Images  []ImageAccess
}

// MemoryBarrier is one global memory dependency.
type MemoryBarrier struct {
	SrcStages access.StageFlags
	SrcAccess access.AccessFlags
	DstStages access.StageFlags
	DstAccess access.AccessFlags
}

// BufferMemoryBarrier restricts a dependency to a buffer range.
type BufferMemoryBarrier struct {
	MemoryBarrier
	Buffer state.Handle
	Offset uint64
	Size   uint64
}

// ImageMemoryBarrier restricts a dependency to image subresources,
// optionally with a layout transition.
type ImageMemoryBarrier struct {
	MemoryBarrier
	Image            state.Handle
	Range            state.SubresourceRange
	LayoutTransition bool
}

// DependencyInfo carries the barriers of a synchronization command. The
// legacy and the dependency-info calling conventions share it; the command
// distinguishes them.
type DependencyInfo struct {
	Memory  []MemoryBarrier
	Buffers []BufferMemoryBarrier
	Images  []ImageMemoryBarrier
}

func (v *Validator) cb(ctx context.Context, h state.Handle) *record.CommandBufferAccessContext {
	v.mu.Lock()
	defer v.mu.Unlock()
	cb := v.cbs[h]
	if cb == nil {
		log.D(ctx, "command on untracked command buffer %#x", uint64(h))
	}
	return cb
}

func (v *Validator) buffer(ctx context.Context, h state.Handle) (*state.BufferState, bool) {
	b, err := v.tracker.Buffer(h)
	if err != nil {
		log.D(ctx, "%v", err)
		return nil, false
	}
	return b, true
}

func (v *Validator) image(ctx context.Context, h state.Handle) (*state.ImageState, bool) {
	img, err := v.tracker.Image(h)
	if err != nil {
		log.D(ctx, "%v", err)
		return nil, false
	}
	return img, true
}

func (v *Validator) reportCmd(ctx context.Context, cb *record.CommandBufferAccessContext, cmd record.Command, h access.HazardResult) {
	v.report(ctx, HazardReport{Hazard: h, Command: cmd, CommandBuffer: cb.Handle()})
}

// transferAccess is one resolved access of a transfer command.
type transferAccess struct {
	gen   func() access.RangeGen
	usage access.Usage
}

// recordTransfer validates every access of a transfer command, then records
// them all at one tag. Validation runs before any recording so regions of
// the same command do not hazard against each other.
func (v *Validator) recordTransfer(ctx context.Context, cb *record.CommandBufferAccessContext, cmd record.Command, accesses []transferAccess) bool {
	skip := false
	for _, a := range accesses {
		if h := cb.DetectHazard(a.gen(), a.usage, access.OrderingNone); h.IsHazard() {
			skip = true
			v.reportCmd(ctx, cb, cmd, h)
		}
	}
	tag := cb.NextCommandTag(cmd)
	for _, a := range accesses {
		cb.UpdateAccess(a.gen(), a.usage, access.OrderingNone, tag)
	}
	return skip
}

func bufferGen(b *state.BufferState, offset, size uint64) func() access.RangeGen {
	span := b.Span(offset, size)
	return func() access.RangeGen { return access.NewSingleRangeGen(span) }
}

func imageGen(img *state.ImageState, rng state.SubresourceRange, offset state.Offset, extent state.Extent) func() access.RangeGen {
	return func() access.RangeGen { return state.NewImageRegionGen(img, rng, offset, extent) }
}

func wholeImageGen(img *state.ImageState, rng state.SubresourceRange) func() access.RangeGen {
	return func() access.RangeGen { return state.NewImageRangeGen(img, rng) }
}

// CmdCopyBuffer validates and records a buffer to buffer copy.
func (v *Validator) CmdCopyBuffer(ctx context.Context, cbh, src, dst state.Handle, regions []BufferCopy) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if b, ok := v.buffer(ctx, src); ok {
			accesses = append(accesses, transferAccess{bufferGen(b, r.SrcOffset, r.Size), access.UsageCopyRead})
		}
		if b, ok := v.buffer(ctx, dst); ok {
			accesses = append(accesses, transferAccess{bufferGen(b, r.DstOffset, r.Size), access.UsageCopyWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdCopyBuffer, accesses), nil
}

// CmdCopyImage validates and records an image to image copy.
func (v *Validator) CmdCopyImage(ctx context.Context, cbh, src, dst state.Handle, regions []ImageCopy) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if img, ok := v.image(ctx, src); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.SrcRange, r.SrcOffset, r.Extent), access.UsageCopyRead})
		}
		if img, ok := v.image(ctx, dst); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.DstRange, r.DstOffset, r.Extent), access.UsageCopyWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdCopyImage, accesses), nil
}

// texelCount approximates the buffer footprint of an image region.
func texelCount(e state.Extent) uint64 {
	return uint64(e.Width) * uint64(e.Height) * uint64(e.Depth)
}

// CmdCopyBufferToImage validates and records a buffer to image copy.
func (v *Validator) CmdCopyBufferToImage(ctx context.Context, cbh, src, dst state.Handle, regions []BufferImageCopy) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if b, ok := v.buffer(ctx, src); ok {
			accesses = append(accesses, transferAccess{bufferGen(b, r.BufferOffset, texelCount(r.ImageExtent)), access.UsageCopyRead})
		}
		if img, ok := v.image(ctx, dst); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.ImageRange, r.ImageOffset, r.ImageExtent), access.UsageCopyWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdCopyBufferToImage, accesses), nil
}

// CmdCopyImageToBuffer validates and records an image to buffer copy.
func (v *Validator) CmdCopyImageToBuffer(ctx context.Context, cbh, src, dst state.Handle, regions []BufferImageCopy) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if img, ok := v.image(ctx, src); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.ImageRange, r.ImageOffset, r.ImageExtent), access.UsageCopyRead})
		}
		if b, ok := v.buffer(ctx, dst); ok {
			accesses = append(accesses, transferAccess{bufferGen(b, r.BufferOffset, texelCount(r.ImageExtent)), access.UsageCopyWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdCopyImageToBuffer, accesses), nil
}

// blitBounds normalizes a possibly flipped offset pair into an origin and
// extent.
func blitBounds(o [2]state.Offset) (state.Offset, state.Extent) {
	min := func(a, b uint32) uint32 {
		if a < b {
			return a
		}
		return b
	}
	max := func(a, b uint32) uint32 {
		if a > b {
			return a
		}
		return b
	}
	origin := state.Offset{X: min(o[0].X, o[1].X), Y: min(o[0].Y, o[1].Y), Z: min(o[0].Z, o[1].Z)}
	return origin, state.Extent{
		Width:  max(o[0].X, o[1].X) - origin.X,
		Height: max(o[0].Y, o[1].Y) - origin.Y,
		Depth:  max(o[0].Z, o[1].Z) - origin.Z,
	}
}

// CmdBlitImage validates and records a blit.
func (v *Validator) CmdBlitImage(ctx context.Context, cbh, src, dst state.Handle, regions []ImageBlit) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if img, ok := v.image(ctx, src); ok {
			off, ext := blitBounds(r.SrcOffsets)
			accesses = append(accesses, transferAccess{imageGen(img, r.SrcRange, off, ext), access.UsageBlitRead})
		}
		if img, ok := v.image(ctx, dst); ok {
			off, ext := blitBounds(r.DstOffsets)
			accesses = append(accesses, transferAccess{imageGen(img, r.DstRange, off, ext), access.UsageBlitWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdBlitImage, accesses), nil
}

// CmdResolveImage validates and records a multisample resolve.
func (v *Validator) CmdResolveImage(ctx context.Context, cbh, src, dst state.Handle, regions []ImageCopy) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range regions {
		if img, ok := v.image(ctx, src); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.SrcRange, r.SrcOffset, r.Extent), access.UsageResolveRead})
		}
		if img, ok := v.image(ctx, dst); ok {
			accesses = append(accesses, transferAccess{imageGen(img, r.DstRange, r.DstOffset, r.Extent), access.UsageResolveWrite})
		}
	}
	return v.recordTransfer(ctx, cb, record.CmdResolveImage, accesses), nil
}

func (v *Validator) clearImage(ctx context.Context, cbh, image state.Handle, cmd record.Command, ranges []state.SubresourceRange) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	img, ok := v.image(ctx, image)
	if !ok {
		return false, nil
	}
	var accesses []transferAccess
	for _, r := range ranges {
		accesses = append(accesses, transferAccess{wholeImageGen(img, r), access.UsageClearWrite})
	}
	return v.recordTransfer(ctx, cb, cmd, accesses), nil
}

// CmdClearColorImage validates and records a color clear.
func (v *Validator) CmdClearColorImage(ctx context.Context, cbh, image state.Handle, ranges []state.SubresourceRange) (bool, error) {
	return v.clearImage(ctx, cbh, image, record.CmdClearColorImage, ranges)
}

// CmdClearDepthStencilImage validates and records a depth stencil clear.
func (v *Validator) CmdClearDepthStencilImage(ctx context.Context, cbh, image state.Handle, ranges []state.SubresourceRange) (bool, error) {
	return v.clearImage(ctx, cbh, image, record.CmdClearDepthStencilImage, ranges)
}

func (v *Validator) bufferWrite(ctx context.Context, cbh, buffer state.Handle, cmd record.Command, offset, size uint64, u access.Usage) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	b, ok := v.buffer(ctx, buffer)
	if !ok {
		return false, nil
	}
	return v.recordTransfer(ctx, cb, cmd, []transferAccess{{bufferGen(b, offset, size), u}}), nil
}

// CmdFillBuffer validates and records a buffer fill.
func (v *Validator) CmdFillBuffer(ctx context.Context, cbh, buffer state.Handle, offset, size uint64) (bool, error) {
	return v.bufferWrite(ctx, cbh, buffer, record.CmdFillBuffer, offset, size, access.UsageClearWrite)
}

// CmdUpdateBuffer validates and records an inline buffer update.
func (v *Validator) CmdUpdateBuffer(ctx context.Context, cbh, buffer state.Handle, offset, size uint64) (bool, error) {
	return v.bufferWrite(ctx, cbh, buffer, record.CmdUpdateBuffer, offset, size, access.UsageClearWrite)
}

// CmdCopyQueryPoolResults validates and records the results write.
func (v *Validator) CmdCopyQueryPoolResults(ctx context.Context, cbh, dstBuffer state.Handle, offset, size uint64) (bool, error) {
	return v.bufferWrite(ctx, cbh, dstBuffer, record.CmdCopyQueryPoolResults, offset, size, access.UsageCopyWrite)
}

// CmdWriteBufferMarker validates and records a 4 byte marker write.
func (v *Validator) CmdWriteBufferMarker(ctx context.Context, cbh, buffer state.Handle, offset uint64) (bool, error) {
	return v.bufferWrite(ctx, cbh, buffer, record.CmdWriteBufferMarker, offset, 4, access.UsageCopyWrite)
}

// suppressedWAW returns true for write-after-write hazards between two
// identical shader storage writes when suppression is configured.
func (v *Validator) suppressedWAW(h access.HazardResult) bool {
	if !v.cfg.SuppressBenignWAW || h.Kind != access.HazardWriteAfterWrite || h.Usage != h.PriorUsage {
		return false
	}
	return h.Usage.Info().Access == access.AccessShaderStorageWrite
}

// recordDraw validates and records the bound resource accesses of a draw
// or dispatch at tag.
func (v *Validator) recordDraw(ctx context.Context, cb *record.CommandBufferAccessContext, cmd record.Command, info DrawInfo, tag access.Tag) bool {
	skip := false
	check := func(gen func() access.RangeGen, u access.Usage) {
		if h := cb.DetectHazard(gen(), u, access.OrderingNone); h.IsHazard() && !v.suppressedWAW(h) {
			skip = true
			v.reportCmd(ctx, cb, cmd, h)
		}
		cb.UpdateAccess(gen(), u, access.OrderingNone, tag)
	}
	for _, a := range info.Buffers {
		if b, ok := v.buffer(ctx, a.Buffer); ok {
			check(bufferGen(b, a.Offset, a.Size), a.Usage)
		}
	}
	for _, a := range info.Images {
		if img, ok := v.image(ctx, a.Image); ok {
			check(wholeImageGen(img, a.Range), a.Usage)
		}
	}
	return skip
}

func (v *Validator) draw(ctx context.Context, cbh state.Handle, cmd record.Command, info DrawInfo, indirect []BufferAccess) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	tag := cb.NextCommandTag(cmd)
	skip := false
	for _, a := range indirect {
		if b, ok := v.buffer(ctx, a.Buffer); ok {
			if h := cb.DetectHazard(bufferGen(b, a.Offset, a.Size)(), a.Usage, access.OrderingNone); h.IsHazard() {
				skip = true
				v.reportCmd(ctx, cb, cmd, h)
			}
			cb.UpdateAccess(bufferGen(b, a.Offset, a.Size)(), a.Usage, access.OrderingNone, tag)
		}
	}
	if v.recordDraw(ctx, cb, cmd, info, tag) {
		skip = true
	}
	for _, h := range cb.DrawAttachmentAccesses(tag) {
		skip = true
		v.reportCmd(ctx, cb, cmd, h)
	}
	return skip, nil
}

// CmdDraw validates and records a draw.
func (v *Validator) CmdDraw(ctx context.Context, cbh state.Handle, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDraw, info, nil)
}

// CmdDrawIndexed validates and records an indexed draw.
func (v *Validator) CmdDrawIndexed(ctx context.Context, cbh state.Handle, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDrawIndexed, info, nil)
}

// CmdDrawIndirect validates and records an indirect draw.
func (v *Validator) CmdDrawIndirect(ctx context.Context, cbh, buffer state.Handle, offset uint64, drawCount, stride uint32, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDrawIndirect, info, []BufferAccess{
		{Buffer: buffer, Offset: offset, Size: uint64(drawCount) * uint64(stride), Usage: access.UsageDrawIndirectRead},
	})
}

// CmdDrawIndexedIndirect validates and records an indexed indirect draw.
func (v *Validator) CmdDrawIndexedIndirect(ctx context.Context, cbh, buffer state.Handle, offset uint64, drawCount, stride uint32, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDrawIndexedIndirect, info, []BufferAccess{
		{Buffer: buffer, Offset: offset, Size: uint64(drawCount) * uint64(stride), Usage: access.UsageDrawIndirectRead},
	})
}

// CmdDrawIndirectCount validates and records a count buffer driven draw.
func (v *Validator) CmdDrawIndirectCount(ctx context.Context, cbh, buffer state.Handle, offset uint64, countBuffer state.Handle, countOffset uint64, maxDrawCount, stride uint32, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDrawIndirectCount, info, []BufferAccess{
		{Buffer: buffer, Offset: offset, Size: uint64(maxDrawCount) * uint64(stride), Usage: access.UsageDrawIndirectRead},
		{Buffer: countBuffer, Offset: countOffset, Size: 4, Usage: access.UsageDrawIndirectRead},
	})
}

// CmdDispatch validates and records a dispatch.
func (v *Validator) CmdDispatch(ctx context.Context, cbh state.Handle, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDispatch, info, nil)
}

// CmdDispatchIndirect validates and records an indirect dispatch.
func (v *Validator) CmdDispatchIndirect(ctx context.Context, cbh, buffer state.Handle, offset uint64, info DrawInfo) (bool, error) {
	return v.draw(ctx, cbh, record.CmdDispatchIndirect, info, []BufferAccess{
		{Buffer: buffer, Offset: offset, Size: 12, Usage: access.UsageDrawIndirectRead},
	})
}

// resolveBarriers converts application barriers into the internal barrier
// form, resolving resource handles. Unknown handles drop the individual
// barrier.
func (v *Validator) resolveBarriers(ctx context.Context, caps access.QueueFlags, dep DependencyInfo) ([]access.Barrier, []record.BufferBarrier, []record.ImageBarrier) {
	globals := make([]access.Barrier, 0, len(dep.Memory))
	for _, m := range dep.Memory {
		globals = append(globals, access.NewBarrier(caps, m.SrcStages, m.SrcAccess, m.DstStages, m.DstAccess))
	}
	var buffers []record.BufferBarrier
	for _, bb := range dep.Buffers {
		b, ok := v.buffer(ctx, bb.Buffer)
		if !ok {
			continue
		}
		buffers = append(buffers, record.BufferBarrier{
			Span:    b.Span(bb.Offset, bb.Size),
			Barrier: access.NewBarrier(caps, bb.SrcStages, bb.SrcAccess, bb.DstStages, bb.DstAccess),
		})
	}
	var images []record.ImageBarrier
	for _, ib := range dep.Images {
		img, ok := v.image(ctx, ib.Image)
		if !ok {
			continue
		}
		images = append(images, record.ImageBarrier{
			Spans:            access.CollectSpans(state.NewImageRangeGen(img, ib.Range)),
			Barrier:          access.NewBarrier(caps, ib.SrcStages, ib.SrcAccess, ib.DstStages, ib.DstAccess),
			LayoutTransition: ib.LayoutTransition,
		})
	}
	return globals, buffers, images
}

func (v *Validator) pipelineBarrier(ctx context.Context, cbh state.Handle, cmd record.Command, dep DependencyInfo) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	globals, buffers, images := v.resolveBarriers(ctx, cb.QueueCaps(), dep)
	op := record.NewPipelineBarrierOp(cmd, globals, buffers, images)
	skip := false
	if h := cb.ValidateSyncOp(op); h.IsHazard() {
		skip = true
		v.reportCmd(ctx, cb, cmd, h)
	}
	cb.RecordSyncOp(op)
	return skip, nil
}

// CmdPipelineBarrier validates and records a legacy pipeline barrier.
func (v *Validator) CmdPipelineBarrier(ctx context.Context, cbh state.Handle, dep DependencyInfo) (bool, error) {
	return v.pipelineBarrier(ctx, cbh, record.CmdPipelineBarrier, dep)
}

// CmdPipelineBarrier2 validates and records a dependency-info barrier.
func (v *Validator) CmdPipelineBarrier2(ctx context.Context, cbh state.Handle, dep DependencyInfo) (bool, error) {
	return v.pipelineBarrier(ctx, cbh, record.CmdPipelineBarrier2, dep)
}

// CmdSetEvent records an event set with the legacy stage mask convention.
func (v *Validator) CmdSetEvent(ctx context.Context, cbh, event state.Handle, srcStages access.StageFlags) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	scope := access.MakeSrcScope(cb.QueueCaps(), srcStages)
	scopeAccess := access.AccessScope(scope.Expanded, access.ValidAccesses(scope.Expanded))
	cb.RecordSyncOp(record.NewSetEventOp(record.CmdSetEvent, event, scope, scopeAccess))
	return false, nil
}

// CmdSetEvent2 records an event set whose scope is the union of the
// dependency info's source scopes.
func (v *Validator) CmdSetEvent2(ctx context.Context, cbh, event state.Handle, dep DependencyInfo) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	var stages access.StageFlags
	var accesses access.AccessFlags
	for _, m := range dep.Memory {
		stages |= m.SrcStages
		accesses |= m.SrcAccess
	}
	for _, b := range dep.Buffers {
		stages |= b.SrcStages
		accesses |= b.SrcAccess
	}
	for _, i := range dep.Images {
		stages |= i.SrcStages
		accesses |= i.SrcAccess
	}
	scope := access.MakeSrcScope(cb.QueueCaps(), stages)
	scopeAccess := access.AccessScope(scope.Expanded, accesses&scope.ValidAccesses)
	cb.RecordSyncOp(record.NewSetEventOp(record.CmdSetEvent2, event, scope, scopeAccess))
	return false, nil
}

// CmdResetEvent records an event reset.
func (v *Validator) CmdResetEvent(ctx context.Context, cbh, event state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	cb.RecordSyncOp(record.NewResetEventOp(record.CmdResetEvent, event))
	return false, nil
}

// CmdResetEvent2 records an event reset in the dependency-info convention.
func (v *Validator) CmdResetEvent2(ctx context.Context, cbh, event state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	cb.RecordSyncOp(record.NewResetEventOp(record.CmdResetEvent2, event))
	return false, nil
}

func (v *Validator) waitEvents(ctx context.Context, cbh state.Handle, cmd record.Command, events []state.Handle, srcStages access.StageFlags, dep DependencyInfo) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	globals, buffers, images := v.resolveBarriers(ctx, cb.QueueCaps(), dep)
	op := record.NewWaitEventsOp(cmd, events, srcStages, globals, buffers, images)
	for _, ig := range op.IgnoredEvents(cb) {
		log.W(ctx, "%v: event %#x wait ignored: %v", cmd, uint64(ig.Event), ig.Reason)
	}
	skip := false
	if h := cb.ValidateSyncOp(op); h.IsHazard() {
		skip = true
		v.reportCmd(ctx, cb, cmd, h)
	}
	cb.RecordSyncOp(op)
	return skip, nil
}

// CmdWaitEvents validates and records a legacy event wait.
func (v *Validator) CmdWaitEvents(ctx context.Context, cbh state.Handle, events []state.Handle, srcStages access.StageFlags, dep DependencyInfo) (bool, error) {
	return v.waitEvents(ctx, cbh, record.CmdWaitEvents, events, srcStages, dep)
}

// CmdWaitEvents2 validates and records a dependency-info event wait. Each
// event pairs with the dependency info at the same index.
func (v *Validator) CmdWaitEvents2(ctx context.Context, cbh state.Handle, events []state.Handle, deps []DependencyInfo) (bool, error) {
	var merged DependencyInfo
	var stages access.StageFlags
	for _, d := range deps {
		merged.Memory = append(merged.Memory, d.Memory...)
		merged.Buffers = append(merged.Buffers, d.Buffers...)
		merged.Images = append(merged.Images, d.Images...)
		for _, m := range d.Memory {
			stages |= m.SrcStages
		}
		for _, b := range d.Buffers {
			stages |= b.SrcStages
		}
		for _, i := range d.Images {
			stages |= i.SrcStages
		}
	}
	return v.waitEvents(ctx, cbh, record.CmdWaitEvents2, events, stages, merged)
}

// CmdBeginRenderPass validates and records the start of a render pass
// instance.
func (v *Validator) CmdBeginRenderPass(ctx context.Context, cbh state.Handle, info *record.RenderPassInfo) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	skip := false
	for _, h := range cb.BeginRenderPass(record.CmdBeginRenderPass, info) {
		skip = true
		v.reportCmd(ctx, cb, record.CmdBeginRenderPass, h)
	}
	return skip, nil
}

// CmdNextSubpass validates and records a subpass transition.
func (v *Validator) CmdNextSubpass(ctx context.Context, cbh state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	skip := false
	for _, h := range cb.NextSubpass(record.CmdNextSubpass) {
		skip = true
		v.reportCmd(ctx, cb, record.CmdNextSubpass, h)
	}
	return skip, nil
}

// CmdEndRenderPass validates and records the end of the instance.
func (v *Validator) CmdEndRenderPass(ctx context.Context, cbh state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	skip := false
	for _, h := range cb.EndRenderPass(record.CmdEndRenderPass) {
		skip = true
		v.reportCmd(ctx, cb, record.CmdEndRenderPass, h)
	}
	return skip, nil
}

// CmdBeginRendering validates and records the start of a dynamic rendering
// instance: a single subpass with no dependencies.
func (v *Validator) CmdBeginRendering(ctx context.Context, cbh state.Handle, info *record.RenderPassInfo) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	info.SubpassCount = 1
	info.Dependencies = nil
	skip := false
	for _, h := range cb.BeginRenderPass(record.CmdBeginRendering, info) {
		skip = true
		v.reportCmd(ctx, cb, record.CmdBeginRendering, h)
	}
	return skip, nil
}

// CmdEndRendering validates and records the end of a dynamic rendering
// instance.
func (v *Validator) CmdEndRendering(ctx context.Context, cbh state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	skip := false
	for _, h := range cb.EndRenderPass(record.CmdEndRendering) {
		skip = true
		v.reportCmd(ctx, cb, record.CmdEndRendering, h)
	}
	return skip, nil
}

// CmdExecuteCommands validates and records the execution of secondary
// command buffers within the primary.
func (v *Validator) CmdExecuteCommands(ctx context.Context, cbh state.Handle, secondaries []state.Handle) (bool, error) {
	cb := v.cb(ctx, cbh)
	if cb == nil {
		return false, nil
	}
	skip := false
	for _, sh := range secondaries {
		sec := v.cb(ctx, sh)
		if sec == nil {
			continue
		}
		for _, h := range cb.ValidateExecuteCommands(sec) {
			skip = true
			v.reportCmd(ctx, cb, record.CmdExecuteCommands, h)
		}
		cb.RecordExecuteCommands(sec)
	}
	return skip, nil
}
