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

// LoadOp is the load operation of an attachment.
type LoadOp int32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

// StoreOp is the store operation of an attachment.
type StoreOp int32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
	StoreOpNone
)

// SubpassExternal marks a dependency edge to outside the render pass.
const SubpassExternal = int32(-1)

// Attachment describes one render pass attachment.
type Attachment struct {
	View         *state.ImageViewState
	DepthStencil bool
	Load         LoadOp
	Store        StoreOp
	// LayoutTransition is set when the initial layout differs from the
	// first subpass layout.
	LayoutTransition bool
}

// SubpassDependency is a resolved render pass dependency edge.
type SubpassDependency struct {
	SrcSubpass int32
	DstSubpass int32
	Barrier    access.Barrier
}

// RenderPassInfo describes a render pass instance: its attachments, the
// number of subpasses and the declared dependencies. Dynamic rendering is
// expressed as a single subpass with no dependencies.
type RenderPassInfo struct {
	Attachments  []Attachment
	SubpassCount int
	Dependencies []SubpassDependency
}

// RenderPassAccessContext tracks the active render pass instance of a
// recording.
type RenderPassAccessContext struct {
	info    *RenderPassInfo
	subpass int
}

// Subpass returns the current subpass index.
func (rp *RenderPassAccessContext) Subpass() int { return rp.subpass }

// Info returns the instance description.
func (rp *RenderPassAccessContext) Info() *RenderPassInfo { return rp.info }

func (a *Attachment) gen() access.RangeGen {
	return state.NewImageRangeGen(a.View.Image, a.View.Range)
}

// loadUsage returns the access performed by the attachment's load op.
func (a *Attachment) loadUsage() (access.Usage, access.Ordering) {
	if a.DepthStencil {
		if a.Load == LoadOpLoad {
			return access.UsageDepthStencilEarlyRead, access.OrderingDepthStencilAttachment
		}
		return access.UsageDepthStencilEarlyWrite, access.OrderingDepthStencilAttachment
	}
	if a.Load == LoadOpLoad {
		return access.UsageColorAttachmentRead, access.OrderingColorAttachment
	}
	return access.UsageColorAttachmentWrite, access.OrderingColorAttachment
}

// storeUsage returns the access performed by the attachment's store op, or
// UsageNone for StoreOpNone.
func (a *Attachment) storeUsage() (access.Usage, access.Ordering) {
	if a.Store == StoreOpNone {
		return access.UsageNone, access.OrderingNone
	}
	if a.DepthStencil {
		return access.UsageDepthStencilLateWrite, access.OrderingDepthStencilAttachment
	}
	return access.UsageColorAttachmentWrite, access.OrderingColorAttachment
}

// drawUsage returns the access performed on the attachment by a draw.
func (a *Attachment) drawUsage() (access.Usage, access.Ordering) {
	if a.DepthStencil {
		return access.UsageDepthStencilLateWrite, access.OrderingDepthStencilAttachment
	}
	return access.UsageColorAttachmentWrite, access.OrderingColorAttachment
}

// renderPassBarrierOp applies the dependency barriers crossing a subpass
// boundary. It is recorded as a sync op so the barriers also replay
// against earlier batches at submit time.
type renderPassBarrierOp struct {
	cmd  Command
	info *RenderPassInfo
	// edges selected: src and dst subpass of the boundary being crossed;
	// SubpassExternal selects the external edges.
	src int32
	dst int32
}

func (op *renderPassBarrierOp) Cmd() Command { return op.cmd }

func (op *renderPassBarrierOp) selected() []SubpassDependency {
	var out []SubpassDependency
	for _, d := range op.info.Dependencies {
		if d.SrcSubpass == op.src && d.DstSubpass == op.dst {
			out = append(out, d)
		}
	}
	return out
}

func (op *renderPassBarrierOp) ReplayValidate(t ReplayTarget) access.HazardResult {
	if op.src != SubpassExternal {
		return access.HazardResult{}
	}
	// Initial layout transitions must be in the source scope of the
	// external dependency.
	deps := op.selected()
	for i := range op.info.Attachments {
		a := &op.info.Attachments[i]
		if !a.LayoutTransition {
			continue
		}
		for _, d := range deps {
			h := t.CurrentContext().DetectBarrierHazard(a.gen(),
				access.UsageImageLayoutTransition, d.Barrier.Src.Exec, d.Barrier.SrcScope)
			if h.IsHazard() {
				return h
			}
		}
	}
	return access.HazardResult{}
}

func (op *renderPassBarrierOp) ReplayRecord(t ReplayTarget, tag access.Tag) {
	ctx := t.CurrentContext()
	queue := t.QueueID()
	deps := op.selected()
	if len(deps) == 0 {
		return
	}
	barriers := make([]access.Barrier, len(deps))
	for i, d := range deps {
		barriers[i] = d.Barrier
	}
	ctx.ApplyGlobalBarriers(barriers, tag, queue)
	if op.src == SubpassExternal {
		for i := range op.info.Attachments {
			a := &op.info.Attachments[i]
			if a.LayoutTransition {
				ctx.ApplyBarriers(a.gen(), barriers, true, tag, queue)
			}
		}
	}
}

// BeginRenderPass validates and records the start of a render pass
// instance: external dependencies, initial layout transitions and load op
// accesses.
func (cb *CommandBufferAccessContext) BeginRenderPass(cmd Command, info *RenderPassInfo) []access.HazardResult {
	var hazards []access.HazardResult
	op := &renderPassBarrierOp{cmd: cmd, info: info, src: SubpassExternal, dst: 0}
	if h := cb.ValidateSyncOp(op); h.IsHazard() {
		hazards = append(hazards, h)
	}
	tag := cb.RecordSyncOp(op)
	for i := range info.Attachments {
		a := &info.Attachments[i]
		u, ordering := a.loadUsage()
		if h := cb.DetectHazard(a.gen(), u, ordering); h.IsHazard() {
			hazards = append(hazards, h)
		}
		cb.UpdateAccess(a.gen(), u, ordering, tag)
	}
	cb.rp = &RenderPassAccessContext{info: info}
	return hazards
}

// NextSubpass validates and records a subpass boundary.
func (cb *CommandBufferAccessContext) NextSubpass(cmd Command) []access.HazardResult {
	rp := cb.rp
	if rp == nil {
		return nil
	}
	op := &renderPassBarrierOp{cmd: cmd, info: rp.info, src: int32(rp.subpass), dst: int32(rp.subpass + 1)}
	var hazards []access.HazardResult
	if h := cb.ValidateSyncOp(op); h.IsHazard() {
		hazards = append(hazards, h)
	}
	cb.RecordSyncOp(op)
	rp.subpass++
	return hazards
}

// EndRenderPass validates and records the end of the instance: store op
// accesses and external dependencies.
func (cb *CommandBufferAccessContext) EndRenderPass(cmd Command) []access.HazardResult {
	rp := cb.rp
	if rp == nil {
		return nil
	}
	var hazards []access.HazardResult
	tag := cb.NextCommandTag(cmd)
	for i := range rp.info.Attachments {
		a := &rp.info.Attachments[i]
		u, ordering := a.storeUsage()
		if u == access.UsageNone {
			continue
		}
		if h := cb.DetectHazard(a.gen(), u, ordering); h.IsHazard() {
			hazards = append(hazards, h)
		}
		cb.UpdateAccess(a.gen(), u, ordering, tag)
	}
	op := &renderPassBarrierOp{cmd: cmd, info: rp.info, src: int32(rp.subpass), dst: SubpassExternal}
	if h := cb.ValidateSyncOp(op); h.IsHazard() {
		hazards = append(hazards, h)
	}
	cb.RecordSyncOp(op)
	cb.rp = nil
	return hazards
}

// DrawAttachmentAccesses validates and records the attachment accesses of
// a draw at tag.
func (cb *CommandBufferAccessContext) DrawAttachmentAccesses(tag access.Tag) []access.HazardResult {
	rp := cb.rp
	if rp == nil {
		return nil
	}
	var hazards []access.HazardResult
	for i := range rp.info.Attachments {
		a := &rp.info.Attachments[i]
		u, ordering := a.drawUsage()
		if h := cb.DetectHazard(a.gen(), u, ordering); h.IsHazard() {
			hazards = append(hazards, h)
		}
		cb.UpdateAccess(a.gen(), u, ordering, tag)
	}
	return hazards
}
