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
	"github.com/zmike/Vulkan-ValidationLayers/core/math/interval"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// ReplayTarget is the execution scope a recorded sync op is applied to: the
// recording command buffer itself, or a queue batch replaying the command
// buffer at submit time.
type ReplayTarget interface {
	QueueID() access.QueueID
	QueueCaps() access.QueueFlags
	CurrentContext() *access.AccessContext
	EventsContext() *SyncEventsContext
}

// SyncOp is a recorded synchronization command. It is applied once while
// recording and replayed against every batch the command buffer is
// submitted to.
type SyncOp interface {
	Cmd() Command
	// ReplayValidate checks the op against the target's current state.
	ReplayValidate(t ReplayTarget) access.HazardResult
	// ReplayRecord applies the op's effects to the target at tag.
	ReplayRecord(t ReplayTarget, tag access.Tag)
}

// BufferBarrier is a barrier restricted to a buffer range.
type BufferBarrier struct {
	Span    interval.U64Span
	Barrier access.Barrier
}

// ImageBarrier is a barrier restricted to image subresource ranges,
// optionally performing a layout transition.
type ImageBarrier struct {
	Spans            []interval.U64Span
	Barrier          access.Barrier
	LayoutTransition bool
}

// PipelineBarrierOp is a recorded pipeline barrier in either calling
// convention.
type PipelineBarrierOp struct {
	cmd     Command
	globals []access.Barrier
	buffers []BufferBarrier
	images  []ImageBarrier
	// union scopes used to chain events across the barrier
	src access.ExecScope
	dst access.ExecScope
}

// NewPipelineBarrierOp builds a pipeline barrier op from resolved barriers.
func NewPipelineBarrierOp(cmd Command, globals []access.Barrier, buffers []BufferBarrier, images []ImageBarrier) *PipelineBarrierOp {
	op := &PipelineBarrierOp{cmd: cmd, globals: globals, buffers: buffers, images: images}
	collect := func(b *access.Barrier) {
		op.src.Mask |= b.Src.Mask
		op.src.Exec |= b.Src.Exec
		op.src.Expanded |= b.Src.Expanded
		op.dst.Mask |= b.Dst.Mask
		op.dst.Exec |= b.Dst.Exec
		op.dst.Expanded |= b.Dst.Expanded
	}
	for i := range globals {
		collect(&globals[i])
	}
	for i := range buffers {
		collect(&buffers[i].Barrier)
	}
	for i := range images {
		collect(&images[i].Barrier)
	}
	return op
}

func (op *PipelineBarrierOp) Cmd() Command { return op.cmd }

// ReplayValidate checks the layout transitions of the barrier against the
// accesses already recorded in the target.
func (op *PipelineBarrierOp) ReplayValidate(t ReplayTarget) access.HazardResult {
	ctx := t.CurrentContext()
	for i := range op.images {
		ib := &op.images[i]
		if !ib.LayoutTransition {
			continue
		}
		h := ctx.DetectBarrierHazard(access.NewSpanSliceGen(ib.Spans),
			access.UsageImageLayoutTransition, ib.Barrier.Src.Exec, ib.Barrier.SrcScope)
		if h.IsHazard() {
			return h
		}
	}
	return access.HazardResult{}
}

// ReplayRecord applies the barriers to the target.
func (op *PipelineBarrierOp) ReplayRecord(t ReplayTarget, tag access.Tag) {
	ctx := t.CurrentContext()
	queue := t.QueueID()
	if len(op.globals) > 0 {
		ctx.ApplyGlobalBarriers(op.globals, tag, queue)
	}
	for i := range op.buffers {
		bb := &op.buffers[i]
		ctx.ApplyBarriers(access.NewSingleRangeGen(bb.Span), []access.Barrier{bb.Barrier}, false, tag, queue)
	}
	for i := range op.images {
		ib := &op.images[i]
		ctx.ApplyBarriers(access.NewSpanSliceGen(ib.Spans), []access.Barrier{ib.Barrier}, ib.LayoutTransition, tag, queue)
	}
	t.EventsContext().ApplyBarrier(op.src, op.dst)
}

// SetEventOp is a recorded event set.
type SetEventOp struct {
	cmd         Command
	event       state.Handle
	scope       access.ExecScope
	scopeAccess access.UsageFlags
}

// NewSetEventOp builds a set op with the given source scope.
func NewSetEventOp(cmd Command, event state.Handle, scope access.ExecScope, scopeAccess access.UsageFlags) *SetEventOp {
	return &SetEventOp{cmd: cmd, event: event, scope: scope, scopeAccess: scopeAccess}
}

func (op *SetEventOp) Cmd() Command { return op.cmd }

func (op *SetEventOp) ReplayValidate(t ReplayTarget) access.HazardResult {
	return access.HazardResult{}
}

// ReplayRecord opens the event's first scope at tag.
func (op *SetEventOp) ReplayRecord(t ReplayTarget, tag access.Tag) {
	e := t.EventsContext().Get(op.event)
	e.LastCmd = op.cmd
	e.LastCmdTag = tag
	e.Scope = op.scope
	e.ScopeAccess = op.scopeAccess
	e.ScopeTag = tag
	e.Barriers = 0
}

// ResetEventOp is a recorded event reset.
type ResetEventOp struct {
	cmd   Command
	event state.Handle
}

// NewResetEventOp builds a reset op.
func NewResetEventOp(cmd Command, event state.Handle) *ResetEventOp {
	return &ResetEventOp{cmd: cmd, event: event}
}

func (op *ResetEventOp) Cmd() Command { return op.cmd }

func (op *ResetEventOp) ReplayValidate(t ReplayTarget) access.HazardResult {
	return access.HazardResult{}
}

// ReplayRecord closes the event's scope.
func (op *ResetEventOp) ReplayRecord(t ReplayTarget, tag access.Tag) {
	e := t.EventsContext().Get(op.event)
	e.LastCmd = op.cmd
	e.LastCmdTag = tag
	e.Scope = access.ExecScope{}
	e.ScopeAccess = 0
	e.Barriers = 0
}

// EventWaitResult pairs an event with the reason its wait was ignored.
type EventWaitResult struct {
	Event  state.Handle
	Reason IgnoreReason
}

// WaitEventsOp is a recorded event wait in either calling convention.
type WaitEventsOp struct {
	cmd       Command
	events    []state.Handle
	srcStages access.StageFlags
	globals   []access.Barrier
	buffers   []BufferBarrier
	images    []ImageBarrier
	dst       access.ExecScope
}

// NewWaitEventsOp builds a wait op with the given resolved barriers.
func NewWaitEventsOp(cmd Command, events []state.Handle, srcStages access.StageFlags, globals []access.Barrier, buffers []BufferBarrier, images []ImageBarrier) *WaitEventsOp {
	op := &WaitEventsOp{cmd: cmd, events: events, srcStages: srcStages, globals: globals, buffers: buffers, images: images}
	for i := range globals {
		op.dst.Exec |= globals[i].Dst.Exec
	}
	for i := range buffers {
		op.dst.Exec |= buffers[i].Barrier.Dst.Exec
	}
	for i := range images {
		op.dst.Exec |= images[i].Barrier.Dst.Exec
	}
	return op
}

func (op *WaitEventsOp) Cmd() Command { return op.cmd }

// IgnoredEvents classifies each waited event against the target's event
// states.
func (op *WaitEventsOp) IgnoredEvents(t ReplayTarget) []EventWaitResult {
	var out []EventWaitResult
	for _, h := range op.events {
		e := t.EventsContext().Get(h)
		if reason := e.IsIgnoredByWait(op.cmd, op.srcStages); reason != NotIgnored {
			out = append(out, EventWaitResult{Event: h, Reason: reason})
		}
	}
	return out
}

// ReplayValidate checks the layout transitions of the wait's image barriers
// against the scopes of the signaled events.
func (op *WaitEventsOp) ReplayValidate(t ReplayTarget) access.HazardResult {
	ctx := t.CurrentContext()
	for _, h := range op.events {
		e := t.EventsContext().Get(h)
		if e.IsIgnoredByWait(op.cmd, op.srcStages) != NotIgnored {
			continue
		}
		for i := range op.images {
			ib := &op.images[i]
			if !ib.LayoutTransition {
				continue
			}
			hazard := ctx.DetectBarrierHazard(access.NewSpanSliceGen(ib.Spans),
				access.UsageImageLayoutTransition, e.Scope.Exec, e.ScopeAccess)
			if hazard.IsHazard() {
				return hazard
			}
		}
	}
	return access.HazardResult{}
}

// ReplayRecord applies the wait's barriers for every signaled event,
// limited to the event's first scope, and marks the events consumed.
func (op *WaitEventsOp) ReplayRecord(t ReplayTarget, tag access.Tag) {
	ctx := t.CurrentContext()
	queue := t.QueueID()
	for _, h := range op.events {
		e := t.EventsContext().Get(h)
		reason := e.IsIgnoredByWait(op.cmd, op.srcStages)
		if reason != NotIgnored && reason != MissingStageBits {
			continue
		}
		// The wait's source scope is bounded by the event's set scope. Set
		// stage bits absent from the wait establish no ordering, so the
		// applied scope keeps only the overlap.
		src, srcAccess := e.Scope, e.ScopeAccess
		if reason == MissingStageBits {
			src, srcAccess = intersectSetScope(src, srcAccess,
				access.MakeSrcScope(t.QueueCaps(), op.srcStages))
		}
		barriers := make([]access.Barrier, 0, len(op.globals))
		for i := range op.globals {
			b := op.globals[i]
			b.Src = src
			b.SrcScope = srcAccess
			barriers = append(barriers, b)
		}
		if len(barriers) > 0 {
			ctx.ApplyEventBarriers(barriers, e.ScopeTag, tag, queue)
		}
		for i := range op.buffers {
			b := op.buffers[i].Barrier
			b.Src = src
			b.SrcScope = srcAccess
			ctx.ApplyEventBarriersRanged(access.NewSingleRangeGen(op.buffers[i].Span),
				[]access.Barrier{b}, e.ScopeTag, tag, queue)
		}
		for i := range op.images {
			b := op.images[i].Barrier
			b.Src = src
			b.SrcScope = srcAccess
			ctx.ApplyEventBarriersRanged(access.NewSpanSliceGen(op.images[i].Spans),
				[]access.Barrier{b}, e.ScopeTag, tag, queue)
		}
		e.LastCmd = op.cmd
		e.LastCmdTag = tag
	}
}

// intersectSetScope limits an event's set scope to the stage bits the wait
// names, rebuilding the widened execution mask and the access scope from the
// surviving stages.
func intersectSetScope(set access.ExecScope, setAccess access.UsageFlags, wait access.ExecScope) (access.ExecScope, access.UsageFlags) {
	expanded := set.Expanded & wait.Expanded
	out := access.ExecScope{
		Mask:          set.Mask & wait.Mask,
		Expanded:      expanded,
		Exec:          access.WithEarlierStages(expanded),
		ValidAccesses: access.ValidAccesses(expanded),
	}
	return out, setAccess & access.StageScope(expanded)
}
