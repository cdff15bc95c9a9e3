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

import "github.com/zmike/Vulkan-ValidationLayers/core/math/interval"

// AsyncRef is an unsynchronized sibling context. Accesses in the referenced
// context at or after StartTag race with accesses made through the owning
// context.
type AsyncRef struct {
	Context  *AccessContext
	StartTag Tag
}

// AccessContext is the access ledger for one execution scope: an interval
// map from address ranges to access states, plus references to sibling
// contexts that execute asynchronously.
//
// Values in the map are copy-on-write: mutation always replaces an entry's
// state with a freshly cloned one, so a Clone of the context stays a
// consistent snapshot.
type AccessContext struct {
	accesses interval.ValueSpanList
	async    []AsyncRef
}

// NewAccessContext returns an empty context.
func NewAccessContext() *AccessContext {
	return &AccessContext{}
}

// Reset discards all recorded accesses and async references.
func (c *AccessContext) Reset() {
	c.accesses = nil
	c.async = nil
}

// Clone returns a snapshot of the context. The snapshot shares access
// states with the original; the copy-on-write discipline keeps it stable.
func (c *AccessContext) Clone() *AccessContext {
	return &AccessContext{
		accesses: append(interval.ValueSpanList(nil), c.accesses...),
		async:    append([]AsyncRef(nil), c.async...),
	}
}

// AddAsyncContext registers an unsynchronized sibling with the given tag
// floor.
func (c *AccessContext) AddAsyncContext(a *AccessContext, startTag Tag) {
	c.async = append(c.async, AsyncRef{Context: a, StartTag: startTag})
}

// AsyncRefs returns the registered unsynchronized siblings.
func (c *AccessContext) AsyncRefs() []AsyncRef { return c.async }

// update rewrites the states in span with f. f receives the existing state
// or nil for uncovered parts, and returns the replacement state or nil to
// leave the part uncovered. f must not mutate its argument.
func (c *AccessContext) update(span interval.U64Span, f func(*ResourceAccessState) *ResourceAccessState) {
	interval.Update(&c.accesses, span, func(v interface{}) interface{} {
		var s *ResourceAccessState
		if v != nil {
			s = v.(*ResourceAccessState)
		}
		out := f(s)
		if out == nil {
			return nil
		}
		return out
	})
}

// transformAll rewrites every state in the map with f, removing entries for
// which f returns nil. f must not mutate its argument.
func (c *AccessContext) transformAll(f func(*ResourceAccessState) *ResourceAccessState) {
	out := c.accesses[:0]
	for i := 0; i < c.accesses.Length(); i++ {
		span := c.accesses.GetSpan(i)
		s := c.accesses.GetValue(i).(*ResourceAccessState)
		if n := f(s); n != nil {
			out = append(out, interval.ValueSpan{Span: span, Value: n})
		}
	}
	c.accesses = out
}

// UpdateAccessState records the usage against every range of the generator.
func (c *AccessContext) UpdateAccessState(gen RangeGen, u Usage, ordering Ordering, tag Tag, queue QueueID) {
	for span, ok := gen.Next(); ok; span, ok = gen.Next() {
		c.update(span, func(s *ResourceAccessState) *ResourceAccessState {
			if s == nil {
				s = &ResourceAccessState{}
			} else {
				s = s.Clone()
			}
			s.Update(u, ordering, tag, queue)
			return s
		})
	}
}

// DetectHazard checks the usage over the generator ranges against the
// recorded accesses and against every async sibling.
func (c *AccessContext) DetectHazard(gen RangeGen, u Usage, ordering Ordering, queue QueueID) HazardResult {
	spans := CollectSpans(gen)
	if h := c.detectHazardSpans(spans, u, ordering, queue); h.IsHazard() {
		return h
	}
	for _, ref := range c.async {
		eg := NewEntryGen(&ref.Context.accesses, NewSpanSliceGen(spans))
		for e, ok := eg.Next(); ok; e, ok = eg.Next() {
			if h := e.State.DetectAsyncHazard(u, ref.StartTag); h.IsHazard() {
				h.Range = e.Span
				return h
			}
		}
	}
	return HazardResult{}
}

func (c *AccessContext) detectHazardSpans(spans []interval.U64Span, u Usage, ordering Ordering, queue QueueID) HazardResult {
	eg := NewEntryGen(&c.accesses, NewSpanSliceGen(spans))
	for e, ok := eg.Next(); ok; e, ok = eg.Next() {
		if h := e.State.DetectHazard(u, ordering, queue); h.IsHazard() {
			h.Range = e.Span
			return h
		}
	}
	return HazardResult{}
}

// DetectBarrierHazard checks a layout transition over the generator ranges
// against the source scope of its barrier.
func (c *AccessContext) DetectBarrierHazard(gen RangeGen, u Usage, srcExec StageFlags, srcScope UsageFlags) HazardResult {
	eg := NewEntryGen(&c.accesses, gen)
	for e, ok := eg.Next(); ok; e, ok = eg.Next() {
		if h := e.State.DetectBarrierHazard(u, srcExec, srcScope); h.IsHazard() {
			h.Range = e.Span
			return h
		}
	}
	return HazardResult{}
}

// ApplyBarriers applies the barriers to the states in the generator ranges.
// With layoutTransition the transition is recorded as a write at tag, also
// on previously untouched parts of the ranges.
func (c *AccessContext) ApplyBarriers(gen RangeGen, barriers []Barrier, layoutTransition bool, tag Tag, queue QueueID) {
	for span, ok := gen.Next(); ok; span, ok = gen.Next() {
		c.update(span, func(s *ResourceAccessState) *ResourceAccessState {
			if s == nil {
				if !layoutTransition {
					return nil
				}
				s = &ResourceAccessState{}
			} else {
				s = s.Clone()
			}
			for i := range barriers {
				s.ApplyBarrier(&barriers[i], layoutTransition)
			}
			s.ApplyPendingBarriers(tag, queue)
			return s
		})
	}
}

// ApplyGlobalBarriers applies the barriers to every recorded state.
func (c *AccessContext) ApplyGlobalBarriers(barriers []Barrier, tag Tag, queue QueueID) {
	c.transformAll(func(s *ResourceAccessState) *ResourceAccessState {
		s = s.Clone()
		for i := range barriers {
			s.ApplyBarrier(&barriers[i], false)
		}
		s.ApplyPendingBarriers(tag, queue)
		return s
	})
}

// ApplyEventBarriers applies the barriers of an event wait to every state,
// limited to accesses in the event's first scope (at or before scopeTag).
func (c *AccessContext) ApplyEventBarriers(barriers []Barrier, scopeTag Tag, tag Tag, queue QueueID) {
	c.transformAll(func(s *ResourceAccessState) *ResourceAccessState {
		s = s.Clone()
		for i := range barriers {
			s.ApplyEventBarrier(&barriers[i], scopeTag)
		}
		s.ApplyPendingBarriers(tag, queue)
		return s
	})
}

// ApplyEventBarriersRanged applies the barriers of an event wait to the
// states in the generator ranges, limited to the event's first scope.
func (c *AccessContext) ApplyEventBarriersRanged(gen RangeGen, barriers []Barrier, scopeTag Tag, tag Tag, queue QueueID) {
	for span, ok := gen.Next(); ok; span, ok = gen.Next() {
		c.update(span, func(s *ResourceAccessState) *ResourceAccessState {
			if s == nil {
				return nil
			}
			s = s.Clone()
			for i := range barriers {
				s.ApplyEventBarrier(&barriers[i], scopeTag)
			}
			s.ApplyPendingBarriers(tag, queue)
			return s
		})
	}
}

// ApplySemaphore applies a semaphore signal/wait scope pair to every state.
func (c *AccessContext) ApplySemaphore(signal, wait SemaphoreScope) {
	c.transformAll(func(s *ResourceAccessState) *ResourceAccessState {
		s = s.Clone()
		s.ApplySemaphore(signal, wait)
		return s
	})
}

// ApplyPredicatedWait removes every access matched by the predicate,
// dropping ranges that become empty.
func (c *AccessContext) ApplyPredicatedWait(pred QueuePredicate) {
	c.transformAll(func(s *ResourceAccessState) *ResourceAccessState {
		s = s.Clone()
		if s.ApplyPredicatedWait(pred) {
			return nil
		}
		return s
	})
}

// ApplyPredicatedWaitRanged removes matched accesses inside the generator
// ranges only.
func (c *AccessContext) ApplyPredicatedWaitRanged(gen RangeGen, pred QueuePredicate) {
	for span, ok := gen.Next(); ok; span, ok = gen.Next() {
		c.update(span, func(s *ResourceAccessState) *ResourceAccessState {
			if s == nil {
				return nil
			}
			s = s.Clone()
			if s.ApplyPredicatedWait(pred) {
				return nil
			}
			return s
		})
	}
}

// ResolveFromContext merges the accesses of from into this context. When
// gen is non-nil only the generator ranges are imported. transform, if
// non-nil, is applied to a copy of every imported state before merging;
// it is where barriers, semaphore scopes and tag offsets are applied.
func (c *AccessContext) ResolveFromContext(from *AccessContext, gen RangeGen, transform func(*ResourceAccessState)) {
	imp := func(span interval.U64Span, state *ResourceAccessState) {
		c.update(span, func(dst *ResourceAccessState) *ResourceAccessState {
			in := state.Clone()
			if transform != nil {
				transform(in)
			}
			if dst == nil {
				return in
			}
			out := dst.Clone()
			out.Resolve(in)
			return out
		})
	}
	if gen == nil {
		for i := 0; i < from.accesses.Length(); i++ {
			imp(from.accesses.GetSpan(i), from.accesses.GetValue(i).(*ResourceAccessState))
		}
		return
	}
	eg := NewEntryGen(&from.accesses, gen)
	for e, ok := eg.Next(); ok; e, ok = eg.Next() {
		imp(e.Span, e.State)
	}
}

// DetectFirstUseHazard replays the recorded first accesses with local tags
// inside localRange against the execution context.
func (c *AccessContext) DetectFirstUseHazard(queue QueueID, localRange TagRange, exec *AccessContext) HazardResult {
	for i := 0; i < c.accesses.Length(); i++ {
		span := c.accesses.GetSpan(i)
		s := c.accesses.GetValue(i).(*ResourceAccessState)
		for _, fa := range s.FirstAccesses() {
			if !localRange.Includes(fa.Tag) {
				continue
			}
			h := exec.DetectHazard(NewSingleRangeGen(span), fa.Usage, fa.Ordering, queue)
			if h.IsHazard() {
				return h
			}
		}
	}
	return HazardResult{}
}

// CollectTags adds the tags referenced by retained accesses to the set.
func (c *AccessContext) CollectTags(set map[Tag]struct{}) {
	for i := 0; i < c.accesses.Length(); i++ {
		s := c.accesses.GetValue(i).(*ResourceAccessState)
		if w := s.LastWrite(); w != nil {
			set[w.Tag] = struct{}{}
		}
		for _, r := range s.LastReads() {
			set[r.Tag] = struct{}{}
		}
		for _, fa := range s.FirstAccesses() {
			set[fa.Tag] = struct{}{}
		}
	}
}

// StateAt returns the state covering the address, or nil.
func (c *AccessContext) StateAt(addr uint64) *ResourceAccessState {
	if i := interval.IndexOf(&c.accesses, addr); i >= 0 {
		return c.accesses.GetValue(i).(*ResourceAccessState)
	}
	return nil
}
