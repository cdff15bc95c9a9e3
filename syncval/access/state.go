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

// WriteState records the most recent write to a range, together with the
// synchronization that has been applied since.
type WriteState struct {
	Usage Usage
	Tag   Tag
	Queue QueueID
	// Barriers is the set of usages this write has been made visible to.
	Barriers UsageFlags
	// DepChain is the set of stages execution ordered after this write.
	DepChain StageFlags
}

// ReadState records one read since the last write, per stage.
type ReadState struct {
	Usage Usage
	Stage StageFlags
	Tag   Tag
	Queue QueueID
	// Barriers is the set of stages execution ordered after this read.
	Barriers StageFlags

	pendingBarriers StageFlags
}

// FirstAccess is one entry of the recorded first use of a range within a
// command buffer, replayed at submit time.
type FirstAccess struct {
	Tag      Tag
	Usage    Usage
	Ordering Ordering
}

// ResourceAccessState is the access history of one address range: the last
// write, the reads since that write, and the first uses seen while
// recording.
type ResourceAccessState struct {
	write      *WriteState
	reads      []ReadState
	readStages StageFlags

	firstAccesses   []FirstAccess
	firstReadStages StageFlags
	firstClosed     bool

	pendingWriteBarriers    UsageFlags
	pendingWriteChain       StageFlags
	pendingLayoutTransition bool
}

// SemaphoreScope is one half of a semaphore dependency.
type SemaphoreScope struct {
	Queue QueueID
	Exec  StageFlags
	Scope UsageFlags
}

// QueuePredicate selects accesses by queue and tag, used for tagged waits.
type QueuePredicate func(QueueID, Tag) bool

// Clone returns a deep copy of the state.
func (s *ResourceAccessState) Clone() *ResourceAccessState {
	out := *s
	if s.write != nil {
		w := *s.write
		out.write = &w
	}
	out.reads = append([]ReadState(nil), s.reads...)
	out.firstAccesses = append([]FirstAccess(nil), s.firstAccesses...)
	return &out
}

// LastWrite returns the recorded last write, or nil.
func (s *ResourceAccessState) LastWrite() *WriteState { return s.write }

// LastReads returns the recorded reads since the last write.
func (s *ResourceAccessState) LastReads() []ReadState { return s.reads }

// FirstAccesses returns the recorded first uses of the range.
func (s *ResourceAccessState) FirstAccesses() []FirstAccess { return s.firstAccesses }

// Empty returns true if no access is recorded.
func (s *ResourceAccessState) Empty() bool { return s.write == nil && len(s.reads) == 0 }

// writeIsPresent returns true if the last write was a presentation.
func (s *ResourceAccessState) writeIsPresent() bool {
	return s.write != nil && s.write.Usage == UsagePresent
}

// readableAt returns true if the last write is ordered before a read at the
// given usage.
func (s *ResourceAccessState) readableAt(u Usage, info *UsageInfo, rule OrderingBarrier) bool {
	w := s.write
	if w == nil {
		return true
	}
	if w.Barriers.Has(u) || w.DepChain&info.Stage != 0 {
		return true
	}
	// Implicitly ordered accesses (rasterization order) need no barrier.
	return rule.Scope.Has(w.Usage) && rule.Scope.Has(u)
}

// DetectHazard checks the proposed usage against the recorded accesses.
func (s *ResourceAccessState) DetectHazard(u Usage, ordering Ordering, queue QueueID) HazardResult {
	info := u.Info()
	rule := ordering.Rule()

	if u == UsagePresent {
		return s.detectPresentHazard()
	}

	if !info.Write {
		if s.write != nil && !s.readableAt(u, info, rule) {
			kind := HazardReadAfterWrite
			if s.writeIsPresent() {
				kind = HazardReadAfterPresent
			}
			return hazard(kind, u, s.write.Usage, s.write.Tag)
		}
		return HazardResult{}
	}

	if len(s.reads) > 0 {
		for i := range s.reads {
			r := &s.reads[i]
			if rule.Exec&r.Stage != 0 {
				continue
			}
			if r.Barriers&info.Stage == 0 {
				return hazard(HazardWriteAfterRead, u, r.Usage, r.Tag)
			}
		}
	} else if s.write != nil {
		ordered := rule.Scope.Has(s.write.Usage) && rule.Scope.Has(u)
		if !ordered && !s.write.Barriers.Has(u) && s.write.DepChain&info.Stage == 0 {
			kind := HazardWriteAfterWrite
			if s.writeIsPresent() {
				kind = HazardWriteAfterPresent
			}
			return hazard(kind, u, s.write.Usage, s.write.Tag)
		}
	}
	return HazardResult{}
}

// detectPresentHazard checks a presentation against the recorded accesses.
// Presentation must be ordered after every prior access via the present
// wait semaphores.
func (s *ResourceAccessState) detectPresentHazard() HazardResult {
	for i := range s.reads {
		r := &s.reads[i]
		if r.Barriers&StagePresentEngine == 0 {
			return hazard(HazardPresentAfterRead, UsagePresent, r.Usage, r.Tag)
		}
	}
	if len(s.reads) == 0 && s.write != nil {
		w := s.write
		if !w.Barriers.Has(UsagePresent) && w.DepChain&StagePresentEngine == 0 {
			return hazard(HazardPresentAfterWrite, UsagePresent, w.Usage, w.Tag)
		}
	}
	return HazardResult{}
}

// DetectAsyncHazard checks the proposed usage against accesses recorded by
// an unsynchronized sibling context. Only accesses at or after startTag can
// race; earlier ones were synchronized when the sibling was snapshot.
func (s *ResourceAccessState) DetectAsyncHazard(u Usage, startTag Tag) HazardResult {
	info := u.Info()
	if !info.Write {
		if s.write != nil && s.write.Tag >= startTag {
			return hazard(HazardReadRacingWrite, u, s.write.Usage, s.write.Tag)
		}
		return HazardResult{}
	}
	if s.write != nil && s.write.Tag >= startTag {
		return hazard(HazardWriteRacingWrite, u, s.write.Usage, s.write.Tag)
	}
	for i := range s.reads {
		r := &s.reads[i]
		if r.Tag >= startTag {
			return hazard(HazardWriteRacingRead, u, r.Usage, r.Tag)
		}
	}
	return HazardResult{}
}

// DetectBarrierHazard checks that every recorded access is inside the source
// scope of a barrier performing a layout transition, or is already chained
// behind it.
func (s *ResourceAccessState) DetectBarrierHazard(u Usage, srcExec StageFlags, srcScope UsageFlags) HazardResult {
	for i := range s.reads {
		r := &s.reads[i]
		if r.Stage&srcExec == 0 && r.Barriers&srcExec == 0 {
			return hazard(HazardWriteAfterRead, u, r.Usage, r.Tag)
		}
	}
	if len(s.reads) == 0 && s.write != nil {
		w := s.write
		if !srcScope.Has(w.Usage) && w.DepChain&srcExec == 0 {
			return hazard(HazardWriteAfterWrite, u, w.Usage, w.Tag)
		}
	}
	return HazardResult{}
}

// Update records the usage against the state.
func (s *ResourceAccessState) Update(u Usage, ordering Ordering, tag Tag, queue QueueID) {
	info := u.Info()
	if info.Write {
		s.write = &WriteState{Usage: u, Tag: tag, Queue: queue}
		s.reads = nil
		s.readStages = 0
	} else {
		updated := false
		for i := range s.reads {
			if s.reads[i].Stage == info.Stage && s.reads[i].Access() == info.Access {
				s.reads[i] = ReadState{Usage: u, Stage: info.Stage, Tag: tag, Queue: queue}
				updated = true
				break
			}
		}
		if !updated {
			s.reads = append(s.reads, ReadState{Usage: u, Stage: info.Stage, Tag: tag, Queue: queue})
			s.readStages |= info.Stage
		}
	}
	s.updateFirst(u, ordering, tag)
}

// Access returns the access flags of the read.
func (r *ReadState) Access() AccessFlags { return r.Usage.Info().Access }

func (s *ResourceAccessState) updateFirst(u Usage, ordering Ordering, tag Tag) {
	if s.firstClosed {
		return
	}
	info := u.Info()
	if info.Write {
		s.firstAccesses = append(s.firstAccesses, FirstAccess{tag, u, ordering})
		s.firstClosed = true
		return
	}
	if s.firstReadStages&info.Stage == 0 {
		s.firstAccesses = append(s.firstAccesses, FirstAccess{tag, u, ordering})
		s.firstReadStages |= info.Stage
	}
}

// ApplyBarrier stages the effects of the barrier against the state. The
// effects are kept pending so that multiple barriers recorded by one command
// do not chain with each other; ApplyPendingBarriers commits them.
func (s *ResourceAccessState) ApplyBarrier(b *Barrier, layoutTransition bool) {
	if s.write != nil || layoutTransition {
		inScope := layoutTransition
		if !inScope && s.write != nil {
			inScope = b.SrcScope.Has(s.write.Usage) || s.write.DepChain&b.Src.Exec != 0
		}
		if inScope {
			s.pendingWriteBarriers |= b.DstScope
			s.pendingWriteChain |= b.Dst.Exec
			s.pendingLayoutTransition = s.pendingLayoutTransition || layoutTransition
		}
	}
	for i := range s.reads {
		r := &s.reads[i]
		if r.Stage&b.Src.Exec != 0 || r.Barriers&b.Src.Exec != 0 {
			r.pendingBarriers |= b.Dst.Exec
		}
	}
}

// ApplyPendingBarriers commits barrier effects staged by ApplyBarrier. If a
// layout transition was staged, the transition is recorded as a write at
// tag, visible to the destination scopes of the staged barriers.
func (s *ResourceAccessState) ApplyPendingBarriers(tag Tag, queue QueueID) {
	if s.pendingLayoutTransition {
		s.write = &WriteState{
			Usage:    UsageImageLayoutTransition,
			Tag:      tag,
			Queue:    queue,
			Barriers: s.pendingWriteBarriers,
			DepChain: s.pendingWriteChain,
		}
		s.reads = nil
		s.readStages = 0
		s.updateFirst(UsageImageLayoutTransition, OrderingNone, tag)
	} else if s.write != nil {
		s.write.Barriers |= s.pendingWriteBarriers
		s.write.DepChain |= s.pendingWriteChain
	}
	s.pendingWriteBarriers = 0
	s.pendingWriteChain = 0
	s.pendingLayoutTransition = false
	for i := range s.reads {
		r := &s.reads[i]
		r.Barriers |= r.pendingBarriers
		r.pendingBarriers = 0
	}
}

// ApplyEventBarrier stages the barrier like ApplyBarrier, but only against
// accesses that were recorded at or before the event's set tag. Later
// accesses are not in the event's first scope and stay unsynchronized.
func (s *ResourceAccessState) ApplyEventBarrier(b *Barrier, scopeTag Tag) {
	if s.write != nil && s.write.Tag <= scopeTag {
		if b.SrcScope.Has(s.write.Usage) || s.write.DepChain&b.Src.Exec != 0 {
			s.pendingWriteBarriers |= b.DstScope
			s.pendingWriteChain |= b.Dst.Exec
		}
	}
	for i := range s.reads {
		r := &s.reads[i]
		if r.Tag > scopeTag {
			continue
		}
		if r.Stage&b.Src.Exec != 0 || r.Barriers&b.Src.Exec != 0 {
			r.pendingBarriers |= b.Dst.Exec
		}
	}
}

// ApplySemaphore rewrites the synchronization state of accesses that are in
// the signal scope so they are ordered behind the wait scope. Accesses
// outside the signal scope lose any barriers they had; those barriers are
// not re-established on the waiting queue.
func (s *ResourceAccessState) ApplySemaphore(signal, wait SemaphoreScope) {
	if s.write != nil {
		w := s.write
		if signal.Scope.Has(w.Usage) || w.DepChain&signal.Exec != 0 {
			w.Barriers = wait.Scope
			w.DepChain = wait.Exec
		} else {
			w.Barriers = 0
			w.DepChain = 0
		}
	}
	for i := range s.reads {
		r := &s.reads[i]
		if r.Stage&signal.Exec != 0 || r.Barriers&signal.Exec != 0 {
			r.Barriers = wait.Exec
		} else {
			r.Barriers = 0
		}
	}
}

// ApplyPredicatedWait removes accesses matched by the predicate. When the
// write and every read match, the whole state is discarded; every earlier
// access was necessarily ordered before them. Returns true if the state is
// empty afterwards.
func (s *ResourceAccessState) ApplyPredicatedWait(pred QueuePredicate) bool {
	kept := s.reads[:0]
	stages := StageFlags(0)
	for i := range s.reads {
		r := s.reads[i]
		if !pred(r.Queue, r.Tag) {
			kept = append(kept, r)
			stages |= r.Stage
		}
	}
	if len(kept) == 0 && s.write != nil && pred(s.write.Queue, s.write.Tag) {
		*s = ResourceAccessState{}
		return true
	}
	s.reads = kept
	s.readStages = stages
	return s.Empty()
}

// Resolve merges another state for the same range into this one, keeping
// the most recent write and the most recent read per stage.
func (s *ResourceAccessState) Resolve(other *ResourceAccessState) {
	switch {
	case other.write == nil:
		// keep s.write
	case s.write == nil:
		s.write = other.write
	case s.write.Tag == other.write.Tag:
		s.write.Barriers |= other.write.Barriers
		s.write.DepChain |= other.write.DepChain
	case other.write.Tag > s.write.Tag:
		s.write = other.write
	}
	for i := range other.reads {
		o := &other.reads[i]
		merged := false
		for j := range s.reads {
			r := &s.reads[j]
			if r.Stage == o.Stage && r.Access() == o.Access() {
				if o.Tag > r.Tag {
					*r = *o
				} else if o.Tag == r.Tag {
					r.Barriers |= o.Barriers
				}
				merged = true
				break
			}
		}
		if !merged {
			s.reads = append(s.reads, *o)
			s.readStages |= o.Stage
		}
	}
	if len(other.firstAccesses) > 0 && len(s.firstAccesses) == 0 {
		s.firstAccesses = other.firstAccesses
		s.firstReadStages = other.firstReadStages
		s.firstClosed = other.firstClosed
	}
}

// OffsetTags rebases recording-local tags onto the global tag space.
func (s *ResourceAccessState) OffsetTags(bias Tag) {
	if s.write != nil {
		s.write.Tag += bias
	}
	for i := range s.reads {
		s.reads[i].Tag += bias
	}
	for i := range s.firstAccesses {
		s.firstAccesses[i].Tag += bias
	}
}

// SetQueueID assigns the queue to accesses recorded outside any queue.
func (s *ResourceAccessState) SetQueueID(queue QueueID) {
	if s.write != nil && s.write.Queue == QueueIDInvalid {
		s.write.Queue = queue
	}
	for i := range s.reads {
		if s.reads[i].Queue == QueueIDInvalid {
			s.reads[i].Queue = queue
		}
	}
}
