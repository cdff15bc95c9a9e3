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
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// SemaphoreSignal is a pending binary semaphore signal: the batch whose
// accesses the signal exports, and the scope they are exported with.
type SemaphoreSignal struct {
	Batch *QueueBatchContext
	Scope access.SemaphoreScope
}

// SignaledSemaphores is the registry of pending binary semaphore signals.
//
// Validation of a submission runs against a child registry layered over the
// confirmed parent. Lookups fall through to the parent; signals and
// unsignals land in the child, and are folded into the parent by Resolve
// only once the submission is accepted. A failed or skipped submission
// therefore never mutates confirmed state.
type SignaledSemaphores struct {
	parent *SignaledSemaphores
	// signaled holds this layer's view; a nil value is an unsignal
	// shadowing a parent entry.
	signaled map[state.Handle]*SemaphoreSignal
}

// NewSignaledSemaphores returns a registry layered over parent, which may
// be nil for the root.
func NewSignaledSemaphores(parent *SignaledSemaphores) *SignaledSemaphores {
	return &SignaledSemaphores{
		parent:   parent,
		signaled: map[state.Handle]*SemaphoreSignal{},
	}
}

// Lookup returns the pending signal for the semaphore, or nil.
func (s *SignaledSemaphores) Lookup(h state.Handle) *SemaphoreSignal {
	if sig, ok := s.signaled[h]; ok {
		return sig
	}
	if s.parent != nil {
		return s.parent.Lookup(h)
	}
	return nil
}

// Signal records a pending signal. A binary semaphore carrying an
// unconsumed signal keeps it; the duplicate is rejected.
func (s *SignaledSemaphores) Signal(h state.Handle, sig *SemaphoreSignal) bool {
	if s.Lookup(h) != nil {
		return false
	}
	s.signaled[h] = sig
	return true
}

// Unsignal consumes the pending signal for the semaphore. The consumption
// is recorded in this layer even when the signal came from the parent.
func (s *SignaledSemaphores) Unsignal(h state.Handle) *SemaphoreSignal {
	sig := s.Lookup(h)
	if sig != nil {
		s.signaled[h] = nil
	}
	return sig
}

// Resolve folds this layer into its parent.
func (s *SignaledSemaphores) Resolve() {
	if s.parent == nil {
		return
	}
	for h, sig := range s.signaled {
		if sig == nil {
			delete(s.parent.signaled, h)
		} else {
			s.parent.signaled[h] = sig
		}
	}
	s.signaled = map[state.Handle]*SemaphoreSignal{}
}
