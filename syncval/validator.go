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

// Package syncval is a runtime correctness checker for explicitly
// synchronized GPU command streams. Commands recorded into command buffers
// are validated against a per resource access ledger; submissions stitch
// the recorded ledgers onto per queue timelines, resolving semaphores,
// fences and cross queue races.
//
// The validator reports hazards, it never fails an operation: every entry
// point returns a skip flag the caller is free to ignore.
package syncval

import (
	"context"
	"sync"

	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/record"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// Config selects the validator's optional behaviors.
type Config struct {
	// QueueSubmitValidation enables hazard reporting at submit scope.
	// Recording scope hazards are always reported.
	QueueSubmitValidation bool
	// SuppressBenignWAW suppresses write-after-write hazards between two
	// identical shader storage writes, which are overwhelmingly benign
	// same-descriptor rebinds.
	SuppressBenignWAW bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{QueueSubmitValidation: true, SuppressBenignWAW: true}
}

// Validator is the top level checker. All entry points are safe for
// concurrent use; recording entry points for distinct command buffers do
// not serialize against each other beyond the registry lock.
type Validator struct {
	mu       sync.Mutex
	cfg      Config
	tracker  *state.Tracker
	reporter Reporter

	nextTag access.Tag

	cbs       map[state.Handle]*record.CommandBufferAccessContext
	queues    map[state.Handle]*QueueSyncState
	signaled  *SignaledSemaphores
	fences    map[state.Handle]*FenceSyncState
	presented map[presentKey]*PresentedImage
}

// New returns a validator reporting through reporter. A nil reporter logs
// hazards as warnings.
func New(cfg Config, tracker *state.Tracker, reporter Reporter) *Validator {
	if tracker == nil {
		tracker = state.NewTracker()
	}
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &Validator{
		cfg:      cfg,
		tracker:  tracker,
		reporter: reporter,
		// Tag zero stays unassigned so zero valued tag floors are inert.
		nextTag:   1,
		cbs:       map[state.Handle]*record.CommandBufferAccessContext{},
		queues:    map[state.Handle]*QueueSyncState{},
		signaled:  NewSignaledSemaphores(nil),
		fences:    map[state.Handle]*FenceSyncState{},
		presented: map[presentKey]*PresentedImage{},
	}
}

// Tracker returns the object metadata registry.
func (v *Validator) Tracker() *state.Tracker { return v.tracker }

// Config returns the active configuration.
func (v *Validator) Config() Config { return v.cfg }

// reserveTags allocates n consecutive global tags.
func (v *Validator) reserveTags(n uint64) access.TagRange {
	begin := v.nextTag
	v.nextTag += access.Tag(n)
	return access.TagRange{Begin: begin, End: v.nextTag}
}

func (v *Validator) report(ctx context.Context, r HazardReport) {
	v.reporter.Report(ctx, r)
}

// RegisterQueue starts tracking a queue.
func (v *Validator) RegisterQueue(h state.Handle, family uint32, flags access.QueueFlags) *QueueSyncState {
	q := v.tracker.AddQueue(h, family, flags)
	v.mu.Lock()
	defer v.mu.Unlock()
	qs := &QueueSyncState{queue: q}
	v.queues[h] = qs
	return qs
}

// RegisterCommandBuffer starts tracking a command buffer that will execute
// on queues with the given capabilities.
func (v *Validator) RegisterCommandBuffer(h state.Handle, queueCaps access.QueueFlags) *record.CommandBufferAccessContext {
	v.mu.Lock()
	defer v.mu.Unlock()
	cb := record.NewCommandBufferAccessContext(h, queueCaps)
	v.cbs[h] = cb
	return cb
}

// CommandBuffer returns the recording state of a tracked command buffer,
// or nil.
func (v *Validator) CommandBuffer(h state.Handle) *record.CommandBufferAccessContext {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cbs[h]
}

// ResetCommandBuffer discards a command buffer's recording.
func (v *Validator) ResetCommandBuffer(h state.Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cb, ok := v.cbs[h]; ok {
		cb.Reset()
	}
}

// DestroyCommandBuffer stops tracking a command buffer. Batches that
// resolved its accesses are unaffected.
func (v *Validator) DestroyCommandBuffer(h state.Handle) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cbs, h)
}

// Trim drops access log provenance no retained access refers to anymore.
func (v *Validator) Trim() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trimLocked()
}

func (v *Validator) trimLocked() {
	for _, qs := range v.queues {
		if qs.lastBatch == nil {
			continue
		}
		set := map[access.Tag]struct{}{}
		qs.lastBatch.ctx.CollectTags(set)
		qs.lastBatch.log.Trim(sortedTags(set))
	}
}
