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

// IgnoreReason classifies why a wait ignores an event. An ignored wait
// establishes no ordering for the event (missing stage bits establish
// ordering only for the bits that are present).
type IgnoreReason int32

const (
	NotIgnored IgnoreReason = iota
	// ResetWaitRace: the event was reset after its last set and no barrier
	// covers the reset; the wait races the reset.
	ResetWaitRace
	// Reset2WaitRace: as ResetWaitRace, with the reset recorded through the
	// dependency-info calling convention.
	Reset2WaitRace
	// SetRace: the wait consumes a scope that an earlier wait in the same
	// command buffer already consumed, racing the set.
	SetRace
	// MissingStageBits: the wait's source stage mask does not cover the
	// stage mask the event was set with.
	MissingStageBits
	// SetVsWait2: the set and the wait use different calling conventions
	// (legacy versus dependency-info).
	SetVsWait2
	// MissingSetEvent: no set for the event was recorded in this command
	// buffer.
	MissingSetEvent
)

var ignoreReasonNames = map[IgnoreReason]string{
	NotIgnored:       "not ignored",
	ResetWaitRace:    "wait races prior reset",
	Reset2WaitRace:   "wait races prior reset2",
	SetRace:          "wait races set consumed by prior wait",
	MissingStageBits: "source stage mask missing set stage bits",
	SetVsWait2:       "set and wait calling conventions differ",
	MissingSetEvent:  "no prior set in this command buffer",
}

func (r IgnoreReason) String() string { return ignoreReasonNames[r] }

// SyncEventState is the recorded state of one event within a command buffer
// or batch.
type SyncEventState struct {
	Event      state.Handle
	LastCmd    Command
	LastCmdTag access.Tag
	// Scope is the source scope the event was set with.
	Scope access.ExecScope
	// ScopeAccess is the access scope of the set.
	ScopeAccess access.UsageFlags
	// ScopeTag bounds the first scope: accesses at or before it were in
	// scope when the event was set.
	ScopeTag access.Tag
	// Barriers accumulates destination stages of waits applied to the
	// event.
	Barriers access.StageFlags
}

// IsIgnoredByWait classifies whether a wait command with the given source
// stages must ignore this event.
func (e *SyncEventState) IsIgnoredByWait(cmd Command, srcStages access.StageFlags) IgnoreReason {
	switch e.LastCmd {
	case CmdSetEvent, CmdSetEvent2:
		set2 := e.LastCmd == CmdSetEvent2
		wait2 := cmd == CmdWaitEvents2
		if set2 != wait2 {
			return SetVsWait2
		}
		if e.Scope.Mask&^srcStages != 0 {
			return MissingStageBits
		}
		return NotIgnored
	case CmdResetEvent:
		if e.Barriers != 0 {
			return NotIgnored
		}
		return ResetWaitRace
	case CmdResetEvent2:
		if e.Barriers != 0 {
			return NotIgnored
		}
		return Reset2WaitRace
	case CmdWaitEvents, CmdWaitEvents2:
		return SetRace
	default:
		return MissingSetEvent
	}
}

// SyncEventsContext tracks the event states of one recording or batch.
type SyncEventsContext struct {
	events map[state.Handle]*SyncEventState
}

// NewSyncEventsContext returns an empty events context.
func NewSyncEventsContext() *SyncEventsContext {
	return &SyncEventsContext{events: map[state.Handle]*SyncEventState{}}
}

// Get returns the tracked state for the event, creating it on first use.
func (c *SyncEventsContext) Get(h state.Handle) *SyncEventState {
	if e, ok := c.events[h]; ok {
		return e
	}
	e := &SyncEventState{Event: h}
	c.events[h] = e
	return e
}

// Lookup returns the tracked state for the event, or nil.
func (c *SyncEventsContext) Lookup(h state.Handle) *SyncEventState {
	return c.events[h]
}

// ApplyBarrier chains events whose scopes are covered by the source scope
// of a barrier into its destination scope. An all commands source covers
// every event, scope or not, which is what protects a reset from a later
// wait.
func (c *SyncEventsContext) ApplyBarrier(src, dst access.ExecScope) {
	allCommands := src.Mask&access.StageAllCommands == access.StageAllCommands
	for _, e := range c.events {
		if allCommands || e.Scope.Exec&src.Exec != 0 || e.Barriers&src.Exec != 0 {
			e.Barriers |= dst.Exec
		}
	}
}

// ApplyTaggedWait drops events whose last command is at or before the wait
// tag; their scopes are fully synchronized.
func (c *SyncEventsContext) ApplyTaggedWait(tag access.Tag) {
	for h, e := range c.events {
		if e.LastCmdTag <= tag {
			delete(c.events, h)
		}
	}
}

// DeepCopy returns an independent copy of the context.
func (c *SyncEventsContext) DeepCopy() *SyncEventsContext {
	out := NewSyncEventsContext()
	for h, e := range c.events {
		copy := *e
		out.events[h] = &copy
	}
	return out
}

// Merge imports the event states of other, overriding existing entries.
func (c *SyncEventsContext) Merge(other *SyncEventsContext) {
	for h, e := range other.events {
		copy := *e
		c.events[h] = &copy
	}
}

// Reset drops all tracked events.
func (c *SyncEventsContext) Reset() {
	c.events = map[state.Handle]*SyncEventState{}
}

// Len returns the number of tracked events.
func (c *SyncEventsContext) Len() int { return len(c.events) }
