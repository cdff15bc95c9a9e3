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
	"sort"

	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/record"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// BatchRecord identifies the submission a tag range came from.
type BatchRecord struct {
	Queue       state.Handle
	SubmitIndex uint64
	BatchIndex  uint32
}

// AccessRecord is the resolved provenance of one tag.
type AccessRecord struct {
	Batch         BatchRecord
	CommandBuffer state.Handle
	Cmd           record.Command
	Tag           access.Tag
}

// logEntry maps one contiguous global tag range back to the command buffer
// whose replay produced it.
type logEntry struct {
	rng           access.TagRange
	batch         BatchRecord
	commandBuffer state.Handle
	// commands is indexed by tag - rng.Begin.
	commands []record.CommandRecord
}

// BatchAccessLog resolves global tags back to the commands that produced
// them. Entries are kept sorted by tag range; ranges never overlap because
// tags are never reused.
type BatchAccessLog struct {
	entries []logEntry
}

// Insert records the provenance of the tag range produced by replaying a
// command buffer.
func (l *BatchAccessLog) Insert(batch BatchRecord, cb state.Handle, rng access.TagRange, commands []record.CommandRecord) {
	e := logEntry{rng: rng, batch: batch, commandBuffer: cb, commands: commands}
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].rng.Begin >= rng.Begin
	})
	l.entries = append(l.entries, logEntry{})
	copy(l.entries[i+1:], l.entries[i:])
	l.entries[i] = e
}

// MergeFrom imports the entries of another log.
func (l *BatchAccessLog) MergeFrom(other *BatchAccessLog) {
	for _, e := range other.entries {
		l.Insert(e.batch, e.commandBuffer, e.rng, e.commands)
	}
}

func (l *BatchAccessLog) find(tag access.Tag) *logEntry {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].rng.End > tag
	})
	if i < len(l.entries) && l.entries[i].rng.Includes(tag) {
		return &l.entries[i]
	}
	return nil
}

// GetRecord resolves a tag, or returns false if the range was trimmed.
func (l *BatchAccessLog) GetRecord(tag access.Tag) (AccessRecord, bool) {
	e := l.find(tag)
	if e == nil {
		return AccessRecord{}, false
	}
	out := AccessRecord{Batch: e.batch, CommandBuffer: e.commandBuffer, Tag: tag}
	if i := int(tag - e.rng.Begin); i < len(e.commands) {
		out.Cmd = e.commands[i].Cmd
	}
	return out, true
}

// Trim drops entries whose tag range contains no live tag. live must be
// sorted. Both sequences are walked once in parallel.
func (l *BatchAccessLog) Trim(live []access.Tag) {
	kept := l.entries[:0]
	li := 0
	for _, e := range l.entries {
		for li < len(live) && live[li] < e.rng.Begin {
			li++
		}
		if li < len(live) && e.rng.Includes(live[li]) {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// Len returns the number of retained entries.
func (l *BatchAccessLog) Len() int { return len(l.entries) }

// sortedTags flattens a tag set into sorted order for Trim.
func sortedTags(set map[access.Tag]struct{}) []access.Tag {
	out := make([]access.Tag, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
