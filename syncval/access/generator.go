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
	"github.com/zmike/Vulkan-ValidationLayers/core/math/interval"
	"github.com/zmike/Vulkan-ValidationLayers/core/math/u64"
)

// RangeGen is a single forward pass generator of address ranges. Generators
// yield non-overlapping ranges in increasing address order.
type RangeGen interface {
	// Next returns the next range, or false when the generator is exhausted.
	Next() (interval.U64Span, bool)
}

// SingleRangeGen yields exactly one range.
type SingleRangeGen struct {
	span interval.U64Span
	done bool
}

// NewSingleRangeGen returns a generator yielding only span.
func NewSingleRangeGen(span interval.U64Span) *SingleRangeGen {
	return &SingleRangeGen{span: span}
}

func (g *SingleRangeGen) Next() (interval.U64Span, bool) {
	if g.done || g.span.Start >= g.span.End {
		return interval.U64Span{}, false
	}
	g.done = true
	return g.span, true
}

// SpanSliceGen yields the ranges of a slice in order.
type SpanSliceGen struct {
	spans []interval.U64Span
	next  int
}

// NewSpanSliceGen returns a generator over the given spans, which must be
// sorted and non-overlapping.
func NewSpanSliceGen(spans []interval.U64Span) *SpanSliceGen {
	return &SpanSliceGen{spans: spans}
}

func (g *SpanSliceGen) Next() (interval.U64Span, bool) {
	for g.next < len(g.spans) {
		s := g.spans[g.next]
		g.next++
		if s.Start < s.End {
			return s, true
		}
	}
	return interval.U64Span{}, false
}

// CollectSpans drains a generator into a slice, for passes that need to
// visit the ranges more than once.
func CollectSpans(g RangeGen) []interval.U64Span {
	var out []interval.U64Span
	for s, ok := g.Next(); ok; s, ok = g.Next() {
		out = append(out, s)
	}
	return out
}

// Entry is one access map entry clipped to a generator range.
type Entry struct {
	Span  interval.U64Span
	State *ResourceAccessState
	// Index is the position of the entry in the access map.
	Index int
}

// entryRetryLimit is the number of linear advances an EntryGen attempts
// before falling back to a binary search re-seek. Generator ranges are
// usually adjacent or near-adjacent to the previous one, so a couple of
// linear steps are cheaper than a search.
const entryRetryLimit = 2

// EntryGen is a single forward pass generator over the intersection of an
// access map and a range generator. It yields map entries clipped to the
// generated ranges; gaps in the map produce no entries.
type EntryGen struct {
	list  *interval.ValueSpanList
	src   RangeGen
	cur   interval.U64Span
	valid bool
	index int
}

// NewEntryGen returns a generator over the entries of list that intersect
// the ranges produced by src.
func NewEntryGen(list *interval.ValueSpanList, src RangeGen) *EntryGen {
	g := &EntryGen{list: list, src: src, index: 0}
	g.cur, g.valid = src.Next()
	if g.valid {
		g.seek()
	}
	return g
}

// seek positions index at the first entry ending after cur.Start.
func (g *EntryGen) seek() {
	g.index = interval.Search(g.list, func(test interval.U64Span) bool {
		return g.cur.Start < test.End
	})
}

// advance moves index forward to the first entry ending after cur.Start,
// retrying linearly before re-seeking.
func (g *EntryGen) advance() {
	for retry := 0; g.index < g.list.Length(); retry++ {
		if g.cur.Start < g.list.GetSpan(g.index).End {
			return
		}
		if retry >= entryRetryLimit {
			g.seek()
			return
		}
		g.index++
	}
}

func (g *EntryGen) Next() (Entry, bool) {
	for g.valid {
		g.advance()
		if g.index >= g.list.Length() {
			return Entry{}, false
		}
		span := g.list.GetSpan(g.index)
		if span.Start >= g.cur.End {
			// No overlap with the current range; move to the next one.
			g.cur, g.valid = g.src.Next()
			continue
		}
		clipped := interval.U64Span{
			Start: u64.Max(span.Start, g.cur.Start),
			End:   u64.Min(span.End, g.cur.End),
		}
		out := Entry{
			Span:  clipped,
			State: g.list.GetValue(g.index).(*ResourceAccessState),
			Index: g.index,
		}
		// Consume the clipped part of the current range.
		g.cur.Start = clipped.End
		if g.cur.Start >= g.cur.End {
			g.cur, g.valid = g.src.Next()
		} else {
			g.index++
		}
		return out, true
	}
	return Entry{}, false
}
