// Copyright (C) 2017 Google Inc.
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

// Package interval provides algorithms for merging, removing, replacing and
// querying sorted lists of non-overlapping half open intervals.
package interval

type (
	// List is the interface to an object that can be used as an interval list
	// by the algorithms in this package.
	List interface {
		// Length returns the number of elements in the list
		Length() int
		// GetSpan returns the span for the element at index in the list
		GetSpan(index int) U64Span
	}

	// MutableList is a list that can be modified by the algorithms in this
	// package.
	MutableList interface {
		List
		// SetSpan sets the span for the element at index in the list
		SetSpan(index int, span U64Span)
		// New creates a new element at the specifed index with the specified span
		New(index int, span U64Span)
		// Copy count list entries
		Copy(to, from, count int)
		// Resize adjusts the length of the array
		Resize(length int)
	}

	// Predicate is used as the condition for a Search
	Predicate func(test U64Span) bool
)

// IndexOf returns the index of the span the value is a part of, or -1 if not found
func IndexOf(l List, value uint64) int {
	return findSpanFor(l, value)
}

// Contains returns true if the value is found inside one of the intervals.
func Contains(l List, value uint64) bool {
	return findSpanFor(l, value) >= 0
}

// Merge adds a span to the list, merging it with existing spans if it overlaps
// them, and returns the index of that span.
// If joinAdj is true, spans that are directly adjacent to the added span will
// be merged as well.
func Merge(l MutableList, span U64Span, joinAdj bool) int {
	return merge(l, span, joinAdj)
}

// Replace adds a span to the list, cutting existing spans so the new span
// takes precedence over them, and returns the index of that span.
func Replace(l MutableList, span U64Span) int {
	index, span := cut(l, span, true)
	l.New(index, span)
	return index
}

// Remove cuts the span out of the list, slicing existing spans that overlap
// the removed section, and returns the index at which the span was removed.
func Remove(l MutableList, span U64Span) int {
	index, _ := cut(l, span, false)
	return index
}

// Intersect finds the intervals from the list that overlap with the span.
// It returns the index of the first intersecting interval and the count of
// intervals that intersect.
func Intersect(l List, span U64Span) (first, count int) {
	s := intersection{}
	s.intersect(l, span, false)
	return s.lowIndex, s.overlap
}

// Search returns the index of the first interval in the list that matches the
// predicate, or the length of the list if no interval matches.
func Search(l List, t Predicate) int {
	return search(l, t)
}
