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

// Package compare provides deep comparison of arbitrary values, with
// difference reporting and support for custom per-type comparators.
package compare

// sentinel is the type of the special marker values used in difference
// reporting and flow control.
type sentinel string

func (s sentinel) String() string { return string(s) }

const (
	// Missing is used in diff paths in place of a value that is absent from
	// one side of the comparison.
	Missing = sentinel("⚠ Missing")

	// LimitReached may be panicked from a Handler to abort further difference
	// processing. It is absorbed by the comparison driver.
	LimitReached = sentinel("⚠ Limit reached")
)

// Register assigns the function f with signature func(Comparator, T, T) to be
// used as the global comparator for instances of type T. f may return nothing
// or an Action.
// Register will panic if f does not match the expected signature, or if a
// comparator for type T has already been registered.
func Register(f interface{}) { globalCustom.Register(f) }

// Compare delivers all the differences it finds between reference and value
// to the specified Handler, using the globally registered custom comparators.
// If the reference and value are equal, the handler will never be invoked.
func Compare(reference, value interface{}, handler Handler) {
	compare(reference, value, handler, globalCustom)
}

// DeepEqual compares a value against a reference using the globally registered
// custom comparators and returns true if they are equal.
func DeepEqual(reference, value interface{}) bool {
	var d test
	Compare(reference, value, d.set)
	return !bool(d)
}

// Diff returns the differences between the reference and the value, using the
// globally registered custom comparators.
// The maximum number of differences is controlled by limit, which must be >0.
// If they compare equal, the length of the returned slice will be 0.
func Diff(reference, value interface{}, limit int) []Path {
	diffs := make(collect, 0, limit)
	Compare(reference, value, diffs.add)
	return ([]Path)(diffs)
}

func compare(reference, value interface{}, handler Handler, custom *Custom) {
	defer func() {
		if err := recover(); err != nil && err != LimitReached {
			panic(err)
		}
	}()
	t := Comparator{Handler: handler, seen: seen{}, custom: custom}
	t.Compare(reference, value)
}
