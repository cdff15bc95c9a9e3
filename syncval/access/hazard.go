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

// HazardKind classifies a detected synchronization hazard.
type HazardKind int32

const (
	HazardNone HazardKind = iota
	HazardReadAfterWrite
	HazardWriteAfterRead
	HazardWriteAfterWrite
	HazardReadRacingWrite
	HazardWriteRacingWrite
	HazardWriteRacingRead
	HazardReadAfterPresent
	HazardWriteAfterPresent
	HazardPresentAfterWrite
	HazardPresentAfterRead
)

var hazardNames = map[HazardKind]string{
	HazardNone:              "NONE",
	HazardReadAfterWrite:    "READ_AFTER_WRITE",
	HazardWriteAfterRead:    "WRITE_AFTER_READ",
	HazardWriteAfterWrite:   "WRITE_AFTER_WRITE",
	HazardReadRacingWrite:   "READ_RACING_WRITE",
	HazardWriteRacingWrite:  "WRITE_RACING_WRITE",
	HazardWriteRacingRead:   "WRITE_RACING_READ",
	HazardReadAfterPresent:  "READ_AFTER_PRESENT",
	HazardWriteAfterPresent: "WRITE_AFTER_PRESENT",
	HazardPresentAfterWrite: "PRESENT_AFTER_WRITE",
	HazardPresentAfterRead:  "PRESENT_AFTER_READ",
}

func (k HazardKind) String() string { return hazardNames[k] }

// HazardResult is the outcome of a hazard check.
type HazardResult struct {
	Kind HazardKind
	// Usage is the access that was being checked.
	Usage Usage
	// PriorUsage is the recorded access the check conflicted with.
	PriorUsage Usage
	// PriorTag is the tag of the conflicting recorded access.
	PriorTag Tag
	// Range is the address range on which the conflict was found.
	Range interval.U64Span
}

// IsHazard returns true if a hazard was detected.
func (h HazardResult) IsHazard() bool { return h.Kind != HazardNone }

func hazard(kind HazardKind, usage, prior Usage, tag Tag) HazardResult {
	return HazardResult{Kind: kind, Usage: usage, PriorUsage: prior, PriorTag: tag}
}
