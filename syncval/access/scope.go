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

// ExecScope is one side of a synchronization scope: the stage mask as given
// by the application, the mask after meta stage expansion, and the mask
// after pipeline order widening.
type ExecScope struct {
	// Mask is the unexpanded stage mask.
	Mask StageFlags
	// Expanded is the mask with ALL_* meta stages resolved.
	Expanded StageFlags
	// Exec is the expanded mask widened with logically earlier stages for
	// source scopes, or later stages for destination scopes.
	Exec StageFlags
	// ValidAccesses are the access types performable by the expanded stages.
	ValidAccesses AccessFlags
}

// MakeSrcScope builds the source execution scope for a barrier on a queue
// with the given capabilities.
func MakeSrcScope(queueFlags QueueFlags, stages StageFlags) ExecScope {
	expanded := ExpandStages(stages, queueFlags)
	return ExecScope{
		Mask:          stages,
		Expanded:      expanded,
		Exec:          WithEarlierStages(expanded),
		ValidAccesses: ValidAccesses(expanded),
	}
}

// MakeDstScope builds the destination execution scope for a barrier on a
// queue with the given capabilities.
func MakeDstScope(queueFlags QueueFlags, stages StageFlags) ExecScope {
	expanded := ExpandStages(stages, queueFlags)
	return ExecScope{
		Mask:          stages,
		Expanded:      expanded,
		Exec:          WithLaterStages(expanded),
		ValidAccesses: ValidAccesses(expanded),
	}
}

// Barrier is a single memory dependency: accesses in the source scope are
// made available, and execution and visibility are extended to the
// destination scope.
type Barrier struct {
	Src      ExecScope
	SrcScope UsageFlags
	Dst      ExecScope
	DstScope UsageFlags
}

// NewBarrier builds a barrier from application stage and access masks.
func NewBarrier(queueFlags QueueFlags, srcStages StageFlags, srcAccess AccessFlags, dstStages StageFlags, dstAccess AccessFlags) Barrier {
	src := MakeSrcScope(queueFlags, srcStages)
	dst := MakeDstScope(queueFlags, dstStages)
	return Barrier{
		Src:      src,
		SrcScope: AccessScope(src.Expanded, srcAccess&src.ValidAccesses),
		Dst:      dst,
		DstScope: AccessScope(dst.Expanded, dstAccess&dst.ValidAccesses),
	}
}

// Ordering selects the implicit ordering guarantee that applies to an
// access.
type Ordering int32

const (
	// OrderingNone applies no implicit ordering.
	OrderingNone Ordering = iota
	// OrderingColorAttachment applies rasterization order to color
	// attachment accesses within a render pass instance.
	OrderingColorAttachment
	// OrderingDepthStencilAttachment applies rasterization order to depth
	// and stencil attachment accesses within a render pass instance.
	OrderingDepthStencilAttachment
	// OrderingRaster applies rasterization order to both color and depth
	// stencil attachment accesses.
	OrderingRaster

	orderingCount
)

// OrderingBarrier is the scope of an implicit ordering guarantee.
type OrderingBarrier struct {
	Exec  StageFlags
	Scope UsageFlags
}

var orderingRules [orderingCount]OrderingBarrier

func init() {
	colorExec := StageColorAttachmentOutput
	colorScope := AccessScope(colorExec, AccessColorAttachmentRead|AccessColorAttachmentWrite) |
		AccessScope(StageFragmentShader, AccessInputAttachmentRead)
	dsExec := StageEarlyFragmentTests | StageLateFragmentTests
	dsScope := AccessScope(dsExec, AccessDepthStencilAttachmentRead|AccessDepthStencilAttachmentWrite)
	orderingRules = [orderingCount]OrderingBarrier{
		OrderingNone:                   {},
		OrderingColorAttachment:        {colorExec, colorScope},
		OrderingDepthStencilAttachment: {dsExec, dsScope},
		OrderingRaster:                 {colorExec | dsExec, colorScope | dsScope},
	}
}

// Rule returns the ordering scope for the ordering class.
func (o Ordering) Rule() OrderingBarrier { return orderingRules[o] }
