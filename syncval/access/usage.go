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

// Package access implements the per-resource access bookkeeping used to
// detect synchronization hazards in recorded and submitted command streams.
//
// Resources are modelled as ranges over a linearized u64 address space.
// Every memory access performed by a command is classified as a (stage,
// access) usage pair, and recorded against the ranges it touches together
// with the tag of the command that performed it. Hazard detection compares
// a proposed usage against the recorded accesses, taking into account the
// barriers, semaphores and events that have been applied since.
package access

import "math"

// Tag identifies a single command in the global submission order.
// Tags are never reused and never decrease.
type Tag uint64

// InvalidTag is a tag value that is never assigned to a command.
const InvalidTag = Tag(math.MaxUint64)

// TagRange is a half open range of tags.
type TagRange struct {
	Begin Tag
	End   Tag
}

// Includes returns true if tag is inside the range.
func (r TagRange) Includes(tag Tag) bool { return r.Begin <= tag && tag < r.End }

// Count returns the number of tags in the range.
func (r TagRange) Count() uint64 { return uint64(r.End - r.Begin) }

// QueueID identifies a queue within the validator.
type QueueID uint32

const (
	// QueueIDInvalid marks accesses that were not made on any queue
	// (command buffer recording, host operations).
	QueueIDInvalid = QueueID(math.MaxUint32)
	// QueueAny matches any queue in wait predicates.
	QueueAny = QueueID(math.MaxUint32 - 1)
)

// QueueFlags describes the capabilities of a queue family.
type QueueFlags uint32

const (
	QueueGraphics QueueFlags = 1 << iota
	QueueCompute
	QueueTransfer
)

// StageFlags is a bitmask of pipeline stages, in execution pipeline order
// per capability class.
type StageFlags uint64

const (
	StageTopOfPipe StageFlags = 1 << iota
	StageDrawIndirect
	StageIndexInput
	StageVertexAttributeInput
	StageVertexShader
	StageEarlyFragmentTests
	StageFragmentShader
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageComputeShader
	StageCopy
	StageBlit
	StageResolve
	StageClear
	StageBottomOfPipe
	StageHost
	StagePresentEngine

	StageNone          = StageFlags(0)
	StageVertexInput   = StageIndexInput | StageVertexAttributeInput
	StageAllTransfer   = StageCopy | StageBlit | StageResolve | StageClear
	StageAllGraphics   = StageDrawIndirect | StageVertexInput | StageVertexShader | StageEarlyFragmentTests | StageFragmentShader | StageLateFragmentTests | StageColorAttachmentOutput
	StageAllCommands   = StageAllGraphics | StageComputeShader | StageAllTransfer
	stageDeviceAll     = StageAllCommands | StageTopOfPipe | StageBottomOfPipe
	stageHostOrPresent = StageHost | StagePresentEngine
)

// AccessFlags is a bitmask of memory access types.
type AccessFlags uint64

const (
	AccessIndirectCommandRead AccessFlags = 1 << iota
	AccessIndexRead
	AccessVertexAttributeRead
	AccessUniformRead
	AccessShaderSampledRead
	AccessShaderStorageRead
	AccessShaderStorageWrite
	AccessInputAttachmentRead
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
	AccessTransferRead
	AccessTransferWrite
	AccessHostRead
	AccessHostWrite
	AccessPresentAcquireRead

	AccessNone       = AccessFlags(0)
	AccessMemoryRead = AccessIndirectCommandRead | AccessIndexRead | AccessVertexAttributeRead |
		AccessUniformRead | AccessShaderSampledRead | AccessShaderStorageRead |
		AccessInputAttachmentRead | AccessColorAttachmentRead | AccessDepthStencilAttachmentRead |
		AccessTransferRead | AccessHostRead
	AccessMemoryWrite = AccessShaderStorageWrite | AccessColorAttachmentWrite |
		AccessDepthStencilAttachmentWrite | AccessTransferWrite | AccessHostWrite
)

// Usage enumerates the distinct (stage, access) pairs the validator records.
type Usage int32

const (
	UsageNone Usage = iota
	UsageDrawIndirectRead
	UsageIndexRead
	UsageVertexAttributeRead
	UsageVertexShaderUniformRead
	UsageVertexShaderStorageRead
	UsageVertexShaderStorageWrite
	UsageFragmentShaderUniformRead
	UsageFragmentShaderSampledRead
	UsageFragmentShaderStorageRead
	UsageFragmentShaderStorageWrite
	UsageFragmentShaderInputAttachmentRead
	UsageColorAttachmentRead
	UsageColorAttachmentWrite
	UsageDepthStencilEarlyRead
	UsageDepthStencilEarlyWrite
	UsageDepthStencilLateRead
	UsageDepthStencilLateWrite
	UsageComputeUniformRead
	UsageComputeStorageRead
	UsageComputeStorageWrite
	UsageCopyRead
	UsageCopyWrite
	UsageBlitRead
	UsageBlitWrite
	UsageResolveRead
	UsageResolveWrite
	UsageClearWrite
	UsageHostRead
	UsageHostWrite
	UsageImageLayoutTransition
	UsagePresent
	UsageAcquireRead

	usageCount
)

// UsageInfo describes the stage and access of a Usage.
type UsageInfo struct {
	Name   string
	Stage  StageFlags
	Access AccessFlags
	Write  bool
}

var usageInfos = [usageCount]UsageInfo{
	UsageNone:                              {"NONE", StageNone, AccessNone, false},
	UsageDrawIndirectRead:                  {"DRAW_INDIRECT_READ", StageDrawIndirect, AccessIndirectCommandRead, false},
	UsageIndexRead:                         {"INDEX_READ", StageIndexInput, AccessIndexRead, false},
	UsageVertexAttributeRead:               {"VERTEX_ATTRIBUTE_READ", StageVertexAttributeInput, AccessVertexAttributeRead, false},
	UsageVertexShaderUniformRead:           {"VERTEX_SHADER_UNIFORM_READ", StageVertexShader, AccessUniformRead, false},
	UsageVertexShaderStorageRead:           {"VERTEX_SHADER_STORAGE_READ", StageVertexShader, AccessShaderStorageRead, false},
	UsageVertexShaderStorageWrite:          {"VERTEX_SHADER_STORAGE_WRITE", StageVertexShader, AccessShaderStorageWrite, true},
	UsageFragmentShaderUniformRead:         {"FRAGMENT_SHADER_UNIFORM_READ", StageFragmentShader, AccessUniformRead, false},
	UsageFragmentShaderSampledRead:         {"FRAGMENT_SHADER_SAMPLED_READ", StageFragmentShader, AccessShaderSampledRead, false},
	UsageFragmentShaderStorageRead:         {"FRAGMENT_SHADER_STORAGE_READ", StageFragmentShader, AccessShaderStorageRead, false},
	UsageFragmentShaderStorageWrite:        {"FRAGMENT_SHADER_STORAGE_WRITE", StageFragmentShader, AccessShaderStorageWrite, true},
	UsageFragmentShaderInputAttachmentRead: {"FRAGMENT_SHADER_INPUT_ATTACHMENT_READ", StageFragmentShader, AccessInputAttachmentRead, false},
	UsageColorAttachmentRead:               {"COLOR_ATTACHMENT_READ", StageColorAttachmentOutput, AccessColorAttachmentRead, false},
	UsageColorAttachmentWrite:              {"COLOR_ATTACHMENT_WRITE", StageColorAttachmentOutput, AccessColorAttachmentWrite, true},
	UsageDepthStencilEarlyRead:             {"EARLY_FRAGMENT_TESTS_DEPTH_STENCIL_READ", StageEarlyFragmentTests, AccessDepthStencilAttachmentRead, false},
	UsageDepthStencilEarlyWrite:            {"EARLY_FRAGMENT_TESTS_DEPTH_STENCIL_WRITE", StageEarlyFragmentTests, AccessDepthStencilAttachmentWrite, true},
	UsageDepthStencilLateRead:              {"LATE_FRAGMENT_TESTS_DEPTH_STENCIL_READ", StageLateFragmentTests, AccessDepthStencilAttachmentRead, false},
	UsageDepthStencilLateWrite:             {"LATE_FRAGMENT_TESTS_DEPTH_STENCIL_WRITE", StageLateFragmentTests, AccessDepthStencilAttachmentWrite, true},
	UsageComputeUniformRead:                {"COMPUTE_SHADER_UNIFORM_READ", StageComputeShader, AccessUniformRead, false},
	UsageComputeStorageRead:                {"COMPUTE_SHADER_STORAGE_READ", StageComputeShader, AccessShaderStorageRead, false},
	UsageComputeStorageWrite:               {"COMPUTE_SHADER_STORAGE_WRITE", StageComputeShader, AccessShaderStorageWrite, true},
	UsageCopyRead:                          {"COPY_TRANSFER_READ", StageCopy, AccessTransferRead, false},
	UsageCopyWrite:                         {"COPY_TRANSFER_WRITE", StageCopy, AccessTransferWrite, true},
	UsageBlitRead:                          {"BLIT_TRANSFER_READ", StageBlit, AccessTransferRead, false},
	UsageBlitWrite:                         {"BLIT_TRANSFER_WRITE", StageBlit, AccessTransferWrite, true},
	UsageResolveRead:                       {"RESOLVE_TRANSFER_READ", StageResolve, AccessTransferRead, false},
	UsageResolveWrite:                      {"RESOLVE_TRANSFER_WRITE", StageResolve, AccessTransferWrite, true},
	UsageClearWrite:                        {"CLEAR_TRANSFER_WRITE", StageClear, AccessTransferWrite, true},
	UsageHostRead:                          {"HOST_READ", StageHost, AccessHostRead, false},
	UsageHostWrite:                         {"HOST_WRITE", StageHost, AccessHostWrite, true},
	UsageImageLayoutTransition:             {"IMAGE_LAYOUT_TRANSITION", StageNone, AccessNone, true},
	UsagePresent:                           {"PRESENT_ENGINE_PRESENTED", StagePresentEngine, AccessNone, true},
	UsageAcquireRead:                       {"PRESENT_ENGINE_ACQUIRE_READ", StagePresentEngine, AccessPresentAcquireRead, false},
}

// Info returns the stage and access description of the usage.
func (u Usage) Info() *UsageInfo { return &usageInfos[u] }

// IsWrite returns true if the usage writes the resource.
func (u Usage) IsWrite() bool { return usageInfos[u].Write }

func (u Usage) String() string { return usageInfos[u].Name }

// UsageFlags is a bitmask with one bit per Usage.
type UsageFlags uint64

// Bit returns the UsageFlags bit for the usage.
func (u Usage) Bit() UsageFlags { return UsageFlags(1) << uint(u) }

// Has returns true if the usage's bit is set in the mask.
func (f UsageFlags) Has(u Usage) bool { return f&u.Bit() != 0 }

// AccessScope returns the set of usages that are performed on one of the
// given stages with one of the given access types.
func AccessScope(stages StageFlags, accesses AccessFlags) UsageFlags {
	scope := UsageFlags(0)
	for u := Usage(1); u < usageCount; u++ {
		info := &usageInfos[u]
		if info.Stage&stages != 0 && info.Access&accesses != 0 {
			scope |= u.Bit()
		}
	}
	return scope
}

// StageScope returns the set of all usages performed on the given stages.
func StageScope(stages StageFlags) UsageFlags {
	scope := UsageFlags(0)
	for u := Usage(1); u < usageCount; u++ {
		if usageInfos[u].Stage&stages != 0 {
			scope |= u.Bit()
		}
	}
	return scope
}

// ValidAccesses returns the access types that can be performed on the given
// stages.
func ValidAccesses(stages StageFlags) AccessFlags {
	accesses := AccessFlags(0)
	for u := Usage(1); u < usageCount; u++ {
		if usageInfos[u].Stage&stages != 0 {
			accesses |= usageInfos[u].Access
		}
	}
	return accesses
}

// pipeline orders used to expand a stage mask with logically earlier or
// later stages.
var pipelineOrders = [][]StageFlags{
	{StageTopOfPipe, StageDrawIndirect, StageIndexInput, StageVertexAttributeInput, StageVertexShader,
		StageEarlyFragmentTests, StageFragmentShader, StageLateFragmentTests, StageColorAttachmentOutput,
		StageBottomOfPipe},
	{StageTopOfPipe, StageDrawIndirect, StageComputeShader, StageBottomOfPipe},
	{StageTopOfPipe, StageCopy, StageBottomOfPipe},
	{StageTopOfPipe, StageBlit, StageBottomOfPipe},
	{StageTopOfPipe, StageResolve, StageBottomOfPipe},
	{StageTopOfPipe, StageClear, StageBottomOfPipe},
}

// ExpandStages resolves the ALL_* meta stages against the capabilities of
// the queue. The meta stages are unions of real stage bits, so resolution
// is dropping the bits the queue cannot execute.
func ExpandStages(stages StageFlags, queueFlags QueueFlags) StageFlags {
	supported := StageTopOfPipe | StageBottomOfPipe | stageHostOrPresent
	if queueFlags&(QueueTransfer|QueueGraphics|QueueCompute) != 0 {
		supported |= StageAllTransfer
	}
	if queueFlags&QueueGraphics != 0 {
		supported |= StageAllGraphics
	}
	if queueFlags&(QueueCompute|QueueGraphics) != 0 {
		supported |= StageComputeShader | StageDrawIndirect
	}
	return stages & supported
}

// WithEarlierStages returns the mask extended with all stages that are
// logically earlier in any pipeline containing a stage of the mask.
func WithEarlierStages(stages StageFlags) StageFlags {
	out := stages
	for _, order := range pipelineOrders {
		latest := -1
		for i, s := range order {
			if stages&s != 0 {
				latest = i
			}
		}
		for i := 0; i < latest; i++ {
			out |= order[i]
		}
	}
	return out
}

// WithLaterStages returns the mask extended with all stages that are
// logically later in any pipeline containing a stage of the mask.
func WithLaterStages(stages StageFlags) StageFlags {
	out := stages
	for _, order := range pipelineOrders {
		earliest := len(order)
		for i := len(order) - 1; i >= 0; i-- {
			if stages&order[i] != 0 {
				earliest = i
			}
		}
		for i := earliest + 1; i < len(order); i++ {
			out |= order[i]
		}
	}
	return out
}
