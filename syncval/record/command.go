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

// Package record implements the per command buffer recording state of the
// validator: the recording access context, the recorded synchronization
// operations, the event state machine and the render pass instance
// bookkeeping, plus the replay of recorded command buffers at submit time.
package record

// Command names the operation that performed an access, for hazard
// provenance.
type Command int32

const (
	CmdNone Command = iota
	CmdCopyBuffer
	CmdCopyImage
	CmdCopyBufferToImage
	CmdCopyImageToBuffer
	CmdBlitImage
	CmdResolveImage
	CmdClearColorImage
	CmdClearDepthStencilImage
	CmdFillBuffer
	CmdUpdateBuffer
	CmdCopyQueryPoolResults
	CmdWriteBufferMarker
	CmdDraw
	CmdDrawIndexed
	CmdDrawIndirect
	CmdDrawIndexedIndirect
	CmdDrawIndirectCount
	CmdDispatch
	CmdDispatchIndirect
	CmdPipelineBarrier
	CmdPipelineBarrier2
	CmdSetEvent
	CmdSetEvent2
	CmdResetEvent
	CmdResetEvent2
	CmdWaitEvents
	CmdWaitEvents2
	CmdBeginRenderPass
	CmdNextSubpass
	CmdEndRenderPass
	CmdBeginRendering
	CmdEndRendering
	CmdExecuteCommands
	CmdQueueSubmit
	CmdQueueSubmit2
	CmdQueuePresent
	CmdAcquireNextImage
	CmdQueueWaitIdle
	CmdDeviceWaitIdle

	commandCount
)

var commandNames = [commandCount]string{
	CmdNone:                   "<none>",
	CmdCopyBuffer:             "vkCmdCopyBuffer",
	CmdCopyImage:              "vkCmdCopyImage",
	CmdCopyBufferToImage:      "vkCmdCopyBufferToImage",
	CmdCopyImageToBuffer:      "vkCmdCopyImageToBuffer",
	CmdBlitImage:              "vkCmdBlitImage",
	CmdResolveImage:           "vkCmdResolveImage",
	CmdClearColorImage:        "vkCmdClearColorImage",
	CmdClearDepthStencilImage: "vkCmdClearDepthStencilImage",
	CmdFillBuffer:             "vkCmdFillBuffer",
	CmdUpdateBuffer:           "vkCmdUpdateBuffer",
	CmdCopyQueryPoolResults:   "vkCmdCopyQueryPoolResults",
	CmdWriteBufferMarker:      "vkCmdWriteBufferMarkerAMD",
	CmdDraw:                   "vkCmdDraw",
	CmdDrawIndexed:            "vkCmdDrawIndexed",
	CmdDrawIndirect:           "vkCmdDrawIndirect",
	CmdDrawIndexedIndirect:    "vkCmdDrawIndexedIndirect",
	CmdDrawIndirectCount:      "vkCmdDrawIndirectCount",
	CmdDispatch:               "vkCmdDispatch",
	CmdDispatchIndirect:       "vkCmdDispatchIndirect",
	CmdPipelineBarrier:        "vkCmdPipelineBarrier",
	CmdPipelineBarrier2:       "vkCmdPipelineBarrier2",
	CmdSetEvent:               "vkCmdSetEvent",
	CmdSetEvent2:              "vkCmdSetEvent2",
	CmdResetEvent:             "vkCmdResetEvent",
	CmdResetEvent2:            "vkCmdResetEvent2",
	CmdWaitEvents:             "vkCmdWaitEvents",
	CmdWaitEvents2:            "vkCmdWaitEvents2",
	CmdBeginRenderPass:        "vkCmdBeginRenderPass",
	CmdNextSubpass:            "vkCmdNextSubpass",
	CmdEndRenderPass:          "vkCmdEndRenderPass",
	CmdBeginRendering:         "vkCmdBeginRendering",
	CmdEndRendering:           "vkCmdEndRendering",
	CmdExecuteCommands:        "vkCmdExecuteCommands",
	CmdQueueSubmit:            "vkQueueSubmit",
	CmdQueueSubmit2:           "vkQueueSubmit2",
	CmdQueuePresent:           "vkQueuePresentKHR",
	CmdAcquireNextImage:       "vkAcquireNextImageKHR",
	CmdQueueWaitIdle:          "vkQueueWaitIdle",
	CmdDeviceWaitIdle:         "vkDeviceWaitIdle",
}

func (c Command) String() string { return commandNames[c] }
