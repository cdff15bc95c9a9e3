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
	"context"
	"fmt"

	"github.com/zmike/Vulkan-ValidationLayers/core/log"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/access"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/record"
	"github.com/zmike/Vulkan-ValidationLayers/syncval/state"
)

// HazardReport is one detected hazard with its provenance.
type HazardReport struct {
	Hazard access.HazardResult
	// Command is the operation that performed the checked access.
	Command record.Command
	// CommandBuffer is the recording the access came from, if any.
	CommandBuffer state.Handle
	// Queue is the queue the batch executed on; zero for recording time
	// hazards.
	Queue state.Handle
	// Prior is the provenance of the conflicting access, when the access
	// log still retains it.
	Prior *AccessRecord
}

func (r HazardReport) String() string {
	s := fmt.Sprintf("%v: %v access %v conflicts with prior %v (tag %d)",
		r.Hazard.Kind, r.Command, r.Hazard.Usage, r.Hazard.PriorUsage, r.Hazard.PriorTag)
	if r.Prior != nil {
		s += fmt.Sprintf(", recorded by %v", r.Prior.Cmd)
	}
	return s
}

// Reporter is the sink hazards are delivered to.
type Reporter interface {
	Report(ctx context.Context, r HazardReport)
}

// LogReporter reports hazards as warnings on the context logger.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, r HazardReport) {
	log.W(ctx, "%v", r)
}

// CollectReporter retains every report, for tests.
type CollectReporter struct {
	Reports []HazardReport
}

func (c *CollectReporter) Report(ctx context.Context, r HazardReport) {
	c.Reports = append(c.Reports, r)
}
