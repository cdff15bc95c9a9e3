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

package log

import (
	"context"
	"time"
)

type contextKey string

const (
	handlerKey     contextKey = "log.handler"
	filterKey      contextKey = "log.filter"
	clockKey       contextKey = "log.clock"
	tagKey         contextKey = "log.tag"
	processKey     contextKey = "log.process"
	traceKey       contextKey = "log.trace"
	valuesKey      contextKey = "log.values"
	stacktracerKey contextKey = "log.stacktracer"
)

// Clock is the interface to an object that provides message timestamps.
type Clock interface {
	Time() time.Time
}

// FixedClock is a Clock that returns a fixed time, used for testing.
type FixedClock time.Time

func (c FixedClock) Time() time.Time { return time.Time(c) }

// Stacktracer is a function that returns the current callstack.
type Stacktracer func() []string

// PutHandler returns a new context with the Handler assigned to w.
func PutHandler(ctx context.Context, w Handler) context.Context {
	return context.WithValue(ctx, handlerKey, w)
}

// GetHandler returns the Handler assigned to ctx.
func GetHandler(ctx context.Context) Handler {
	out, _ := ctx.Value(handlerKey).(Handler)
	return out
}

// PutFilter returns a new context with the Filter assigned to f.
func PutFilter(ctx context.Context, f Filter) context.Context {
	return context.WithValue(ctx, filterKey, f)
}

// GetFilter returns the Filter assigned to ctx.
func GetFilter(ctx context.Context) Filter {
	out, _ := ctx.Value(filterKey).(Filter)
	return out
}

// PutClock returns a new context with the Clock assigned to c.
func PutClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey, c)
}

// GetClock returns the Clock assigned to ctx.
func GetClock(ctx context.Context) Clock {
	out, _ := ctx.Value(clockKey).(Clock)
	return out
}

// PutTag returns a new context with the tag assigned to t.
func PutTag(ctx context.Context, t string) context.Context {
	return context.WithValue(ctx, tagKey, t)
}

// GetTag returns the tag assigned to ctx.
func GetTag(ctx context.Context) string {
	out, _ := ctx.Value(tagKey).(string)
	return out
}

// PutProcess returns a new context with the process name assigned to p.
func PutProcess(ctx context.Context, p string) context.Context {
	return context.WithValue(ctx, processKey, p)
}

// GetProcess returns the process name assigned to ctx.
func GetProcess(ctx context.Context) string {
	out, _ := ctx.Value(processKey).(string)
	return out
}

// Enter returns a new context with the trace scope name appended.
func Enter(ctx context.Context, name string) context.Context {
	trace := append(GetTrace(ctx), name)
	return context.WithValue(ctx, traceKey, trace)
}

// GetTrace returns the list of entered trace scopes assigned to ctx.
func GetTrace(ctx context.Context) []string {
	out, _ := ctx.Value(traceKey).([]string)
	return out
}

// PutStacktracer returns a new context with the Stacktracer assigned to s.
func PutStacktracer(ctx context.Context, s Stacktracer) context.Context {
	return context.WithValue(ctx, stacktracerKey, s)
}

// GetStacktracer returns the Stacktracer assigned to ctx.
func GetStacktracer(ctx context.Context) Stacktracer {
	out, _ := ctx.Value(stacktracerKey).(Stacktracer)
	return out
}

// V is a map of key-value pairs to bind to a logging context.
type V map[string]interface{}

type values struct {
	parent *values
	v      V
}

// Bind returns a new context with the values in v bound to it.
func (v V) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, valuesKey, &values{getValues(ctx), v})
}

func getValues(ctx context.Context) *values {
	out, _ := ctx.Value(valuesKey).(*values)
	return out
}
