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

import "time"

// Message is a single log entry.
type Message struct {
	// Text is the message text.
	Text string
	// Time is the time the message was logged.
	Time time.Time
	// Severity is the severity of the message.
	Severity Severity
	// Tag is the optional tag associated with the log record.
	Tag string
	// Process is the name of the process that created the record.
	Process string
	// Trace is the list of enter() scopes currently entered.
	Trace []string
	// Values is the list of key-value pairs bound to the logging context.
	Values Values
	// StopProcess indicates that the process should stop after logging this
	// message.
	StopProcess bool
}

// Value is a single key-value pair bound to a logging context.
type Value struct {
	Name  string
	Value interface{}
}

// Values is a list of Value entries, sortable by name.
type Values []*Value

func (v Values) Len() int           { return len(v) }
func (v Values) Less(i, j int) bool { return v[i].Name < v[j].Name }
func (v Values) Swap(i, j int)      { v[i], v[j] = v[j], v[i] }
