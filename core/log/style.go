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
	"bytes"
	"fmt"
	"strings"
)

// Style provides customization for printing messages.
type Style struct {
	// Timestamp is true if the message time should be printed.
	Timestamp bool
	// Tag is true if the message tag should be printed.
	Tag bool
	// Trace is true if the message trace should be printed.
	Trace bool
	// Process is true if the process name should be printed.
	Process bool
	// Values is true if the bound key-value pairs should be printed.
	Values bool
}

var (
	// Raw is a style that only prints the message text.
	Raw = Style{}
	// Brief is a style that prints the severity and message text.
	Brief = Style{Tag: true}
	// Normal is a style that prints the timestamp, severity, tag and message.
	Normal = Style{Timestamp: true, Tag: true, Values: true}
	// Detailed is a style that prints everything.
	Detailed = Style{Timestamp: true, Tag: true, Trace: true, Process: true, Values: true}
)

// Print returns the message m printed using the style s.
func (s Style) Print(m *Message) string {
	buf := bytes.Buffer{}
	if s.Timestamp {
		buf.WriteString(m.Time.Format("15:04:05.000"))
		buf.WriteString(" ")
	}
	buf.WriteString(m.Severity.Short())
	buf.WriteString(": ")
	if s.Process && m.Process != "" {
		fmt.Fprintf(&buf, "<%s> ", m.Process)
	}
	if s.Tag && m.Tag != "" {
		fmt.Fprintf(&buf, "[%s] ", m.Tag)
	}
	if s.Trace && len(m.Trace) > 0 {
		fmt.Fprintf(&buf, "(%s) ", strings.Join(m.Trace, "->"))
	}
	buf.WriteString(m.Text)
	if s.Values && len(m.Values) > 0 {
		parts := make([]string, len(m.Values))
		for i, v := range m.Values {
			parts[i] = fmt.Sprintf("%s: %v", v.Name, v.Value)
		}
		fmt.Fprintf(&buf, " {%s}", strings.Join(parts, ", "))
	}
	return buf.String()
}

// Handler returns a Handler that prints messages with the style s to the
// writer w.
func (s Style) Handler(w Writer) Handler {
	return NewHandler(func(m *Message) {
		w(s.Print(m), m.Severity)
	}, nil)
}
