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

// Severity defines the severity of a logging message.
type Severity int32

const (
	// Verbose is the lowest severity level, used for messages that are rarely
	// of interest.
	Verbose Severity = iota
	// Debug is used for messages that help diagnose problems.
	Debug
	// Info is used for regular status messages.
	Info
	// Warning is used for messages that indicate a possible problem.
	Warning
	// Error is used for messages that indicate something went wrong.
	Error
	// Fatal is used for messages that indicate something went wrong and the
	// process cannot continue.
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Verbose:
		return "Verbose"
	case Debug:
		return "Debug"
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	default:
		return "?"
	}
}

// Short returns the severity as a single character string.
func (s Severity) Short() string {
	switch s {
	case Verbose:
		return "V"
	case Debug:
		return "D"
	case Info:
		return "I"
	case Warning:
		return "W"
	case Error:
		return "E"
	case Fatal:
		return "F"
	default:
		return "?"
	}
}
