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

package assert

// *************************************************************
// ** This file contains legacy shims only, it should be removed
// ** once all existing tests are converted
// *************************************************************

// Deprecated: Context is deprecated, use To instead.
func Context(out Output) Manager {
	return To(out)
}

// Deprecated: With is deprecated, use For with a message.
func With(t interface{}) *Assertion {
	if m, ok := t.(Manager); ok {
		return m.For("")
	}
	return For(t, "")
}
