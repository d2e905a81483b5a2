// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package linux contains the constants and types shared with user programs.
package linux

import "fmt"

// Signal is a signal number. Signals are only used to describe why a task
// was terminated by the kernel; there is no signal delivery.
type Signal int

// IsValid returns true if s is a valid standard signal. (0 is not considered
// valid; it denotes "no signal" in exit statuses.)
func (s Signal) IsValid() bool {
	return s > 0 && s <= 31
}

// Signals used in fault exit statuses.
const (
	SIGILL  = Signal(4)
	SIGTRAP = Signal(5)
	SIGBUS  = Signal(7)
	SIGKILL = Signal(9)
	SIGSEGV = Signal(11)
	SIGSYS  = Signal(31)
)

var signalNames = map[Signal]string{
	SIGILL:  "SIGILL",
	SIGTRAP: "SIGTRAP",
	SIGBUS:  "SIGBUS",
	SIGKILL: "SIGKILL",
	SIGSEGV: "SIGSEGV",
	SIGSYS:  "SIGSYS",
}

// String implements fmt.Stringer.String.
func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal %d", int(s))
}
