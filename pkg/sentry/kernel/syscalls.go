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

package kernel

import (
	"fmt"
	"sort"

	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

// SyscallFn is a syscall implementation. The returned value is written to
// a0 unless the SyscallControl says otherwise; a non-nil error is written
// as -errno.
type SyscallFn func(t *Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *SyscallControl, error)

// SyscallControl is returned by syscalls to control the behavior of
// Task.doSyscallInvoke.
type SyscallControl struct {
	// ignoreReturn is true if the return value must not be written to the
	// trap frame.
	ignoreReturn bool
}

// CtrlDoExit is returned by the implementations of the exit syscall to
// indicate that the task is now a zombie and its frame must not be
// modified.
var CtrlDoExit = &SyscallControl{ignoreReturn: true}

// Syscall includes the syscall implementation and compatibility information.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation of the syscall.
	Fn SyscallFn

	// ArgNames names the arguments the syscall uses, for strace and for
	// documentation.
	ArgNames []string

	// Note describes the syscall.
	Note string
}

// Stracer traces syscall execution.
type Stracer interface {
	// SyscallEnter is called on syscall entry. The returned value is
	// passed to SyscallExit.
	SyscallEnter(t *Task, sysno uintptr, args arch.SyscallArguments) any

	// SyscallExit is called on syscall exit.
	SyscallExit(cookie any, t *Task, sysno, rval uintptr, err error)
}

// SyscallTable is a lookup table of system calls.
type SyscallTable struct {
	// Table is the set of functions.
	Table map[uintptr]Syscall

	// Missing is the function to call if a syscall is not defined in Table.
	Missing SyscallFn

	// Stracer, if set, is called around every syscall.
	Stracer Stracer
}

// Lookup returns the syscall implementation, if one exists.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Fn
	}
	return nil
}

// LookupName looks up a syscall name.
func (s *SyscallTable) LookupName(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return fmt.Sprintf("sys_%d", sysno)
}

// LookupNo looks up a syscall number by name.
func (s *SyscallTable) LookupNo(name string) (uintptr, error) {
	for no, sc := range s.Table {
		if sc.Name == name {
			return no, nil
		}
	}
	return 0, fmt.Errorf("syscall %q not found", name)
}

// Numbers returns the defined syscall numbers in increasing order.
func (s *SyscallTable) Numbers() []uintptr {
	nos := make([]uintptr, 0, len(s.Table))
	for no := range s.Table {
		nos = append(nos, no)
	}
	sort.Slice(nos, func(i, j int) bool { return nos[i] < nos[j] })
	return nos
}

// Names returns the defined syscall names, ordered by number.
func (s *SyscallTable) Names() []string {
	var names []string
	for _, no := range s.Numbers() {
		names = append(names, s.Table[no].Name)
	}
	return names
}
