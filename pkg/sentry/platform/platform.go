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

// Package platform provides a Platform abstraction.
//
// A Platform is the machine the kernel drives: it runs a task's user context
// until the next trap and provides the address spaces and kernel stacks tasks
// need.
package platform

import (
	"errors"
	"fmt"

	kerrors "gvisor.dev/rvkernel/pkg/errors"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

// Platform provides the mechanisms the kernel needs to run user code.
type Platform interface {
	// NewAddressSpace returns a new address space populated with segs.
	// On error nothing remains allocated.
	NewAddressSpace(segs []Segment) (AddressSpace, error)

	// NewKernelStack binds a kernel stack to tf. tf may be passed to
	// Context.Switch only while it has one.
	NewKernelStack(tf *arch.TrapFrame) (hostarch.Addr, error)

	// ReleaseKernelStack frees the kernel stack bound to tf.
	ReleaseKernelStack(tf *arch.TrapFrame)

	// NewContext returns the execution context of the platform's hart.
	NewContext() Context

	// FreeFrames returns the number of unallocated physical frames.
	FreeFrames() int
}

// Context represents the execution context of the hart.
type Context interface {
	// Switch makes as current, restores tf and runs it in user mode until
	// the next trap. On return tf holds the user context at the trap.
	//
	// A non-nil error means the switch could not happen; tf is unchanged.
	Switch(as AddressSpace, tf *arch.TrapFrame) (Trap, error)

	// Cycles returns the hart's cycle counter.
	Cycles() uint64

	// Advance adds cycles spent outside user mode to the cycle counter.
	Advance(cycles uint64)

	// SetTimer arms the timer interrupt to fire once the cycle counter
	// reaches deadline.
	SetTimer(deadline uint64)
}

// Trap describes why Switch returned.
type Trap struct {
	// Cause is the value of scause.
	Cause arch.Cause

	// Value is the value of stval: the faulting address for page faults,
	// the instruction bits for illegal instructions.
	Value uint64

	// Cycles is the number of cycles spent in user mode.
	Cycles uint64
}

// Addr returns Value as an address.
func (t Trap) Addr() hostarch.Addr {
	return hostarch.Addr(t.Value)
}

func (t Trap) String() string {
	return fmt.Sprintf("%v (stval %#x)", t.Cause, t.Value)
}

// ErrNoKernelStack is returned by Switch for a frame without a kernel stack.
var ErrNoKernelStack = errors.New("trap frame has no kernel stack")

// Segment is a contiguous region of an address space and its initial
// contents. Bytes between len(Data) and Size are zero.
type Segment struct {
	// Addr is the first address of the segment.
	Addr hostarch.Addr

	// Size is the length of the segment. It must be at least len(Data).
	Size uint64

	// Perms is the access the segment allows user code.
	Perms hostarch.AccessType

	// Data is the initial contents.
	Data []byte
}

// Range returns the address range of s.
func (s Segment) Range() (hostarch.AddrRange, bool) {
	return s.Addr.ToRange(s.Size)
}

func (s Segment) String() string {
	ar, _ := s.Range()
	return fmt.Sprintf("%v %v (%d bytes initialized)", ar, s.Perms, len(s.Data))
}

// AddressSpace represents a virtual address space in which tasks run.
type AddressSpace interface {
	// CopyOut copies len(src) bytes from src to the memory mapped at addr,
	// which must allow writes. It returns the number of bytes copied. If
	// the number of bytes copied is < len(src), it returns a
	// SegmentationFault.
	CopyOut(addr hostarch.Addr, src []byte) (int, error)

	// CopyIn copies len(dst) bytes from the memory mapped at addr, which
	// must allow reads, to dst. It returns the number of bytes copied. If
	// the number of bytes copied is < len(dst), it returns a
	// SegmentationFault.
	CopyIn(addr hostarch.Addr, dst []byte) (int, error)

	// Fetch reads the instruction at addr, which must allow execution.
	Fetch(addr hostarch.Addr) (uint32, error)

	// MapAnonymous maps zeroed pages over ar with perms. ar must be page
	// aligned and entirely unmapped; on error nothing new is mapped.
	MapAnonymous(ar hostarch.AddrRange, perms hostarch.AccessType) error

	// Unmap unmaps every page of ar, which must be page aligned and
	// entirely mapped. On error nothing is unmapped.
	Unmap(ar hostarch.AddrRange) error

	// Activate makes this the address space translated by the hart.
	Activate()

	// Deactivate undoes Activate.
	Deactivate()

	// Release frees every frame backing this address space. It must not be
	// used afterwards.
	Release()
}

// SegmentationFault is an error returned by AddressSpace methods when
// accesses to memory fail.
type SegmentationFault struct {
	// Addr is the address at which the fault occurred.
	Addr hostarch.Addr

	// Access is the access that was denied.
	Access hostarch.AccessType
}

// Error implements error.Error.
func (f SegmentationFault) Error() string {
	return fmt.Sprintf("segmentation fault at %#x (%v)", uint64(f.Addr), f.Access)
}

func init() {
	linuxerr.AddErrorUnwrapper(func(err error) (*kerrors.Error, bool) {
		var f SegmentationFault
		if errors.As(err, &f) {
			return linuxerr.EFAULT, true
		}
		return nil, false
	})
}
