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

// Package ring0 implements the supervisor side of privilege transitions: the
// kernel stacks bound to trap frames and the entry/exit protocol that moves
// a task's user context between the hart and its TrapFrame.
package ring0

import (
	"errors"
	"fmt"

	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

const (
	// MaxVA is one past the highest virtual address (Sv39).
	MaxVA = hostarch.Addr(1) << 38

	// Trampoline is the page holding the trap vector, mapped at the top of
	// every address space.
	Trampoline = MaxVA - hostarch.PageSize

	// KernelStackSize is the size of a kernel stack. Each stack is followed
	// (below) by an unmapped guard page.
	KernelStackSize = hostarch.PageSize
)

// ErrStacksExhausted is returned by NewStack when every kernel stack is in use.
var ErrStacksExhausted = errors.New("kernel stacks exhausted")

// KernelStackTop returns the initial stack pointer of kernel stack slot.
func KernelStackTop(slot int) hostarch.Addr {
	base := Trampoline - hostarch.Addr(slot+1)*2*hostarch.PageSize
	return base + KernelStackSize
}

// Kernel is the global kernel state: the kernel stacks and the trap frame
// each one belongs to.
type Kernel struct {
	// slots holds the frame bound to each stack slot, nil if free.
	slots []*arch.TrapFrame

	// tops maps a stack top to its slot.
	tops map[uint64]int

	// frames maps a bound frame to its slot.
	frames map[*arch.TrapFrame]int
}

// New returns a Kernel with room for maxStacks kernel stacks.
func New(maxStacks int) *Kernel {
	return &Kernel{
		slots:  make([]*arch.TrapFrame, maxStacks),
		tops:   make(map[uint64]int),
		frames: make(map[*arch.TrapFrame]int),
	}
}

// NewStack binds the lowest free kernel stack to tf and returns its top.
func (k *Kernel) NewStack(tf *arch.TrapFrame) (hostarch.Addr, error) {
	if _, ok := k.frames[tf]; ok {
		panic("trap frame already has a kernel stack")
	}
	for slot, bound := range k.slots {
		if bound != nil {
			continue
		}
		top := KernelStackTop(slot)
		k.slots[slot] = tf
		k.tops[uint64(top)] = slot
		k.frames[tf] = slot
		return top, nil
	}
	return 0, ErrStacksExhausted
}

// Release frees the kernel stack bound to tf. It is a no-op if tf has none.
func (k *Kernel) Release(tf *arch.TrapFrame) {
	slot, ok := k.frames[tf]
	if !ok {
		return
	}
	delete(k.frames, tf)
	delete(k.tops, uint64(KernelStackTop(slot)))
	k.slots[slot] = nil
}

// StackOf returns the kernel stack top bound to tf.
func (k *Kernel) StackOf(tf *arch.TrapFrame) (hostarch.Addr, bool) {
	slot, ok := k.frames[tf]
	if !ok {
		return 0, false
	}
	return KernelStackTop(slot), true
}

// InUse returns the number of bound kernel stacks.
func (k *Kernel) InUse() int {
	return len(k.frames)
}

// frameAt returns the frame whose kernel stack top is sp.
func (k *Kernel) frameAt(sp uint64) (*arch.TrapFrame, error) {
	slot, ok := k.tops[sp]
	if !ok {
		return nil, fmt.Errorf("%#x is not a kernel stack", sp)
	}
	return k.slots[slot], nil
}
