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

package sim

import (
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/ring0"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/mm"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

// Options configures a Platform.
type Options struct {
	// MemoryPages is the physical frame budget.
	MemoryPages int

	// KernelStacks is the number of kernel stacks, which bounds the number
	// of live tasks.
	KernelStacks int
}

// Platform is a platform.Platform backed by one simulated hart.
type Platform struct {
	machine *Machine
	kernel  *ring0.Kernel
	mf      *mm.MemoryFile
	ctx     context
}

var _ platform.Platform = (*Platform)(nil)

// New returns a new Platform.
func New(opts Options) *Platform {
	p := &Platform{
		machine: NewMachine(),
		kernel:  ring0.New(opts.KernelStacks),
		mf:      mm.NewMemoryFile(opts.MemoryPages),
	}
	p.ctx.p = p
	return p
}

// NewAddressSpace implements platform.Platform.NewAddressSpace.
func (p *Platform) NewAddressSpace(segs []platform.Segment) (platform.AddressSpace, error) {
	as, err := p.mf.NewAddressSpace(segs)
	if err != nil {
		return nil, err
	}
	return as, nil
}

// NewKernelStack implements platform.Platform.NewKernelStack.
func (p *Platform) NewKernelStack(tf *arch.TrapFrame) (hostarch.Addr, error) {
	return p.kernel.NewStack(tf)
}

// ReleaseKernelStack implements platform.Platform.ReleaseKernelStack.
func (p *Platform) ReleaseKernelStack(tf *arch.TrapFrame) {
	p.kernel.Release(tf)
}

// NewContext implements platform.Platform.NewContext. There is one hart, so
// every call returns the same context.
func (p *Platform) NewContext() platform.Context {
	return &p.ctx
}

// FreeFrames implements platform.Platform.FreeFrames.
func (p *Platform) FreeFrames() int {
	return p.mf.FreeFrames()
}

// Machine returns the hart.
func (p *Platform) Machine() *Machine {
	return p.machine
}

// MemoryFile returns the physical memory.
func (p *Platform) MemoryFile() *mm.MemoryFile {
	return p.mf
}

// context implements platform.Context.
type context struct {
	p *Platform
}

// Switch implements platform.Context.Switch.
func (c *context) Switch(as platform.AddressSpace, tf *arch.TrapFrame) (platform.Trap, error) {
	m := c.p.machine
	if _, ok := c.p.kernel.StackOf(tf); !ok {
		return platform.Trap{}, platform.ErrNoKernelStack
	}
	m.SetAddressSpace(as)

	start := m.cycles
	cause, tval := c.p.kernel.SwitchToUser(m, tf)
	return platform.Trap{
		Cause:  cause,
		Value:  tval,
		Cycles: m.cycles - start,
	}, nil
}

// Cycles implements platform.Context.Cycles.
func (c *context) Cycles() uint64 {
	return c.p.machine.Cycles()
}

// Advance implements platform.Context.Advance.
func (c *context) Advance(cycles uint64) {
	c.p.machine.Advance(cycles)
}

// SetTimer implements platform.Context.SetTimer.
func (c *context) SetTimer(deadline uint64) {
	c.p.machine.SetTimer(deadline)
}
