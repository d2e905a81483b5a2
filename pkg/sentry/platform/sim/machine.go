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

// Package sim provides a platform that interprets user code on a simulated
// single RV64 hart.
package sim

import (
	"errors"
	"fmt"

	"gvisor.dev/rvkernel/pkg/ring0"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

// Machine is the hart: its register file, CSRs, privilege mode, cycle
// counter and timer comparator, plus the address space it translates
// through.
//
// Machine implements ring0.Hart.
type Machine struct {
	regs [arch.NumRegs]uint64
	csrs [arch.NumCSRs]uint64
	pc   uint64
	mode arch.Privilege

	// cycles counts retired instructions and time spent in the kernel.
	cycles uint64

	// mtimecmp is the timer comparator; the timer interrupt is pending
	// while cycles >= mtimecmp and timerArmed is set.
	mtimecmp   uint64
	timerArmed bool

	// as is the address space user accesses go through.
	as platform.AddressSpace
}

var _ ring0.Hart = (*Machine)(nil)

// NewMachine returns a hart in S-mode with the trap vector at the trampoline.
func NewMachine() *Machine {
	m := &Machine{mode: arch.Supervisor}
	m.csrs[arch.Stvec] = uint64(ring0.Trampoline)
	return m
}

// Reg implements ring0.Hart.Reg.
func (m *Machine) Reg(r arch.Reg) uint64 {
	return m.regs[r]
}

// SetReg implements ring0.Hart.SetReg.
func (m *Machine) SetReg(r arch.Reg, v uint64) {
	if r != arch.Zero {
		m.regs[r] = v
	}
}

// CSR implements ring0.Hart.CSR.
func (m *Machine) CSR(c arch.CSR) uint64 {
	return m.csrs[c]
}

// SetCSR implements ring0.Hart.SetCSR.
func (m *Machine) SetCSR(c arch.CSR, v uint64) {
	m.csrs[c] = v
}

// SwapScratch implements ring0.Hart.SwapScratch.
func (m *Machine) SwapScratch() {
	m.regs[arch.SP], m.csrs[arch.Sscratch] = m.csrs[arch.Sscratch], m.regs[arch.SP]
}

// Sret implements ring0.Hart.Sret.
func (m *Machine) Sret() {
	if m.mode != arch.Supervisor {
		panic("sret outside supervisor mode")
	}
	s := m.csrs[arch.Sstatus]
	m.mode = arch.User
	if s&arch.SstatusSPP != 0 {
		m.mode = arch.Supervisor
	}
	s &^= arch.SstatusSIE | arch.SstatusSPP
	if s&arch.SstatusSPIE != 0 {
		s |= arch.SstatusSIE
	}
	s |= arch.SstatusSPIE
	m.csrs[arch.Sstatus] = s
	m.pc = m.csrs[arch.Sepc]
}

// Resume implements ring0.Hart.Resume. It interprets user code until a trap
// is taken.
func (m *Machine) Resume() {
	if m.mode != arch.User {
		panic(fmt.Sprintf("resuming a hart in %v mode", m.mode))
	}
	if m.as == nil {
		panic("resuming a hart with no address space")
	}
	for {
		if m.timerArmed && m.cycles >= m.mtimecmp {
			m.trap(arch.CauseSupervisorTimer, 0)
			return
		}
		if cause, tval, ok := m.step(); !ok {
			m.trap(cause, tval)
			return
		}
	}
}

// trap takes a trap from the current mode into S-mode.
func (m *Machine) trap(cause arch.Cause, tval uint64) {
	m.csrs[arch.Sepc] = m.pc
	m.csrs[arch.Scause] = uint64(cause)
	m.csrs[arch.Stval] = tval

	s := m.csrs[arch.Sstatus]
	s &^= arch.SstatusSPP | arch.SstatusSPIE
	if m.mode == arch.Supervisor {
		s |= arch.SstatusSPP
	}
	if s&arch.SstatusSIE != 0 {
		s |= arch.SstatusSPIE
	}
	s &^= arch.SstatusSIE
	m.csrs[arch.Sstatus] = s

	m.mode = arch.Supervisor
	m.pc = m.csrs[arch.Stvec]
}

// faultCause converts an address-space error into a trap.
func faultCause(err error, addr uint64, fallback arch.Cause) (arch.Cause, uint64) {
	var f platform.SegmentationFault
	if errors.As(err, &f) {
		return arch.FaultCause(f.Access), uint64(f.Addr)
	}
	return fallback, addr
}

// PC returns the program counter.
func (m *Machine) PC() uint64 {
	return m.pc
}

// Mode returns the current privilege mode.
func (m *Machine) Mode() arch.Privilege {
	return m.mode
}

// Cycles returns the cycle counter.
func (m *Machine) Cycles() uint64 {
	return m.cycles
}

// Advance adds n to the cycle counter.
func (m *Machine) Advance(n uint64) {
	m.cycles += n
}

// SetTimer arms the timer comparator.
func (m *Machine) SetTimer(deadline uint64) {
	m.mtimecmp = deadline
	m.timerArmed = true
}

// SetAddressSpace installs as as the translated address space.
func (m *Machine) SetAddressSpace(as platform.AddressSpace) {
	if m.as == as {
		return
	}
	if m.as != nil {
		m.as.Deactivate()
	}
	m.as = as
	as.Activate()
}
