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

package arch

import (
	"fmt"

	"gvisor.dev/rvkernel/pkg/hostarch"
)

// Cause is an scause value.
type Cause uint64

// InterruptBit is set in scause for interrupts.
const InterruptBit Cause = 1 << 63

// Exception causes.
const (
	CauseInstructionMisaligned  Cause = 0
	CauseInstructionAccessFault Cause = 1
	CauseIllegalInstruction     Cause = 2
	CauseBreakpoint             Cause = 3
	CauseLoadMisaligned         Cause = 4
	CauseLoadAccessFault        Cause = 5
	CauseStoreMisaligned        Cause = 6
	CauseStoreAccessFault       Cause = 7
	CauseUserEcall              Cause = 8
	CauseSupervisorEcall        Cause = 9
	CauseInstructionPageFault   Cause = 12
	CauseLoadPageFault          Cause = 13
	CauseStorePageFault         Cause = 15
)

// Interrupt causes.
const (
	CauseSupervisorSoftware = InterruptBit | 1
	CauseSupervisorTimer    = InterruptBit | 5
	CauseSupervisorExternal = InterruptBit | 9
)

var causeNames = map[Cause]string{
	CauseInstructionMisaligned:  "instruction address misaligned",
	CauseInstructionAccessFault: "instruction access fault",
	CauseIllegalInstruction:     "illegal instruction",
	CauseBreakpoint:             "breakpoint",
	CauseLoadMisaligned:         "load address misaligned",
	CauseLoadAccessFault:        "load access fault",
	CauseStoreMisaligned:        "store address misaligned",
	CauseStoreAccessFault:       "store access fault",
	CauseUserEcall:              "environment call from U-mode",
	CauseSupervisorEcall:        "environment call from S-mode",
	CauseInstructionPageFault:   "instruction page fault",
	CauseLoadPageFault:          "load page fault",
	CauseStorePageFault:         "store page fault",
	CauseSupervisorSoftware:     "supervisor software interrupt",
	CauseSupervisorTimer:        "supervisor timer interrupt",
	CauseSupervisorExternal:     "supervisor external interrupt",
}

func (c Cause) String() string {
	if n, ok := causeNames[c]; ok {
		return n
	}
	if c.IsInterrupt() {
		return fmt.Sprintf("interrupt %d", uint64(c&^InterruptBit))
	}
	return fmt.Sprintf("exception %d", uint64(c))
}

// IsInterrupt returns true if c is an interrupt rather than an exception.
func (c Cause) IsInterrupt() bool {
	return c&InterruptBit != 0
}

// IsPageFault returns true for the three page-fault causes.
func (c Cause) IsPageFault() bool {
	switch c {
	case CauseInstructionPageFault, CauseLoadPageFault, CauseStorePageFault:
		return true
	}
	return false
}

// FaultCause returns the page-fault cause for a denied access of type at.
func FaultCause(at hostarch.AccessType) Cause {
	switch {
	case at.Execute:
		return CauseInstructionPageFault
	case at.Write:
		return CauseStorePageFault
	default:
		return CauseLoadPageFault
	}
}

// AccessType returns the access that raised page-fault cause c.
func (c Cause) AccessType() hostarch.AccessType {
	switch c {
	case CauseInstructionPageFault, CauseInstructionAccessFault:
		return hostarch.Execute
	case CauseStorePageFault, CauseStoreAccessFault, CauseStoreMisaligned:
		return hostarch.Write
	case CauseLoadPageFault, CauseLoadAccessFault, CauseLoadMisaligned:
		return hostarch.Read
	}
	return hostarch.NoAccess
}
