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

import "fmt"

// Reg is an integer register number, x0 through x31.
type Reg int

// NumRegs is the size of the integer register file.
const NumRegs = 32

// ABI register names.
const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

var regNames = [NumRegs]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// String returns the ABI name of r.
func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return fmt.Sprintf("x%d?", int(r))
	}
	return regNames[r]
}

// Valid returns true if r names a register.
func (r Reg) Valid() bool {
	return r >= 0 && r < NumRegs
}

// RegByName returns the register with the given ABI name or xN alias.
func RegByName(name string) (Reg, bool) {
	for i, n := range regNames {
		if n == name || fmt.Sprintf("x%d", i) == name {
			return Reg(i), true
		}
	}
	if name == "fp" {
		return S0, true
	}
	return 0, false
}

// CSR is a supervisor control and status register.
type CSR int

// Supervisor CSRs modelled by the hart.
const (
	Sstatus CSR = iota
	Stvec
	Sscratch
	Sepc
	Scause
	Stval
	NumCSRs
)

var csrNames = [NumCSRs]string{"sstatus", "stvec", "sscratch", "sepc", "scause", "stval"}

func (c CSR) String() string {
	if c < 0 || c >= NumCSRs {
		return fmt.Sprintf("CSR(%d)", int(c))
	}
	return csrNames[c]
}

// sstatus fields.
const (
	// SstatusSIE enables supervisor interrupts while in S-mode.
	SstatusSIE uint64 = 1 << 1

	// SstatusSPIE holds SIE as it was before the last trap.
	SstatusSPIE uint64 = 1 << 5

	// SstatusSPP holds the privilege mode the last trap was taken from. Zero
	// means U-mode.
	SstatusSPP uint64 = 1 << 8
)
