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

// NumSavedRegs is the number of general-purpose registers in a TrapFrame:
// x1..x31 without sp and tp. sp travels through Scratch; tp belongs to the
// kernel.
const NumSavedRegs = NumRegs - 3

// SizeOfTrapFrame is the size of a marshalled TrapFrame.
const SizeOfTrapFrame = (NumSavedRegs + 3) * 8

// savedRegs lists the registers held in TrapFrame.Regs, in order.
var savedRegs [NumSavedRegs]Reg

// regSlot maps a register to its index in TrapFrame.Regs, or -1.
var regSlot [NumRegs]int

func init() {
	n := 0
	for r := Reg(0); r < NumRegs; r++ {
		regSlot[r] = -1
		if r == Zero || r == SP || r == TP {
			continue
		}
		savedRegs[n] = r
		regSlot[r] = n
		n++
	}
}

// SavedRegs returns the registers a TrapFrame holds, in layout order.
func SavedRegs() []Reg {
	return savedRegs[:]
}

// IsSaved returns true if r is part of the saved register set.
func IsSaved(r Reg) bool {
	return r.Valid() && regSlot[r] >= 0
}

// TrapFrame is the saved user context of a task. Its layout is fixed: the
// saved registers in SavedRegs order, then sstatus, sepc and the scratch slot,
// each 8 bytes little-endian.
//
// While the task is in the kernel, Scratch holds its user stack pointer.
type TrapFrame struct {
	Regs    [NumSavedRegs]uint64
	Sstatus uint64
	Sepc    uint64
	Scratch uint64
}

// NewUserFrame returns a frame that, when restored, enters U-mode at entry
// with the stack pointer at sp and interrupts enabled on return.
func NewUserFrame(entry, sp hostarch.Addr) *TrapFrame {
	return &TrapFrame{
		Sstatus: SstatusSPIE,
		Sepc:    uint64(entry),
		Scratch: uint64(sp),
	}
}

// Reg returns the saved value of r. x0 reads as zero, sp reads from Scratch.
//
// Precondition: r != TP.
func (tf *TrapFrame) Reg(r Reg) uint64 {
	switch {
	case r == Zero:
		return 0
	case r == SP:
		return tf.Scratch
	case IsSaved(r):
		return tf.Regs[regSlot[r]]
	}
	panic(fmt.Sprintf("register %v is not part of the trap frame", r))
}

// SetReg sets the saved value of r. Writes to x0 are ignored.
//
// Precondition: r != TP.
func (tf *TrapFrame) SetReg(r Reg, v uint64) {
	switch {
	case r == Zero:
	case r == SP:
		tf.Scratch = v
	case IsSaved(r):
		tf.Regs[regSlot[r]] = v
	default:
		panic(fmt.Sprintf("register %v is not part of the trap frame", r))
	}
}

// SyscallNo returns the syscall number.
func (tf *TrapFrame) SyscallNo() uintptr {
	return uintptr(tf.Reg(A7))
}

// SyscallArgs returns the syscall arguments in an array.
func (tf *TrapFrame) SyscallArgs() SyscallArguments {
	return SyscallArguments{
		SyscallArgument{Value: uintptr(tf.Reg(A0))},
		SyscallArgument{Value: uintptr(tf.Reg(A1))},
		SyscallArgument{Value: uintptr(tf.Reg(A2))},
		SyscallArgument{Value: uintptr(tf.Reg(A3))},
		SyscallArgument{Value: uintptr(tf.Reg(A4))},
		SyscallArgument{Value: uintptr(tf.Reg(A5))},
	}
}

// Return returns the current syscall return value.
func (tf *TrapFrame) Return() uintptr {
	return uintptr(tf.Reg(A0))
}

// SetReturn sets the syscall return value.
func (tf *TrapFrame) SetReturn(value uintptr) {
	tf.SetReg(A0, uint64(value))
}

// IP returns the resume address.
func (tf *TrapFrame) IP() hostarch.Addr {
	return hostarch.Addr(tf.Sepc)
}

// SetIP sets the resume address.
func (tf *TrapFrame) SetIP(value hostarch.Addr) {
	tf.Sepc = uint64(value)
}

// Stack returns the user stack pointer.
func (tf *TrapFrame) Stack() hostarch.Addr {
	return hostarch.Addr(tf.Scratch)
}

// SetStack sets the user stack pointer.
func (tf *TrapFrame) SetStack(value hostarch.Addr) {
	tf.Scratch = uint64(value)
}

// StepOverSyscall advances the resume address past the ecall that trapped.
func (tf *TrapFrame) StepOverSyscall() {
	tf.Sepc += InstructionSize
}

// RestartSyscall reverses over the current syscall instruction, such that
// when the task resumes execution the syscall will be re-attempted.
func (tf *TrapFrame) RestartSyscall() {
	tf.Sepc -= InstructionSize
}

// RegisterMap returns a map of all registers in the frame, keyed by ABI name.
func (tf *TrapFrame) RegisterMap() map[string]uint64 {
	m := make(map[string]uint64, NumSavedRegs+3)
	for _, r := range savedRegs {
		m[r.String()] = tf.Reg(r)
	}
	m[SP.String()] = tf.Scratch
	m[Sstatus.String()] = tf.Sstatus
	m[Sepc.String()] = tf.Sepc
	return m
}

// MarshalBytes serializes tf into dst.
//
// Preconditions: len(dst) >= SizeOfTrapFrame.
func (tf *TrapFrame) MarshalBytes(dst []byte) {
	for i, v := range tf.Regs {
		hostarch.ByteOrder.PutUint64(dst[i*8:], v)
	}
	off := NumSavedRegs * 8
	hostarch.ByteOrder.PutUint64(dst[off:], tf.Sstatus)
	hostarch.ByteOrder.PutUint64(dst[off+8:], tf.Sepc)
	hostarch.ByteOrder.PutUint64(dst[off+16:], tf.Scratch)
}

// UnmarshalBytes deserializes tf from src.
//
// Preconditions: len(src) >= SizeOfTrapFrame.
func (tf *TrapFrame) UnmarshalBytes(src []byte) {
	for i := range tf.Regs {
		tf.Regs[i] = hostarch.ByteOrder.Uint64(src[i*8:])
	}
	off := NumSavedRegs * 8
	tf.Sstatus = hostarch.ByteOrder.Uint64(src[off:])
	tf.Sepc = hostarch.ByteOrder.Uint64(src[off+8:])
	tf.Scratch = hostarch.ByteOrder.Uint64(src[off+16:])
}
