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

package ring0

import (
	"fmt"

	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

// Hart is the register file and CSR interface of the hart the kernel runs on.
type Hart interface {
	// Reg returns integer register r.
	Reg(r arch.Reg) uint64

	// SetReg sets integer register r. Writes to x0 are discarded.
	SetReg(r arch.Reg, v uint64)

	// CSR returns supervisor CSR c.
	CSR(c arch.CSR) uint64

	// SetCSR sets supervisor CSR c.
	SetCSR(c arch.CSR, v uint64)

	// SwapScratch exchanges sp and sscratch (csrrw sp, sscratch, sp).
	SwapScratch()

	// Sret returns from supervisor mode: the privilege mode becomes
	// sstatus.SPP and the hart continues at sepc.
	Sret()

	// Resume runs the hart until it takes a trap. On return the hart is in
	// S-mode and scause, stval and sepc describe the trap.
	Resume()
}

// Entry is the trap vector. It runs on trap entry with the user stack
// pointer in sp and the task's kernel stack top in sscratch, and saves the
// user context into the TrapFrame bound to that kernel stack.
//
// Phase one swaps sp and sscratch so the kernel stack is live and the user sp
// is parked in sscratch. Phase two saves the registers and moves the parked
// user sp into the frame's scratch slot. Neither pointer is lost at any
// point; if sscratch does not hold a kernel stack, the protocol was violated
// and Entry panics.
func (k *Kernel) Entry(h Hart) *arch.TrapFrame {
	ksp := h.CSR(arch.Sscratch)
	tf, err := k.frameAt(ksp)
	if err != nil {
		panic(fmt.Sprintf("trap entry: sscratch: %v", err))
	}

	// Phase one.
	h.SwapScratch()
	if got := h.Reg(arch.SP); got != ksp {
		panic(fmt.Sprintf("trap entry: sp = %#x after swap, want kernel stack %#x", got, ksp))
	}

	// Phase two.
	for _, r := range arch.SavedRegs() {
		tf.SetReg(r, h.Reg(r))
	}
	tf.Sstatus = h.CSR(arch.Sstatus)
	tf.Sepc = h.CSR(arch.Sepc)
	tf.Scratch = h.CSR(arch.Sscratch)
	return tf
}

// Exit restores tf onto the hart and returns to the mode and address it
// names. It is the mirror of Entry: the user sp is staged in sscratch, the
// kernel sp of tf is made live, then one swap leaves the user sp in sp and
// the kernel stack top staged in sscratch for the next Entry.
//
// A freshly built frame and a frame saved by Entry are restored the same way.
func (k *Kernel) Exit(h Hart, tf *arch.TrapFrame) {
	ksp, ok := k.StackOf(tf)
	if !ok {
		panic("trap exit: frame has no kernel stack")
	}

	h.SetCSR(arch.Sstatus, tf.Sstatus)
	h.SetCSR(arch.Sepc, tf.Sepc)
	h.SetCSR(arch.Sscratch, tf.Scratch)
	for _, r := range arch.SavedRegs() {
		h.SetReg(r, tf.Reg(r))
	}
	h.SetReg(arch.SP, uint64(ksp))

	h.SwapScratch()
	if got := h.CSR(arch.Sscratch); got != uint64(ksp) {
		panic(fmt.Sprintf("trap exit: sscratch = %#x after swap, want kernel stack %#x", got, uint64(ksp)))
	}
	h.Sret()
}

// SwitchToUser restores tf, runs the hart until its next trap and saves the
// user context back into tf. It returns the trap cause and stval.
func (k *Kernel) SwitchToUser(h Hart, tf *arch.TrapFrame) (arch.Cause, uint64) {
	k.Exit(h, tf)
	h.Resume()
	if got := k.Entry(h); got != tf {
		panic("trap entry resolved a different frame than the one restored")
	}
	return arch.Cause(h.CSR(arch.Scause)), h.CSR(arch.Stval)
}
