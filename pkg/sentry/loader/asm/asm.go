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

// Package asm is a small RV64I assembler used to build user programs. It
// supports the base integer instructions the simulated hart executes, a few
// pseudo-instructions and forward or backward label references.
package asm

import (
	"fmt"
	"math"
	"math/bits"

	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

// Major opcodes.
const (
	opLoad   = 0x03
	opOpImm  = 0x13
	opAuipc  = 0x17
	opOpImmW = 0x1b
	opStore  = 0x23
	opOp     = 0x33
	opLui    = 0x37
	opOpW    = 0x3b
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6f
	opSystem = 0x73
)

// item is one unit of output. Its size is fixed when it is added; emit runs
// once every label address is known.
type item struct {
	size int
	emit func(pc hostarch.Addr) ([]byte, error)
}

// Assembler accumulates instructions and data for a program loaded at a
// fixed base address.
type Assembler struct {
	base   hostarch.Addr
	items  []item
	size   int
	labels map[string]hostarch.Addr
	err    error
}

// New returns an Assembler for code starting at base.
func New(base hostarch.Addr) *Assembler {
	return &Assembler{
		base:   base,
		labels: make(map[string]hostarch.Addr),
	}
}

// PC returns the address of the next item.
func (a *Assembler) PC() hostarch.Addr {
	return a.base + hostarch.Addr(a.size)
}

func (a *Assembler) fail(format string, v ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%v: "+format, append([]any{a.PC()}, v...)...)
	}
}

func (a *Assembler) add(size int, emit func(pc hostarch.Addr) ([]byte, error)) {
	a.items = append(a.items, item{size: size, emit: emit})
	a.size += size
}

func (a *Assembler) word(w uint32) {
	a.add(4, func(hostarch.Addr) ([]byte, error) {
		return encodeWords(w), nil
	})
}

func encodeWords(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		hostarch.ByteOrder.PutUint32(b[4*i:], w)
	}
	return b
}

// Label defines name at the current position.
func (a *Assembler) Label(name string) {
	if _, ok := a.labels[name]; ok {
		a.fail("label %q redefined", name)
		return
	}
	a.labels[name] = a.PC()
}

func (a *Assembler) target(name string) (hostarch.Addr, error) {
	addr, ok := a.labels[name]
	if !ok {
		return 0, fmt.Errorf("undefined label %q", name)
	}
	return addr, nil
}

// Assemble resolves labels and returns the program bytes.
func (a *Assembler) Assemble() ([]byte, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := make([]byte, 0, a.size)
	pc := a.base
	for _, it := range a.items {
		b, err := it.emit(pc)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", pc, err)
		}
		if len(b) != it.size {
			panic(fmt.Sprintf("item at %v emitted %d bytes, reserved %d", pc, len(b), it.size))
		}
		out = append(out, b...)
		pc += hostarch.Addr(it.size)
	}
	return out, nil
}

// Symbol returns the address of a defined label.
func (a *Assembler) Symbol(name string) (hostarch.Addr, bool) {
	addr, ok := a.labels[name]
	return addr, ok
}

// Instruction formats.

func rtype(funct7 uint32, rs2, rs1 arch.Reg, funct3 uint32, rd arch.Reg, opcode uint32) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func itype(imm int64, rs1 arch.Reg, funct3 uint32, rd arch.Reg, opcode uint32) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

func stype(imm int64, rs2, rs1 arch.Reg, funct3 uint32, opcode uint32) uint32 {
	return uint32((imm>>5)&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(imm&0x1f)<<7 | opcode
}

func btype(imm int64, rs2, rs1 arch.Reg, funct3 uint32, opcode uint32) uint32 {
	return uint32((imm>>12)&1)<<31 | uint32((imm>>5)&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | uint32((imm>>1)&0xf)<<8 | uint32((imm>>11)&1)<<7 | opcode
}

func utype(imm20 int64, rd arch.Reg, opcode uint32) uint32 {
	return uint32(imm20&0xfffff)<<12 | uint32(rd)<<7 | opcode
}

func jtype(imm int64, rd arch.Reg, opcode uint32) uint32 {
	return uint32((imm>>20)&1)<<31 | uint32((imm>>1)&0x3ff)<<21 | uint32((imm>>11)&1)<<20 |
		uint32((imm>>12)&0xff)<<12 | uint32(rd)<<7 | opcode
}

func fitsSigned(v int64, n uint) bool {
	return v >= -(1<<(n-1)) && v < 1<<(n-1)
}

func (a *Assembler) checkRegs(regs ...arch.Reg) bool {
	for _, r := range regs {
		if !r.Valid() {
			a.fail("invalid register %v", r)
			return false
		}
	}
	return true
}

func (a *Assembler) imm12(imm int64) bool {
	if !fitsSigned(imm, 12) {
		a.fail("immediate %d does not fit in 12 bits", imm)
		return false
	}
	return true
}

func (a *Assembler) opImm(funct3 uint32, rd, rs1 arch.Reg, imm int64) {
	if a.checkRegs(rd, rs1) && a.imm12(imm) {
		a.word(itype(imm, rs1, funct3, rd, opOpImm))
	}
}

func (a *Assembler) op(funct7, funct3 uint32, rd, rs1, rs2 arch.Reg) {
	if a.checkRegs(rd, rs1, rs2) {
		a.word(rtype(funct7, rs2, rs1, funct3, rd, opOp))
	}
}

func (a *Assembler) shiftImm(funct6, funct3 uint32, rd, rs1 arch.Reg, shamt int64) {
	if shamt < 0 || shamt > 63 {
		a.fail("shift amount %d out of range", shamt)
		return
	}
	if a.checkRegs(rd, rs1) {
		a.word(funct6<<26 | uint32(shamt)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opOpImm)
	}
}

func (a *Assembler) load(funct3 uint32, rd, rs1 arch.Reg, off int64) {
	if a.checkRegs(rd, rs1) && a.imm12(off) {
		a.word(itype(off, rs1, funct3, rd, opLoad))
	}
}

func (a *Assembler) store(funct3 uint32, rs2, rs1 arch.Reg, off int64) {
	if a.checkRegs(rs2, rs1) && a.imm12(off) {
		a.word(stype(off, rs2, rs1, funct3, opStore))
	}
}

func (a *Assembler) branch(funct3 uint32, rs1, rs2 arch.Reg, label string) {
	if !a.checkRegs(rs1, rs2) {
		return
	}
	a.add(4, func(pc hostarch.Addr) ([]byte, error) {
		t, err := a.target(label)
		if err != nil {
			return nil, err
		}
		off := int64(t - pc)
		if !fitsSigned(off, 13) {
			return nil, fmt.Errorf("branch to %q out of range (%d)", label, off)
		}
		return encodeWords(btype(off, rs2, rs1, funct3, opBranch)), nil
	})
}

// LUI loads imm20 into the upper 20 bits of rd.
func (a *Assembler) LUI(rd arch.Reg, imm20 int64) {
	if a.checkRegs(rd) {
		a.word(utype(imm20, rd, opLui))
	}
}

// AUIPC adds imm20<<12 to the pc and writes the sum to rd.
func (a *Assembler) AUIPC(rd arch.Reg, imm20 int64) {
	if a.checkRegs(rd) {
		a.word(utype(imm20, rd, opAuipc))
	}
}

// JAL jumps to label, writing the return address to rd.
func (a *Assembler) JAL(rd arch.Reg, label string) {
	if !a.checkRegs(rd) {
		return
	}
	a.add(4, func(pc hostarch.Addr) ([]byte, error) {
		t, err := a.target(label)
		if err != nil {
			return nil, err
		}
		off := int64(t - pc)
		if !fitsSigned(off, 21) {
			return nil, fmt.Errorf("jump to %q out of range (%d)", label, off)
		}
		return encodeWords(jtype(off, rd, opJal)), nil
	})
}

// JALR jumps to rs1+imm, writing the return address to rd.
func (a *Assembler) JALR(rd, rs1 arch.Reg, imm int64) {
	if a.checkRegs(rd, rs1) && a.imm12(imm) {
		a.word(itype(imm, rs1, 0, rd, opJalr))
	}
}

// Branches.
func (a *Assembler) BEQ(rs1, rs2 arch.Reg, label string)  { a.branch(0, rs1, rs2, label) }
func (a *Assembler) BNE(rs1, rs2 arch.Reg, label string)  { a.branch(1, rs1, rs2, label) }
func (a *Assembler) BLT(rs1, rs2 arch.Reg, label string)  { a.branch(4, rs1, rs2, label) }
func (a *Assembler) BGE(rs1, rs2 arch.Reg, label string)  { a.branch(5, rs1, rs2, label) }
func (a *Assembler) BLTU(rs1, rs2 arch.Reg, label string) { a.branch(6, rs1, rs2, label) }
func (a *Assembler) BGEU(rs1, rs2 arch.Reg, label string) { a.branch(7, rs1, rs2, label) }

// Loads.
func (a *Assembler) LB(rd, rs1 arch.Reg, off int64)  { a.load(0, rd, rs1, off) }
func (a *Assembler) LH(rd, rs1 arch.Reg, off int64)  { a.load(1, rd, rs1, off) }
func (a *Assembler) LW(rd, rs1 arch.Reg, off int64)  { a.load(2, rd, rs1, off) }
func (a *Assembler) LD(rd, rs1 arch.Reg, off int64)  { a.load(3, rd, rs1, off) }
func (a *Assembler) LBU(rd, rs1 arch.Reg, off int64) { a.load(4, rd, rs1, off) }
func (a *Assembler) LHU(rd, rs1 arch.Reg, off int64) { a.load(5, rd, rs1, off) }
func (a *Assembler) LWU(rd, rs1 arch.Reg, off int64) { a.load(6, rd, rs1, off) }

// Stores.
func (a *Assembler) SB(rs2, rs1 arch.Reg, off int64) { a.store(0, rs2, rs1, off) }
func (a *Assembler) SH(rs2, rs1 arch.Reg, off int64) { a.store(1, rs2, rs1, off) }
func (a *Assembler) SW(rs2, rs1 arch.Reg, off int64) { a.store(2, rs2, rs1, off) }
func (a *Assembler) SD(rs2, rs1 arch.Reg, off int64) { a.store(3, rs2, rs1, off) }

// Register-immediate operations.
func (a *Assembler) ADDI(rd, rs1 arch.Reg, imm int64)  { a.opImm(0, rd, rs1, imm) }
func (a *Assembler) SLTI(rd, rs1 arch.Reg, imm int64)  { a.opImm(2, rd, rs1, imm) }
func (a *Assembler) SLTIU(rd, rs1 arch.Reg, imm int64) { a.opImm(3, rd, rs1, imm) }
func (a *Assembler) XORI(rd, rs1 arch.Reg, imm int64)  { a.opImm(4, rd, rs1, imm) }
func (a *Assembler) ORI(rd, rs1 arch.Reg, imm int64)   { a.opImm(6, rd, rs1, imm) }
func (a *Assembler) ANDI(rd, rs1 arch.Reg, imm int64)  { a.opImm(7, rd, rs1, imm) }
func (a *Assembler) SLLI(rd, rs1 arch.Reg, sh int64)   { a.shiftImm(0x00, 1, rd, rs1, sh) }
func (a *Assembler) SRLI(rd, rs1 arch.Reg, sh int64)   { a.shiftImm(0x00, 5, rd, rs1, sh) }
func (a *Assembler) SRAI(rd, rs1 arch.Reg, sh int64)   { a.shiftImm(0x10, 5, rd, rs1, sh) }

// Register-register operations.
func (a *Assembler) ADD(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 0, rd, rs1, rs2) }
func (a *Assembler) SUB(rd, rs1, rs2 arch.Reg)  { a.op(0x20, 0, rd, rs1, rs2) }
func (a *Assembler) SLL(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 1, rd, rs1, rs2) }
func (a *Assembler) SLT(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 2, rd, rs1, rs2) }
func (a *Assembler) SLTU(rd, rs1, rs2 arch.Reg) { a.op(0x00, 3, rd, rs1, rs2) }
func (a *Assembler) XOR(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 4, rd, rs1, rs2) }
func (a *Assembler) SRL(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 5, rd, rs1, rs2) }
func (a *Assembler) SRA(rd, rs1, rs2 arch.Reg)  { a.op(0x20, 5, rd, rs1, rs2) }
func (a *Assembler) OR(rd, rs1, rs2 arch.Reg)   { a.op(0x00, 6, rd, rs1, rs2) }
func (a *Assembler) AND(rd, rs1, rs2 arch.Reg)  { a.op(0x00, 7, rd, rs1, rs2) }

// ADDIW adds imm to the low 32 bits of rs1 and sign-extends the result.
func (a *Assembler) ADDIW(rd, rs1 arch.Reg, imm int64) {
	if a.checkRegs(rd, rs1) && a.imm12(imm) {
		a.word(itype(imm, rs1, 0, rd, opOpImmW))
	}
}

// ADDW is the 32-bit add.
func (a *Assembler) ADDW(rd, rs1, rs2 arch.Reg) {
	if a.checkRegs(rd, rs1, rs2) {
		a.word(rtype(0x00, rs2, rs1, 0, rd, opOpW))
	}
}

// SUBW is the 32-bit subtract.
func (a *Assembler) SUBW(rd, rs1, rs2 arch.Reg) {
	if a.checkRegs(rd, rs1, rs2) {
		a.word(rtype(0x20, rs2, rs1, 0, rd, opOpW))
	}
}

// ECALL traps into the kernel.
func (a *Assembler) ECALL() { a.word(0x00000073) }

// EBREAK raises a breakpoint exception.
func (a *Assembler) EBREAK() { a.word(0x00100073) }

// Word emits a raw instruction word.
func (a *Assembler) Word(w uint32) { a.word(w) }

// Pseudo-instructions.

// NOP is addi zero, zero, 0.
func (a *Assembler) NOP() { a.ADDI(arch.Zero, arch.Zero, 0) }

// MV copies rs to rd.
func (a *Assembler) MV(rd, rs arch.Reg) { a.ADDI(rd, rs, 0) }

// J jumps to label.
func (a *Assembler) J(label string) { a.JAL(arch.Zero, label) }

// CALL jumps to label, linking ra.
func (a *Assembler) CALL(label string) { a.JAL(arch.RA, label) }

// RET returns to ra.
func (a *Assembler) RET() { a.JALR(arch.Zero, arch.RA, 0) }

// BEQZ branches to label if rs is zero.
func (a *Assembler) BEQZ(rs arch.Reg, label string) { a.BEQ(rs, arch.Zero, label) }

// BNEZ branches to label if rs is not zero.
func (a *Assembler) BNEZ(rs arch.Reg, label string) { a.BNE(rs, arch.Zero, label) }

// BLTZ branches to label if rs is negative.
func (a *Assembler) BLTZ(rs arch.Reg, label string) { a.BLT(rs, arch.Zero, label) }

// BGEZ branches to label if rs is not negative.
func (a *Assembler) BGEZ(rs arch.Reg, label string) { a.BGE(rs, arch.Zero, label) }

// LI loads the 64-bit constant v into rd using the shortest lui/addi(w)/slli
// sequence.
func (a *Assembler) LI(rd arch.Reg, v int64) {
	if a.checkRegs(rd) {
		for _, w := range liSeq(rd, v) {
			a.word(w)
		}
	}
}

func liSeq(rd arch.Reg, v int64) []uint32 {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		hi20 := ((v + 0x800) >> 12) & 0xfffff
		lo12 := signExtend(uint64(v), 12)
		var seq []uint32
		if hi20 != 0 {
			seq = append(seq, utype(hi20, rd, opLui))
		}
		switch {
		case hi20 == 0:
			seq = append(seq, itype(lo12, arch.Zero, 0, rd, opOpImm))
		case lo12 != 0:
			seq = append(seq, itype(lo12, rd, 0, rd, opOpImmW))
		}
		return seq
	}
	lo12 := signExtend(uint64(v), 12)
	hi52 := int64((uint64(v) + 0x800) >> 12)
	shift := 12 + bits.TrailingZeros64(uint64(hi52))
	hi52 = signExtend(uint64(hi52>>(shift-12)), uint(64-shift))
	seq := liSeq(rd, hi52)
	seq = append(seq, uint32(shift)<<20|uint32(rd)<<15|1<<12|uint32(rd)<<7|opOpImm)
	if lo12 != 0 {
		seq = append(seq, itype(lo12, rd, 0, rd, opOpImm))
	}
	return seq
}

func signExtend(v uint64, n uint) int64 {
	shift := 64 - n
	return int64(v<<shift) >> shift
}

// LA loads the address of label into rd with auipc+addi.
func (a *Assembler) LA(rd arch.Reg, label string) {
	if !a.checkRegs(rd) {
		return
	}
	a.add(8, func(pc hostarch.Addr) ([]byte, error) {
		t, err := a.target(label)
		if err != nil {
			return nil, err
		}
		off := int64(t - pc)
		if !fitsSigned(off, 32) {
			return nil, fmt.Errorf("%q out of auipc range", label)
		}
		hi20 := ((off + 0x800) >> 12) & 0xfffff
		lo12 := signExtend(uint64(off), 12)
		return encodeWords(utype(hi20, rd, opAuipc), itype(lo12, rd, 0, rd, opOpImm)), nil
	})
}

// Syscall loads nr into a7 and executes ecall.
func (a *Assembler) Syscall(nr int64) {
	a.LI(arch.A7, nr)
	a.ECALL()
}

// Align pads with zero bytes up to a multiple of n.
func (a *Assembler) Align(n int) {
	if pad := (n - a.size%n) % n; pad > 0 {
		a.Bytes(make([]byte, pad))
	}
}

// Bytes emits raw data.
func (a *Assembler) Bytes(b []byte) {
	data := append([]byte(nil), b...)
	a.add(len(data), func(hostarch.Addr) ([]byte, error) { return data, nil })
}

// Asciz defines label at a NUL-terminated copy of s.
func (a *Assembler) Asciz(label, s string) {
	a.Label(label)
	a.Bytes(append([]byte(s), 0))
}
