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

const (
	instEcall  = 0x00000073
	instEbreak = 0x00100073
)

func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

func immI(inst uint32) int64 {
	return int64(int32(inst)) >> 20
}

func immS(inst uint32) int64 {
	return int64(int32(inst))>>25<<5 | int64((inst>>7)&0x1f)
}

func immB(inst uint32) int64 {
	v := uint64((inst>>31)&1)<<12 |
		uint64((inst>>7)&1)<<11 |
		uint64((inst>>25)&0x3f)<<5 |
		uint64((inst>>8)&0xf)<<1
	return signExtend(v, 13)
}

func immU(inst uint32) int64 {
	return int64(int32(inst & 0xfffff000))
}

func immJ(inst uint32) int64 {
	v := uint64((inst>>31)&1)<<20 |
		uint64((inst>>12)&0xff)<<12 |
		uint64((inst>>20)&1)<<11 |
		uint64((inst>>21)&0x3ff)<<1
	return signExtend(v, 21)
}

// step executes one instruction. ok is false if the instruction raised an
// exception, in which case pc still points at it.
func (m *Machine) step() (cause arch.Cause, tval uint64, ok bool) {
	m.cycles++

	pc := m.pc
	inst, err := m.as.Fetch(hostarch.Addr(pc))
	if err != nil {
		cause, tval = faultCause(err, pc, arch.CauseInstructionAccessFault)
		return cause, tval, false
	}
	illegal := func() (arch.Cause, uint64, bool) {
		return arch.CauseIllegalInstruction, uint64(inst), false
	}

	var (
		opcode = inst & 0x7f
		rd     = arch.Reg((inst >> 7) & 0x1f)
		funct3 = (inst >> 12) & 0x7
		rs1    = arch.Reg((inst >> 15) & 0x1f)
		rs2    = arch.Reg((inst >> 20) & 0x1f)
		funct7 = inst >> 25
		x1     = m.regs[rs1]
		x2     = m.regs[rs2]
		next   = pc + arch.InstructionSize
	)

	switch opcode {
	case opLui:
		m.SetReg(rd, uint64(immU(inst)))

	case opAuipc:
		m.SetReg(rd, pc+uint64(immU(inst)))

	case opJal:
		target := pc + uint64(immJ(inst))
		if target%arch.InstructionSize != 0 {
			return arch.CauseInstructionMisaligned, target, false
		}
		m.SetReg(rd, next)
		next = target

	case opJalr:
		if funct3 != 0 {
			return illegal()
		}
		target := (x1 + uint64(immI(inst))) &^ 1
		if target%arch.InstructionSize != 0 {
			return arch.CauseInstructionMisaligned, target, false
		}
		m.SetReg(rd, next)
		next = target

	case opBranch:
		var taken bool
		switch funct3 {
		case 0:
			taken = x1 == x2
		case 1:
			taken = x1 != x2
		case 4:
			taken = int64(x1) < int64(x2)
		case 5:
			taken = int64(x1) >= int64(x2)
		case 6:
			taken = x1 < x2
		case 7:
			taken = x1 >= x2
		default:
			return illegal()
		}
		if taken {
			target := pc + uint64(immB(inst))
			if target%arch.InstructionSize != 0 {
				return arch.CauseInstructionMisaligned, target, false
			}
			next = target
		}

	case opLoad:
		var size int
		signed := true
		switch funct3 {
		case 0:
			size = 1
		case 1:
			size = 2
		case 2:
			size = 4
		case 3:
			size = 8
		case 4:
			size, signed = 1, false
		case 5:
			size, signed = 2, false
		case 6:
			size, signed = 4, false
		default:
			return illegal()
		}
		addr := x1 + uint64(immI(inst))
		var buf [8]byte
		if _, err := m.as.CopyIn(hostarch.Addr(addr), buf[:size]); err != nil {
			cause, tval = faultCause(err, addr, arch.CauseLoadAccessFault)
			return cause, tval, false
		}
		v := hostarch.ByteOrder.Uint64(buf[:])
		if signed && size < 8 {
			v = uint64(signExtend(v, uint(size*8)))
		}
		m.SetReg(rd, v)

	case opStore:
		if funct3 > 3 {
			return illegal()
		}
		size := 1 << funct3
		addr := x1 + uint64(immS(inst))
		var buf [8]byte
		hostarch.ByteOrder.PutUint64(buf[:], x2)
		if _, err := m.as.CopyOut(hostarch.Addr(addr), buf[:size]); err != nil {
			cause, tval = faultCause(err, addr, arch.CauseStoreAccessFault)
			return cause, tval, false
		}

	case opOpImm:
		imm := immI(inst)
		var v uint64
		switch funct3 {
		case 0:
			v = x1 + uint64(imm)
		case 1:
			if inst>>26 != 0 {
				return illegal()
			}
			v = x1 << (imm & 0x3f)
		case 2:
			v = b2u(int64(x1) < imm)
		case 3:
			v = b2u(x1 < uint64(imm))
		case 4:
			v = x1 ^ uint64(imm)
		case 5:
			switch inst >> 26 {
			case 0x00:
				v = x1 >> (imm & 0x3f)
			case 0x10:
				v = uint64(int64(x1) >> (imm & 0x3f))
			default:
				return illegal()
			}
		case 6:
			v = x1 | uint64(imm)
		case 7:
			v = x1 & uint64(imm)
		}
		m.SetReg(rd, v)

	case opOp:
		var v uint64
		switch {
		case funct7 == 0 && funct3 == 0:
			v = x1 + x2
		case funct7 == 0x20 && funct3 == 0:
			v = x1 - x2
		case funct7 == 0 && funct3 == 1:
			v = x1 << (x2 & 0x3f)
		case funct7 == 0 && funct3 == 2:
			v = b2u(int64(x1) < int64(x2))
		case funct7 == 0 && funct3 == 3:
			v = b2u(x1 < x2)
		case funct7 == 0 && funct3 == 4:
			v = x1 ^ x2
		case funct7 == 0 && funct3 == 5:
			v = x1 >> (x2 & 0x3f)
		case funct7 == 0x20 && funct3 == 5:
			v = uint64(int64(x1) >> (x2 & 0x3f))
		case funct7 == 0 && funct3 == 6:
			v = x1 | x2
		case funct7 == 0 && funct3 == 7:
			v = x1 & x2
		default:
			return illegal()
		}
		m.SetReg(rd, v)

	case opOpImmW:
		if funct3 != 0 {
			return illegal()
		}
		m.SetReg(rd, uint64(int64(int32(x1+uint64(immI(inst))))))

	case opOpW:
		var v uint64
		switch {
		case funct7 == 0 && funct3 == 0:
			v = x1 + x2
		case funct7 == 0x20 && funct3 == 0:
			v = x1 - x2
		default:
			return illegal()
		}
		m.SetReg(rd, uint64(int64(int32(v))))

	case opSystem:
		switch inst {
		case instEcall:
			return arch.CauseUserEcall, 0, false
		case instEbreak:
			return arch.CauseBreakpoint, pc, false
		}
		return illegal()

	default:
		return illegal()
	}

	m.pc = next
	return 0, 0, true
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
