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

// Package userprog contains the built-in user programs. Each program is
// assembled with package asm and packaged as an ELF executable, so the
// kernel loads it exactly like an image read from disk.
package userprog

import (
	"fmt"
	"sort"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/abi/linux/errno"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
	"gvisor.dev/rvkernel/pkg/sentry/loader/asm"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

const (
	// TextBase is the load address of program text.
	TextBase = hostarch.Addr(0x10000)

	// DataBase is the load address of the zero-filled data segment.
	DataBase = hostarch.Addr(0x20000)

	// DataPages is the size of the data segment.
	DataPages = 1

	// InitName is the name of the program booted as the root task.
	InitName = "init"

	// SpinIterations is the loop count of the spinner program.
	SpinIterations = 20000

	// YieldCount is the number of sched_yield calls yielder makes.
	YieldCount = 5

	// SleepMS is the nanosleep duration used by sleeper.
	SleepMS = 10

	// MmapBase is where heap maps its anonymous page.
	MmapBase = hostarch.Addr(0x1000_0000)

	// HeapValue is the value heap moves through its heap and mapped pages
	// and exits with.
	HeapValue = 42
)

// Program is a built-in user program.
type Program struct {
	// Name is the name the program is spawned by.
	Name string

	// Description is a one-line summary shown by the CLI.
	Description string

	// ExitCode is the code the program exits with when run alone.
	ExitCode int64

	build func(a *asm.Assembler)
}

var programs []Program

func init() {
	programs = []Program{
		{Name: "exit0", Description: "exits with code 0", ExitCode: 0, build: exitWith(0)},
		{Name: "exit7", Description: "exits with code 7", ExitCode: 7, build: exitWith(7)},
		{Name: "faulter", Description: "loads from address 0", ExitCode: -2, build: faulter},
		{Name: "illegal", Description: "executes an all-zero instruction", ExitCode: -3, build: illegal},
		{Name: "breakpoint", Description: "executes ebreak", ExitCode: -4, build: breakpoint},
		{Name: "spinner", Description: "busy loops until preempted several times", ExitCode: 0, build: spinner},
		{Name: "yielder", Description: "calls sched_yield in a loop", ExitCode: 0, build: yielder},
		{Name: "sleeper", Description: "sleeps for a few milliseconds", ExitCode: 0, build: sleeper},
		{Name: "spawner", Description: "spawns exit7, waits for it and exits with its code", ExitCode: 7, build: spawner},
		{Name: "orphan_maker", Description: "spawns sleeper and exits without waiting", ExitCode: 0, build: orphanMaker},
		{Name: "info", Description: "reads its own task_info and exits with the status", ExitCode: int64(linux.TaskRunning), build: info},
		{Name: "heap", Description: "grows its heap with sbrk and maps and unmaps a page", ExitCode: HeapValue, build: heap},
		{Name: "locker", Description: "uses a mutex, a semaphore and a condition variable and trips deadlock detection", ExitCode: 0, build: locker},
		{Name: InitName, Description: "spawns every other program and reaps all children", ExitCode: 0, build: initProgram},
	}
}

// Programs returns the built-in programs sorted by name.
func Programs() []Program {
	ps := append([]Program(nil), programs...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Name < ps[j].Name })
	return ps
}

// Lookup returns the program called name.
func Lookup(name string) (Program, bool) {
	for _, p := range programs {
		if p.Name == name {
			return p, true
		}
	}
	return Program{}, false
}

// ELF assembles p and returns its executable image.
func (p Program) ELF() ([]byte, error) {
	data, err := Build(p.build)
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", p.Name, err)
	}
	return data, nil
}

// Table returns every built-in program's image keyed by name.
func Table() (map[string][]byte, error) {
	t := make(map[string][]byte, len(programs))
	for _, p := range programs {
		data, err := p.ELF()
		if err != nil {
			return nil, err
		}
		t[p.Name] = data
	}
	return t, nil
}

// MustTable is Table for callers that cannot recover from a broken built-in
// program.
func MustTable() map[string][]byte {
	t, err := Table()
	if err != nil {
		panic(fmt.Sprintf("built-in programs: %v", err))
	}
	return t
}

// Build assembles a program at TextBase and packages it with an empty data
// segment at DataBase.
func Build(fn func(a *asm.Assembler)) ([]byte, error) {
	a := asm.New(TextBase)
	fn(a)
	text, err := a.Assemble()
	if err != nil {
		return nil, err
	}
	return loader.BuildELF(TextBase, []platform.Segment{
		{Addr: TextBase, Size: uint64(len(text)), Perms: hostarch.ReadExec, Data: text},
		{Addr: DataBase, Size: DataPages * hostarch.PageSize, Perms: hostarch.ReadWrite},
	})
}

// exitReg emits exit(rs).
func exitReg(a *asm.Assembler, rs arch.Reg) {
	a.MV(arch.A0, rs)
	a.Syscall(linux.SYS_EXIT)
}

func exitWith(code int64) func(a *asm.Assembler) {
	return func(a *asm.Assembler) {
		a.LI(arch.A0, code)
		a.Syscall(linux.SYS_EXIT)
	}
}

func faulter(a *asm.Assembler) {
	a.LD(arch.A0, arch.Zero, 0)
	exitWith(0)(a)
}

func illegal(a *asm.Assembler) {
	a.Word(0)
	exitWith(0)(a)
}

func breakpoint(a *asm.Assembler) {
	a.EBREAK()
	exitWith(0)(a)
}

func spinner(a *asm.Assembler) {
	a.LI(arch.S0, SpinIterations)
	a.Label("loop")
	a.ADDI(arch.S0, arch.S0, -1)
	a.BNEZ(arch.S0, "loop")
	exitWith(0)(a)
}

func yielder(a *asm.Assembler) {
	a.LI(arch.S0, YieldCount)
	a.Label("loop")
	a.Syscall(linux.SYS_SCHED_YIELD)
	a.ADDI(arch.S0, arch.S0, -1)
	a.BNEZ(arch.S0, "loop")
	exitWith(0)(a)
}

func sleeper(a *asm.Assembler) {
	a.LI(arch.A0, SleepMS)
	a.Syscall(linux.SYS_NANOSLEEP)
	a.MV(arch.S0, arch.A0)
	exitReg(a, arch.S0)
}

// spawnName emits spawn(name) leaving the result in a0.
func spawnName(a *asm.Assembler, label string) {
	a.LA(arch.A0, label)
	a.Syscall(linux.SYS_SPAWN)
}

func spawner(a *asm.Assembler) {
	spawnName(a, "child")
	a.BLTZ(arch.A0, "fail")
	a.MV(arch.S0, arch.A0)
	// wait4(child, &status, 0)
	a.MV(arch.A0, arch.S0)
	a.LI(arch.A1, int64(DataBase))
	a.LI(arch.A2, 0)
	a.Syscall(linux.SYS_WAIT4)
	a.BNE(arch.A0, arch.S0, "fail")
	a.LI(arch.T0, int64(DataBase))
	a.LW(arch.S1, arch.T0, 0)
	exitReg(a, arch.S1)
	a.Label("fail")
	exitWith(1)(a)
	a.Asciz("child", "exit7")
}

func orphanMaker(a *asm.Assembler) {
	spawnName(a, "child")
	exitWith(0)(a)
	a.Asciz("child", "sleeper")
}

func info(a *asm.Assembler) {
	a.Syscall(linux.SYS_GETPID)
	a.Syscall(linux.SYS_GETPID)
	a.LI(arch.A0, 0)
	a.LI(arch.A1, int64(DataBase))
	a.Syscall(linux.SYS_TASK_INFO)
	a.BNEZ(arch.A0, "fail")
	a.LI(arch.T0, int64(DataBase))
	a.LWU(arch.S0, arch.T0, 0)
	exitReg(a, arch.S0)
	a.Label("fail")
	exitWith(1)(a)
}

func heap(a *asm.Assembler) {
	// s0 = sbrk(0); sbrk(PageSize) must return the same end.
	a.LI(arch.A0, 0)
	a.Syscall(linux.SYS_SBRK)
	a.MV(arch.S0, arch.A0)
	a.LI(arch.A0, hostarch.PageSize)
	a.Syscall(linux.SYS_SBRK)
	a.BNE(arch.A0, arch.S0, "fail")
	a.LI(arch.T0, HeapValue)
	a.SD(arch.T0, arch.S0, 0)
	a.LD(arch.S1, arch.S0, 0)

	a.LI(arch.A0, int64(MmapBase))
	a.LI(arch.A1, hostarch.PageSize)
	a.LI(arch.A2, linux.PROT_READ|linux.PROT_WRITE)
	a.Syscall(linux.SYS_MMAP)
	a.BNEZ(arch.A0, "fail")
	a.LI(arch.T1, int64(MmapBase))
	a.SD(arch.S1, arch.T1, 0)
	a.LD(arch.S2, arch.T1, 0)
	a.LI(arch.A0, int64(MmapBase))
	a.LI(arch.A1, hostarch.PageSize)
	a.Syscall(linux.SYS_MUNMAP)
	a.BNEZ(arch.A0, "fail")

	a.LI(arch.A0, -hostarch.PageSize)
	a.Syscall(linux.SYS_SBRK)
	a.BLTZ(arch.A0, "fail")
	exitReg(a, arch.S2)
	a.Label("fail")
	exitWith(1)(a)
}

func locker(a *asm.Assembler) {
	// s0 = mutex_create(blocking); lock it twice with detection on.
	a.LI(arch.A0, 1)
	a.Syscall(linux.SYS_MUTEX_CREATE)
	a.BLTZ(arch.A0, "fail")
	a.MV(arch.S0, arch.A0)
	a.Syscall(linux.SYS_MUTEX_LOCK)
	a.BNEZ(arch.A0, "fail")
	a.LI(arch.A0, 1)
	a.Syscall(linux.SYS_ENABLE_DEADLOCK_DETECT)
	a.MV(arch.A0, arch.S0)
	a.Syscall(linux.SYS_MUTEX_LOCK)
	a.MV(arch.S1, arch.A0)
	a.LI(arch.A0, 0)
	a.Syscall(linux.SYS_ENABLE_DEADLOCK_DETECT)
	a.LI(arch.T0, -int64(errno.EDEADLK))
	a.BNE(arch.S1, arch.T0, "fail")
	a.MV(arch.A0, arch.S0)
	a.Syscall(linux.SYS_MUTEX_UNLOCK)
	a.BNEZ(arch.A0, "fail")

	// One unit of a semaphore, taken and returned.
	a.LI(arch.A0, 1)
	a.Syscall(linux.SYS_SEMAPHORE_CREATE)
	a.BLTZ(arch.A0, "fail")
	a.MV(arch.S1, arch.A0)
	a.Syscall(linux.SYS_SEMAPHORE_DOWN)
	a.BNEZ(arch.A0, "fail")
	a.MV(arch.A0, arch.S1)
	a.Syscall(linux.SYS_SEMAPHORE_UP)
	a.BNEZ(arch.A0, "fail")

	// Signalling a condition variable nobody waits on.
	a.Syscall(linux.SYS_CONDVAR_CREATE)
	a.BLTZ(arch.A0, "fail")
	a.Syscall(linux.SYS_CONDVAR_SIGNAL)
	a.BNEZ(arch.A0, "fail")
	exitWith(0)(a)
	a.Label("fail")
	exitWith(1)(a)
}

func initProgram(a *asm.Assembler) {
	var children []string
	for _, p := range Programs() {
		if p.Name != InitName {
			children = append(children, p.Name)
		}
	}
	for i := range children {
		spawnName(a, fmt.Sprintf("name%d", i))
	}
	// Reap until ECHILD.
	a.Label("reap")
	a.LI(arch.A0, linux.WaitAny)
	a.LI(arch.A1, 0)
	a.LI(arch.A2, 0)
	a.Syscall(linux.SYS_WAIT4)
	a.BGEZ(arch.A0, "reap")
	exitWith(0)(a)
	for i, name := range children {
		a.Asciz(fmt.Sprintf("name%d", i), name)
	}
}
