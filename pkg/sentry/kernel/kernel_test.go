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

package kernel

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/abi/linux/errno"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
	"gvisor.dev/rvkernel/pkg/sentry/loader/asm"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
	"gvisor.dev/rvkernel/pkg/sentry/mm"
	"gvisor.dev/rvkernel/pkg/sentry/platform/sim"
)

// sysBlock blocks the caller forever.
const sysBlock = 450

func testTable() *SyscallTable {
	return &SyscallTable{Table: map[uintptr]Syscall{
		linux.SYS_EXIT: {Name: "exit", Fn: func(t *Task, _ uintptr, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			t.Kernel().Exit(t, ExitStatus{Code: args[0].Int64()})
			return 0, CtrlDoExit, nil
		}},
		linux.SYS_GETPID: {Name: "getpid", Fn: func(t *Task, _ uintptr, _ arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			return uintptr(t.ThreadID()), nil, nil
		}},
		linux.SYS_SCHED_YIELD: {Name: "sched_yield", Fn: func(t *Task, _ uintptr, _ arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			t.Kernel().Yield(t)
			return 0, nil, nil
		}},
		linux.SYS_NANOSLEEP: {Name: "nanosleep", Fn: func(t *Task, _ uintptr, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			t.Kernel().Sleep(t, time.Duration(args[0].Int64())*time.Millisecond)
			return 0, nil, nil
		}},
		sysBlock: {Name: "block", Fn: func(t *Task, _ uintptr, _ arch.SyscallArguments) (uintptr, *SyscallControl, error) {
			t.Kernel().block(t)
			return 0, nil, nil
		}},
	}}
}

type testKernel struct {
	*Kernel
	plat *sim.Platform
}

func build(t *testing.T, fn func(a *asm.Assembler)) []byte {
	t.Helper()
	data, err := userprog.Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return data
}

func exitWith(code int64) func(a *asm.Assembler) {
	return func(a *asm.Assembler) {
		a.LI(arch.A0, code)
		a.Syscall(linux.SYS_EXIT)
	}
}

func spin(a *asm.Assembler) {
	a.Label("loop")
	a.J("loop")
}

func newTestKernel(t *testing.T, init string, progs map[string]func(a *asm.Assembler), mod func(*Config)) *testKernel {
	t.Helper()
	apps := make(map[string][]byte)
	for name, fn := range progs {
		apps[name] = build(t, fn)
	}
	plat := sim.New(sim.Options{MemoryPages: 64, KernelStacks: 8})
	cfg := Config{
		Platform:     plat,
		Scheduler:    sched.NewRoundRobin(),
		SyscallTable: testTable(),
		Apps:         apps,
		Init:         init,
		Quantum:      100,
	}
	if mod != nil {
		mod(&cfg)
	}
	k, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testKernel{Kernel: k, plat: cfg.Platform.(*sim.Platform)}
}

func tids(ts []*Task) []ThreadID {
	var ids []ThreadID
	for _, t := range ts {
		ids = append(ids, t.ThreadID())
	}
	return ids
}

func TestSpawnExitWait(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){
		"init":  spin,
		"exit7": exitWith(7),
	}, nil)
	root := k.TaskSet().Root()
	if root.ThreadID() != InitTID || root.ParentID() != 0 {
		t.Fatalf("root = %d (parent %d), want %d (parent 0)", root.ThreadID(), root.ParentID(), InitTID)
	}

	x, err := k.Spawn(root, "exit7")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if k.TaskSet().Parent(x) != root {
		t.Errorf("parent of %d is not the root", x.ThreadID())
	}
	if diff := cmp.Diff([]ThreadID{x.ThreadID()}, tids(k.TaskSet().Children(root))); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}

	k.Exit(x, ExitStatus{Code: 7})
	if x.State() != TaskZombie {
		t.Errorf("state after exit = %v, want Zombie", x.State())
	}
	res, err := k.Wait(root, x.ThreadID(), false)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if want := (WaitResult{TID: x.ThreadID(), Status: ExitStatus{Code: 7}}); res != want {
		t.Errorf("Wait = %+v, want %+v", res, want)
	}
	if _, err := k.Wait(root, x.ThreadID(), false); !linuxerr.Equals(linuxerr.ECHILD, err) {
		t.Errorf("second Wait = %v, want ECHILD", err)
	}
	if k.TaskSet().TaskWithID(x.ThreadID()) != nil {
		t.Errorf("reaped task still in the task set")
	}
}

func TestWaitNoReapLeavesZombie(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	root := k.TaskSet().Root()
	x, err := k.Spawn(root, "init")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	k.Exit(x, ExitStatus{Code: 7})

	want := WaitResult{TID: x.ThreadID(), Status: ExitStatus{Code: 7}}
	for i := 0; i < 2; i++ {
		res, err := k.WaitNoReap(root, x.ThreadID(), true)
		if err != nil || res != want {
			t.Fatalf("WaitNoReap #%d = %+v, %v, want %+v", i, res, err, want)
		}
	}
	if k.TaskSet().TaskWithID(x.ThreadID()) == nil {
		t.Fatalf("WaitNoReap removed the zombie")
	}
	if err := k.Reap(x, x.ThreadID()); !linuxerr.Equals(linuxerr.ECHILD, err) {
		t.Errorf("Reap by a non-parent = %v, want ECHILD", err)
	}
	if err := k.Reap(root, x.ThreadID()); err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if err := k.Reap(root, x.ThreadID()); !linuxerr.Equals(linuxerr.ECHILD, err) {
		t.Errorf("second Reap = %v, want ECHILD", err)
	}
}

func TestWaitNoHang(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	root := k.TaskSet().Root()
	if _, err := k.Wait(root, linux.WaitAny, true); !linuxerr.Equals(linuxerr.ECHILD, err) {
		t.Errorf("Wait with no children = %v, want ECHILD", err)
	}
	if _, err := k.Spawn(root, "init"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := k.Wait(root, linux.WaitAny, true); !linuxerr.Equals(linuxerr.EAGAIN, err) {
		t.Errorf("Wait(WNOHANG) with a live child = %v, want EAGAIN", err)
	}
	if _, err := k.Wait(root, 99, true); !linuxerr.Equals(linuxerr.ECHILD, err) {
		t.Errorf("Wait for a stranger = %v, want ECHILD", err)
	}
}

func TestSpawnLeavesCallerUntouched(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	root := k.TaskSet().Root()
	rootAS := root.AddressSpace().(*mm.AddressSpace)
	frameBefore := *root.Arch()
	mappingsBefore := rootAS.Mappings()

	child, err := k.Spawn(root, "init")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if diff := cmp.Diff(frameBefore, *root.Arch()); diff != "" {
		t.Errorf("caller frame changed (-before +after):\n%s", diff)
	}
	if diff := cmp.Diff(mappingsBefore, rootAS.Mappings()); diff != "" {
		t.Errorf("caller mappings changed (-before +after):\n%s", diff)
	}
	shared := make(map[uint64]bool)
	for _, f := range rootAS.WritableFrames() {
		shared[f] = true
	}
	for _, f := range child.AddressSpace().(*mm.AddressSpace).WritableFrames() {
		if shared[f] {
			t.Errorf("frame %d is writable in both tasks", f)
		}
	}
	if got, want := child.Arch().IP(), userprog.TextBase; got != want {
		t.Errorf("child starts at %v, want %v", got, want)
	}
}

func TestSpawnFailures(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, func(c *Config) {
		c.MaxTasks = 3
	})
	k.apps["garbage"] = []byte("not an executable")
	k.apps["huge"] = build(t, func(a *asm.Assembler) {
		a.Bytes(make([]byte, 200*4096))
	})
	root := k.TaskSet().Root()

	free := k.plat.FreeFrames()
	for _, tc := range []struct {
		name string
		want error
	}{
		{"missing", linuxerr.ENOENT},
		{"garbage", linuxerr.ENOEXEC},
		{"huge", linuxerr.ENOMEM},
	} {
		_, err := k.Spawn(root, tc.name)
		if !errors.Is(err, tc.want) {
			t.Errorf("Spawn(%q) = %v, want %v", tc.name, err, tc.want)
		}
	}
	if got := k.plat.FreeFrames(); got != free {
		t.Errorf("failed spawns leaked frames: %d free, want %d", got, free)
	}
	if n := k.TaskSet().Len(); n != 1 {
		t.Errorf("failed spawns registered tasks: %d tasks", n)
	}

	for i := 0; i < 2; i++ {
		if _, err := k.Spawn(root, "init"); err != nil {
			t.Fatalf("Spawn %d: %v", i, err)
		}
	}
	if _, err := k.Spawn(root, "init"); !errors.Is(err, linuxerr.EAGAIN) {
		t.Errorf("Spawn beyond MaxTasks = %v, want EAGAIN", err)
	}
	if got := k.Metrics().Uint64Values()["spawn_failures_total"][""]; got != 4 {
		t.Errorf("spawn_failures_total = %d, want 4", got)
	}
}

func TestSpawnOutOfKernelStacks(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, func(c *Config) {
		c.Platform = sim.New(sim.Options{MemoryPages: 64, KernelStacks: 2})
		c.MaxTasks = 8
	})
	root := k.TaskSet().Root()
	if _, err := k.Spawn(root, "init"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	free := k.plat.FreeFrames()
	if _, err := k.Spawn(root, "init"); !errors.Is(err, linuxerr.EAGAIN) {
		t.Fatalf("Spawn with no kernel stack left = %v, want EAGAIN", err)
	}
	if got := k.plat.FreeFrames(); got != free {
		t.Errorf("address space leaked: %d frames free, want %d", got, free)
	}
	if n := k.TaskSet().Len(); n != 2 {
		t.Errorf("%d tasks registered, want 2", n)
	}
	if n := len(k.TaskSet().Children(root)); n != 1 {
		t.Errorf("root has %d children, want 1", n)
	}
}

func TestIDsNeverReused(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	root := k.TaskSet().Root()
	a, _ := k.Spawn(root, "init")
	k.Exit(a, ExitStatus{})
	if _, err := k.Wait(root, a.ThreadID(), false); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	b, err := k.Spawn(root, "init")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if b.ThreadID() <= a.ThreadID() {
		t.Errorf("id %d handed out after %d", b.ThreadID(), a.ThreadID())
	}
}

func TestReparentToRoot(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	root := k.TaskSet().Root()
	a, _ := k.Spawn(root, "init")
	b, _ := k.Spawn(a, "init")
	c, _ := k.Spawn(a, "init")
	k.Exit(c, ExitStatus{Code: 3})

	k.Exit(a, ExitStatus{})
	for _, orphan := range []*Task{b, c} {
		if got := k.TaskSet().Parent(orphan); got != root {
			t.Errorf("parent of %d = %v, want the root", orphan.ThreadID(), got)
		}
	}
	if diff := cmp.Diff([]ThreadID{a.ThreadID(), b.ThreadID(), c.ThreadID()}, tids(k.TaskSet().Children(root))); diff != "" {
		t.Errorf("root children mismatch (-want +got):\n%s", diff)
	}
	if len(k.TaskSet().Children(a)) != 0 {
		t.Errorf("exited task kept children")
	}
	// The orphaned zombie can now be reaped by the root.
	res, err := k.Wait(root, c.ThreadID(), false)
	if err != nil || res.Status.Code != 3 {
		t.Errorf("Wait(orphan) = %+v, %v, want code 3", res, err)
	}
}

func TestExitFreesMemory(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, nil)
	free := k.plat.FreeFrames()
	x, _ := k.Spawn(k.TaskSet().Root(), "init")
	if k.plat.FreeFrames() >= free {
		t.Fatalf("spawn did not allocate memory")
	}
	k.Exit(x, ExitStatus{})
	if got := k.plat.FreeFrames(); got != free {
		t.Errorf("%d frames free after exit, want %d", got, free)
	}
}

func TestRunRootExit(t *testing.T) {
	k := newTestKernel(t, "exit7", map[string]func(a *asm.Assembler){"exit7": exitWith(7)}, nil)
	es, err := k.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := (ExitStatus{Code: 7}); es != want {
		t.Errorf("Run = %v, want %v", es, want)
	}
}

func TestRunFaults(t *testing.T) {
	for _, tc := range []struct {
		name string
		prog func(a *asm.Assembler)
		want ExitStatus
	}{
		{"load from null", func(a *asm.Assembler) { a.LD(arch.A0, arch.Zero, 0) }, ExitStatus{Code: ExitCodePageFault, Signo: linux.SIGSEGV}},
		{"store to text", func(a *asm.Assembler) {
			a.LI(arch.T0, int64(userprog.TextBase))
			a.SD(arch.Zero, arch.T0, 0)
		}, ExitStatus{Code: ExitCodePageFault, Signo: linux.SIGSEGV}},
		{"illegal", func(a *asm.Assembler) { a.Word(0) }, ExitStatus{Code: ExitCodeIllegal, Signo: linux.SIGILL}},
		{"ebreak", func(a *asm.Assembler) { a.EBREAK() }, ExitStatus{Code: ExitCodeUnknownTrap, Signo: linux.SIGBUS}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": tc.prog}, nil)
			es, err := k.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if es != tc.want {
				t.Errorf("Run = %v, want %v", es, tc.want)
			}
			if !es.Signaled() {
				t.Errorf("fault status is not distinguishable from an exit")
			}
		})
	}
}

func TestFaultDumpsRegisters(t *testing.T) {
	var buf bytes.Buffer
	old := log.Log()
	log.SetTarget(&log.Writer{Next: &buf})
	log.SetLevel(log.Debug)
	defer func() {
		log.SetLevel(old.Level)
		log.SetTarget(old.Emitter)
	}()

	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": func(a *asm.Assembler) {
		a.LI(arch.A0, 0x42)
		a.LD(arch.A1, arch.Zero, 0)
	}}, nil)
	if _, err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	_, dump, ok := strings.Cut(buf.String(), "Registers:")
	if !ok {
		t.Fatalf("no register dump in log:\n%s", buf.String())
	}
	for _, want := range []string{" a0=0x42 ", " a1=0x0 ", " sepc=0x"} {
		if !strings.Contains(dump, want) {
			t.Errorf("register dump %q does not contain %q", dump, want)
		}
	}
}

func TestUnknownSyscallIsENOSYS(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": func(a *asm.Assembler) {
		a.Syscall(333)
		a.Syscall(linux.SYS_EXIT)
	}}, nil)
	es, err := k.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := -int64(errno.ENOSYS); es.Code != want {
		t.Errorf("exit code = %d, want %d", es.Code, want)
	}
	if got := k.Metrics().Uint64Values()["syscalls_total"]["unknown"]; got != 1 {
		t.Errorf("unknown syscalls = %d, want 1", got)
	}
}

func TestSyscallPreservesRegisters(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": func(a *asm.Assembler) {
		a.LI(arch.S0, 0x1234)
		a.LI(arch.T6, -9)
		a.Syscall(linux.SYS_GETPID)
		// exit(a0 + s0 + t6) == 1 + 0x1234 - 9
		a.ADD(arch.A0, arch.A0, arch.S0)
		a.ADD(arch.A0, arch.A0, arch.T6)
		a.Syscall(linux.SYS_EXIT)
	}}, nil)
	es, err := k.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := int64(1 + 0x1234 - 9); es.Code != want {
		t.Errorf("exit code = %d, want %d", es.Code, want)
	}
}

func TestDeadlock(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": func(a *asm.Assembler) {
		a.Syscall(sysBlock)
	}}, nil)
	if _, err := k.Run(context.Background()); !errors.Is(err, ErrDeadlock) {
		t.Errorf("Run = %v, want ErrDeadlock", err)
	}
}

func TestSleepAdvancesIdleClock(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": func(a *asm.Assembler) {
		a.LI(arch.A0, 25)
		a.Syscall(linux.SYS_NANOSLEEP)
		a.Syscall(linux.SYS_EXIT)
	}}, nil)
	es, err := k.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if es.Code != 0 {
		t.Errorf("nanosleep returned %d", es.Code)
	}
	if got := k.Now().Milliseconds(); got < 25 {
		t.Errorf("clock at exit = %dms, want >= 25ms", got)
	}
	if k.Metrics().Uint64Values()["idle_cycles_total"][""] == 0 {
		t.Errorf("no idle cycles recorded")
	}
}

func TestTimerPreemptsSpinner(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": spin}, func(c *Config) {
		c.CycleLimit = 10_000
	})
	_, err := k.Run(context.Background())
	if !errors.Is(err, ErrCycleLimit) {
		t.Fatalf("Run = %v, want ErrCycleLimit", err)
	}
	ticks := k.Metrics().Uint64Values()["timer_ticks_total"][""]
	if ticks < 50 {
		t.Errorf("%d timer ticks in 10000 cycles with a 100 cycle quantum", ticks)
	}
}

func TestRunResumesAfterCancel(t *testing.T) {
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": exitWith(4)}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := k.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run(cancelled) = %v, want context.Canceled", err)
	}
	es, err := k.Run(context.Background())
	if err != nil || es.Code != 4 {
		t.Errorf("Run = %v, %v, want code 4", es, err)
	}
}

func TestRoundRobinDispatchOrder(t *testing.T) {
	// Each task yields forever; the dispatch order must cycle.
	yieldLoop := func(a *asm.Assembler) {
		a.Label("loop")
		a.Syscall(linux.SYS_SCHED_YIELD)
		a.J("loop")
	}
	k := newTestKernel(t, "init", map[string]func(a *asm.Assembler){"init": yieldLoop}, func(c *Config) {
		c.CycleLimit = 2000
	})
	root := k.TaskSet().Root()
	for i := 0; i < 2; i++ {
		if _, err := k.Spawn(root, "init"); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	var order []ThreadID
	k.SyscallTable().Stracer = recorder(func(t *Task) { order = append(order, t.ThreadID()) })
	if _, err := k.Run(context.Background()); !errors.Is(err, ErrCycleLimit) {
		t.Fatalf("Run = %v, want ErrCycleLimit", err)
	}
	if len(order) < 9 {
		t.Fatalf("only %d yields recorded", len(order))
	}
	if diff := cmp.Diff([]ThreadID{1, 2, 3, 1, 2, 3, 1, 2, 3}, order[:9]); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

// recorder is a Stracer that calls f on every syscall entry.
type recorder func(t *Task)

func (r recorder) SyscallEnter(t *Task, _ uintptr, _ arch.SyscallArguments) any {
	r(t)
	return nil
}

func (recorder) SyscallExit(any, *Task, uintptr, uintptr, error) {}
