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

package userprog

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/loader"
	"gvisor.dev/rvkernel/pkg/sentry/mm"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
	"gvisor.dev/rvkernel/pkg/sentry/platform/sim"
)

func TestTableLoads(t *testing.T) {
	table, err := Table()
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if len(table) != len(Programs()) {
		t.Errorf("Table has %d images, want %d", len(table), len(Programs()))
	}
	for name, data := range table {
		img, err := loader.Load(data, loader.DefaultStackPages)
		if err != nil {
			t.Errorf("Load(%q): %v", name, err)
			continue
		}
		if img.Entry != TextBase {
			t.Errorf("%q entry = %v, want %v", name, img.Entry, TextBase)
		}
		if got, want := len(img.Segments), 3; got != want {
			t.Errorf("%q has %d segments, want %d", name, got, want)
		}
	}
}

func TestProgramsSorted(t *testing.T) {
	var names []string
	for _, p := range Programs() {
		names = append(names, p.Name)
	}
	want := []string{"breakpoint", "exit0", "exit7", "faulter", "heap", "illegal", "info", "init", "locker", "orphan_maker", "sleeper", "spawner", "spinner", "yielder"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Programs() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := Lookup("nope"); ok {
		t.Errorf("Lookup(nope) succeeded")
	}
}

// runAlone runs a program on a bare hart until its first trap.
func runAlone(t *testing.T, name string) (platform.Trap, *arch.TrapFrame) {
	t.Helper()
	p, ok := Lookup(name)
	if !ok {
		t.Fatalf("Lookup(%q) failed", name)
	}
	data, err := p.ELF()
	if err != nil {
		t.Fatalf("ELF: %v", err)
	}
	img, err := loader.Load(data, loader.DefaultStackPages)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	plat := sim.New(sim.Options{MemoryPages: 16, KernelStacks: 1})
	as, err := plat.NewAddressSpace(img.Segments)
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	tf := arch.NewUserFrame(img.Entry, img.Stack)
	if _, err := plat.NewKernelStack(tf); err != nil {
		t.Fatalf("NewKernelStack: %v", err)
	}
	tr, err := plat.NewContext().Switch(as, tf)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	return tr, tf
}

func TestStandalonePrograms(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cause arch.Cause
		value uint64
		// a0 and a7 are checked for ecalls.
		a0, a7 uint64
	}{
		{name: "exit0", cause: arch.CauseUserEcall, a0: 0, a7: linux.SYS_EXIT},
		{name: "exit7", cause: arch.CauseUserEcall, a0: 7, a7: linux.SYS_EXIT},
		{name: "spinner", cause: arch.CauseUserEcall, a0: 0, a7: linux.SYS_EXIT},
		{name: "yielder", cause: arch.CauseUserEcall, a7: linux.SYS_SCHED_YIELD},
		{name: "sleeper", cause: arch.CauseUserEcall, a0: SleepMS, a7: linux.SYS_NANOSLEEP},
		{name: "info", cause: arch.CauseUserEcall, a7: linux.SYS_GETPID},
		{name: "spawner", cause: arch.CauseUserEcall, a7: linux.SYS_SPAWN},
		{name: "heap", cause: arch.CauseUserEcall, a0: 0, a7: linux.SYS_SBRK},
		{name: "locker", cause: arch.CauseUserEcall, a0: 1, a7: linux.SYS_MUTEX_CREATE},
		{name: "faulter", cause: arch.CauseLoadPageFault, value: 0},
		{name: "illegal", cause: arch.CauseIllegalInstruction, value: 0},
		{name: "breakpoint", cause: arch.CauseBreakpoint, value: uint64(TextBase)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tr, tf := runAlone(t, tc.name)
			if tr.Cause != tc.cause {
				t.Fatalf("trap = %v, want %v", tr, tc.cause)
			}
			if tc.cause != arch.CauseUserEcall {
				if tr.Value != tc.value {
					t.Errorf("stval = %#x, want %#x", tr.Value, tc.value)
				}
				return
			}
			if got := tf.Reg(arch.A7); got != tc.a7 {
				t.Errorf("a7 = %d, want %d", got, tc.a7)
			}
			if tc.a7 != linux.SYS_SPAWN && tf.Reg(arch.A0) != tc.a0 {
				t.Errorf("a0 = %d, want %d", tf.Reg(arch.A0), tc.a0)
			}
		})
	}
}

func TestSpawnArgumentIsName(t *testing.T) {
	tr, tf := runAlone(t, "spawner")
	if tr.Cause != arch.CauseUserEcall {
		t.Fatalf("trap = %v, want ecall", tr)
	}
	p, _ := Lookup("spawner")
	data, _ := p.ELF()
	img, _ := loader.Load(data, loader.DefaultStackPages)
	plat := sim.New(sim.Options{MemoryPages: 16, KernelStacks: 1})
	as, err := plat.NewAddressSpace(img.Segments)
	if err != nil {
		t.Fatalf("NewAddressSpace: %v", err)
	}
	name, err := mm.CopyInString(as, hostarch.Addr(tf.Reg(arch.A0)), linux.MaxSpawnNameBytes)
	if err != nil {
		t.Fatalf("CopyInString: %v", err)
	}
	if name != "exit7" {
		t.Errorf("spawn argument = %q, want exit7", name)
	}
}
