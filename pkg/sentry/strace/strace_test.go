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

package strace

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/log"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
	"gvisor.dev/rvkernel/pkg/sentry/kernel/sched"
	"gvisor.dev/rvkernel/pkg/sentry/loader/userprog"
	"gvisor.dev/rvkernel/pkg/sentry/platform/sim"
	"gvisor.dev/rvkernel/pkg/sentry/syscalls/riscv64"
)

// traceRun runs init under strace and returns the log output.
func traceRun(t *testing.T, init string, names []string) string {
	t.Helper()
	var buf bytes.Buffer
	old := log.Log()
	log.SetTarget(&log.Writer{Next: &buf})
	defer log.SetTarget(old.Emitter)

	table := riscv64.NewTable()
	if err := Enable(table, names); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	k, err := kernel.New(kernel.Config{
		Platform:     sim.New(sim.Options{MemoryPages: 512, KernelStacks: 32}),
		Scheduler:    sched.NewRoundRobin(),
		SyscallTable: table,
		Apps:         userprog.MustTable(),
		Init:         init,
	})
	if err != nil {
		t.Fatalf("kernel.New: %v", err)
	}
	if _, err := k.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return buf.String()
}

func TestTraceSpawner(t *testing.T) {
	out := traceRun(t, "spawner", nil)
	for _, want := range []string{
		`E spawn(`,
		`"exit7")`,
		`X wait4(2, 0x20000, 0) = ? (to be restarted)`,
		`X wait4(2, 0x20000 {code=7}, 0) = 2 (0x2)`,
		`X exit(7) = ? (exited)`,
		`[    2:exit7] E exit(7)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("trace is missing %q:\n%s", want, out)
		}
	}
}

func TestTraceDecodesTaskInfo(t *testing.T) {
	out := traceRun(t, "info", nil)
	if !strings.Contains(out, "E task_info(0, 0x20000)") {
		t.Errorf("task_info entry not traced:\n%s", out)
	}
	if !strings.Contains(out, "{status=Running") {
		t.Errorf("task_info result not decoded:\n%s", out)
	}
}

func TestFilter(t *testing.T) {
	out := traceRun(t, "spawner", []string{"exit"})
	if strings.Contains(out, "wait4") || strings.Contains(out, "spawn(") {
		t.Errorf("filtered trace contains other syscalls:\n%s", out)
	}
	if got := strings.Count(out, "E exit("); got != 2 {
		t.Errorf("traced %d exits, want 2:\n%s", got, out)
	}
}

func TestTraceNamesErrno(t *testing.T) {
	out := traceRun(t, userprog.InitName, []string{"wait4"})
	if !strings.Contains(out, "= -10 ECHILD (no child processes)") {
		t.Errorf("final wait4 did not report ECHILD:\n%s", out)
	}
}

func TestEnableUnknownName(t *testing.T) {
	if err := Enable(riscv64.NewTable(), []string{"fork"}); err == nil {
		t.Errorf("Enable accepted an unknown syscall")
	}
}

func TestEveryTableSyscallHasFormat(t *testing.T) {
	table := riscv64.NewTable()
	for _, no := range table.Numbers() {
		info, ok := Lookup()[no]
		if !ok {
			t.Errorf("no format for %s", table.LookupName(no))
			continue
		}
		if got, want := info.name, table.LookupName(no); got != want {
			t.Errorf("syscall %d is formatted as %q, want %q", no, got, want)
		}
	}
}

func TestProt(t *testing.T) {
	for _, tc := range []struct {
		prot uint64
		want string
	}{
		{0, "PROT_NONE"},
		{linux.PROT_READ, "PROT_READ"},
		{linux.PROT_READ | linux.PROT_WRITE, "PROT_READ|PROT_WRITE"},
		{linux.PROT_READ | linux.PROT_EXEC | 0x10, "PROT_READ|PROT_EXEC|0x10"},
	} {
		if got := prot(tc.prot); got != tc.want {
			t.Errorf("prot(%#x) = %q, want %q", tc.prot, got, tc.want)
		}
	}
}

func TestTraceHeap(t *testing.T) {
	out := traceRun(t, "heap", []string{"mmap", "munmap"})
	for _, want := range []string{
		`E mmap(0x10000000, 0x1000, PROT_READ|PROT_WRITE)`,
		`X munmap(0x10000000, 0x1000) = 0 (0x0)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("trace is missing %q:\n%s", want, out)
		}
	}
}
