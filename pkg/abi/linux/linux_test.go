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

package linux

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTaskInfoLayout(t *testing.T) {
	if SizeOfTaskInfo != 2016 {
		t.Fatalf("SizeOfTaskInfo = %d, want 2016", SizeOfTaskInfo)
	}
	ti := TaskInfo{Status: TaskRunning, TimeMS: 0x0102030405060708}
	ti.SyscallTimes[SYS_GETPID] = 3
	ti.SyscallTimes[MaxSyscallNum-1] = 0xffffffff
	buf := make([]byte, ti.SizeBytes())
	ti.MarshalBytes(buf)

	if buf[0] != 2 || buf[4] != 0 {
		t.Errorf("status bytes = %v, want [2 0 0 0 0 ...]", buf[:8])
	}
	if got := buf[8+4*SYS_GETPID]; got != 3 {
		t.Errorf("count for getpid = %d, want 3", got)
	}
	if got := buf[2008]; got != 0x08 {
		t.Errorf("low byte of time = %#x, want 0x08", got)
	}

	var back TaskInfo
	back.UnmarshalBytes(buf)
	if diff := cmp.Diff(ti, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTimeval(t *testing.T) {
	tv := NsecToTimeval(3_500_250_000)
	if want := (Timeval{Sec: 3, Usec: 500250}); tv != want {
		t.Errorf("NsecToTimeval = %+v, want %+v", tv, want)
	}
}

func TestSignalString(t *testing.T) {
	if got := SIGSEGV.String(); got != "SIGSEGV" {
		t.Errorf("SIGSEGV.String() = %q", got)
	}
	if got := Signal(0).String(); got != "signal 0" {
		t.Errorf("Signal(0).String() = %q", got)
	}
}

func TestProtToAccessType(t *testing.T) {
	for _, tc := range []struct {
		prot uint64
		want string
		ok   bool
	}{
		{PROT_READ, "r--", true},
		{PROT_READ | PROT_WRITE, "rw-", true},
		{PROT_READ | PROT_EXEC, "r-x", true},
		{PROT_WRITE, "-w-", true},
		{PROT_READ | PROT_WRITE | PROT_EXEC, "rwx", true},
		{PROT_NONE, "---", false},
		{8, "---", false},
		{9, "---", false},
	} {
		at, ok := ProtToAccessType(tc.prot)
		if ok != tc.ok || at.String() != tc.want {
			t.Errorf("ProtToAccessType(%d) = %v, %t, want %s, %t", tc.prot, at, ok, tc.want, tc.ok)
		}
	}
}
