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

package riscv64

import (
	"math"
	"time"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// maxSleepMS is the longest sleep a time.Duration can hold.
const maxSleepMS = math.MaxInt64 / int64(time.Millisecond)

// Nanosleep implements the sleep syscall. The argument is in milliseconds;
// longer sleeps than maxSleepMS are cut to it.
func Nanosleep(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	ms := args[0].Int64()
	if ms < 0 {
		return 0, nil, linuxerr.EINVAL
	}
	t.Kernel().Sleep(t, time.Duration(min(ms, maxSleepMS))*time.Millisecond)
	return 0, nil, nil
}

// Gettimeofday implements the get_time syscall. It returns the kernel clock
// in microseconds and, if tv is not 0, also stores it there as a Timeval.
func Gettimeofday(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	tvAddr := args[0].Pointer()
	now := t.Kernel().Now()
	if tvAddr != 0 {
		tv := now.Timeval()
		var buf [linux.SizeOfTimeval]byte
		tv.MarshalBytes(buf[:])
		if _, err := t.CopyOut(tvAddr, buf[:]); err != nil {
			return 0, nil, err
		}
	}
	return uintptr(now.Microseconds()), nil, nil
}
