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
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// Exit implements the exit syscall. It never returns to the caller.
func Exit(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	t.Kernel().Exit(t, kernel.ExitStatus{Code: args[0].Int64()})
	return 0, kernel.CtrlDoExit, nil
}

// Spawn implements the spawn syscall: it starts the named program as a new
// child of t and returns the child's id. The caller's state is untouched.
func Spawn(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	name, err := t.CopyInString(args[0].Pointer(), linux.MaxSpawnNameBytes)
	if err != nil {
		return 0, nil, err
	}
	child, err := t.Kernel().Spawn(t, name)
	if err != nil {
		return 0, nil, err
	}
	return uintptr(child.ThreadID()), nil, nil
}

// Wait4 implements the wait4 syscall.
//
// On success a0 holds the child's id, a1 its exit code and a2 the signal
// that killed it (0 for a normal exit). If the status pointer is not 0 the
// exit code is also stored there as a 32-bit value; the child is reaped only
// once that store succeeds. Without WNOHANG, a caller with no zombie child
// blocks and re-executes the call once a child exits.
func Wait4(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *kernel.SyscallControl, error) {
	pid := kernel.ThreadID(args[0].Int())
	statusAddr := args[1].Pointer()
	options := args[2].Int()

	if options&^linux.WNOHANG != 0 {
		return 0, nil, linuxerr.EINVAL
	}
	k := t.Kernel()
	res, err := k.WaitNoReap(t, pid, options&linux.WNOHANG != 0)
	if err != nil {
		return 0, nil, err
	}
	if statusAddr != 0 {
		var buf [4]byte
		hostarch.ByteOrder.PutUint32(buf[:], uint32(int32(res.Status.Code)))
		if _, err := t.CopyOut(statusAddr, buf[:]); err != nil {
			return 0, nil, err
		}
	}
	if err := k.Reap(t, res.TID); err != nil {
		return 0, nil, err
	}
	t.Arch().SetReg(arch.A1, uint64(res.Status.Code))
	t.Arch().SetReg(arch.A2, uint64(res.Status.Signo))
	return uintptr(res.TID), nil, nil
}
