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
	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
)

// doSyscall handles a syscall trap of t. The syscall's effects are complete
// when it returns. Syscalls never terminate the caller except exit itself.
func (k *Kernel) doSyscall(t *Task) {
	sysno := t.tf.SyscallNo()
	args := t.tf.SyscallArgs()

	// Resume after the ecall unless the syscall is restarted.
	t.tf.StepOverSyscall()

	// A restarted syscall was counted when it was first made.
	if !t.restarting {
		if sysno < linux.MaxSyscallNum {
			t.stats.Syscalls[sysno]++
		}
		k.metrics.syscall(k.syscalls, sysno)
	}
	t.restarting = false

	var cookie any
	st := k.syscalls.Stracer
	if st != nil {
		cookie = st.SyscallEnter(t, sysno, args)
	}
	rval, ctrl, err := k.executeSyscall(t, sysno, args)
	if st != nil {
		st.SyscallExit(cookie, t, sysno, rval, err)
	}

	if ctrl != nil && ctrl.ignoreReturn {
		return
	}
	switch {
	case err == nil:
		t.tf.SetReturn(rval)
	case linuxerr.Equals(linuxerr.ERESTARTSYS, err):
		t.Debugf("Restarting syscall %d: %v", sysno, err)
		t.tf.RestartSyscall()
		t.restarting = true
	default:
		t.tf.SetReturn(uintptr(-int64(linuxerr.ToErrno(err))))
	}
}

func (k *Kernel) executeSyscall(t *Task, sysno uintptr, args arch.SyscallArguments) (uintptr, *SyscallControl, error) {
	fn := k.syscalls.Lookup(sysno)
	if fn == nil {
		if k.syscalls.Missing != nil {
			return k.syscalls.Missing(t, sysno, args)
		}
		t.Debugf("Unsupported syscall %d", sysno)
		return 0, nil, linuxerr.ENOSYS
	}
	return fn(t, sysno, args)
}
