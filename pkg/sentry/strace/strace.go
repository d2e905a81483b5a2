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

// Package strace implements the logic to print out the input and the return
// value of each traced syscall.
package strace

import (
	"fmt"
	"strings"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/arch"
	"gvisor.dev/rvkernel/pkg/sentry/kernel"
)

// syscallEvent is the state carried from syscall entry to syscall exit.
type syscallEvent struct {
	info   SyscallInfo
	args   arch.SyscallArguments
	output []string
	start  uint64
}

func hex(arg arch.SyscallArgument) string {
	return fmt.Sprintf("%#x", arg.Uint64())
}

func name(t *kernel.Task, addr hostarch.Addr) string {
	s, err := t.CopyInString(addr, linux.MaxSpawnNameBytes)
	if err != nil {
		return fmt.Sprintf("%#x (error decoding name: %v)", uint64(addr), err)
	}
	return fmt.Sprintf("%#x %q", uint64(addr), s)
}

func waitOptions(options int32) string {
	if options == linux.WNOHANG {
		return "WNOHANG"
	}
	if options == 0 {
		return "0"
	}
	return fmt.Sprintf("%#x", options)
}

// prot formats mmap protection flags, as in PROT_READ|PROT_WRITE.
func prot(p uint64) string {
	if p == linux.PROT_NONE {
		return "PROT_NONE"
	}
	var flags []string
	for _, f := range []struct {
		bit  uint64
		name string
	}{
		{linux.PROT_READ, "PROT_READ"},
		{linux.PROT_WRITE, "PROT_WRITE"},
		{linux.PROT_EXEC, "PROT_EXEC"},
	} {
		if p&f.bit != 0 {
			flags = append(flags, f.name)
			p &^= f.bit
		}
	}
	if p != 0 {
		flags = append(flags, fmt.Sprintf("%#x", p))
	}
	return strings.Join(flags, "|")
}

func waitStatus(t *kernel.Task, addr hostarch.Addr) string {
	if addr == 0 {
		return "null"
	}
	var buf [4]byte
	if _, err := t.CopyIn(addr, buf[:]); err != nil {
		return fmt.Sprintf("%#x (error decoding status: %v)", uint64(addr), err)
	}
	return fmt.Sprintf("%#x {code=%d}", uint64(addr), int32(hostarch.ByteOrder.Uint32(buf[:])))
}

func timeval(t *kernel.Task, addr hostarch.Addr) string {
	if addr == 0 {
		return "null"
	}
	var buf [linux.SizeOfTimeval]byte
	if _, err := t.CopyIn(addr, buf[:]); err != nil {
		return fmt.Sprintf("%#x (error decoding timeval: %v)", uint64(addr), err)
	}
	var tv linux.Timeval
	tv.UnmarshalBytes(buf[:])
	return fmt.Sprintf("%#x {sec=%d usec=%d}", uint64(addr), tv.Sec, tv.Usec)
}

func taskInfo(t *kernel.Task, addr hostarch.Addr) string {
	var info linux.TaskInfo
	buf := make([]byte, info.SizeBytes())
	if _, err := t.CopyIn(addr, buf); err != nil {
		return fmt.Sprintf("%#x (error decoding task info: %v)", uint64(addr), err)
	}
	info.UnmarshalBytes(buf)
	var calls uint64
	for _, n := range info.SyscallTimes {
		calls += uint64(n)
	}
	return fmt.Sprintf("%#x {status=%v syscalls=%d time_ms=%d}", uint64(addr), info.Status, calls, info.TimeMS)
}

// pre fills in the pre-execution arguments for a syscall.
func (i *SyscallInfo) pre(t *kernel.Task, args arch.SyscallArguments) []string {
	var output []string
	for arg := range args {
		if arg >= len(i.format) {
			break
		}
		switch i.format[arg] {
		case Int:
			output = append(output, fmt.Sprintf("%d", args[arg].Int64()))
		case Name:
			output = append(output, name(t, args[arg].Pointer()))
		case WaitOptions:
			output = append(output, waitOptions(args[arg].Int()))
		case ProtectionFlags:
			output = append(output, prot(args[arg].Uint64()))
		default:
			output = append(output, hex(args[arg]))
		}
	}
	return output
}

// post fills in the post-execution arguments for a syscall. The output slice
// was created by pre.
func (i *SyscallInfo) post(t *kernel.Task, args arch.SyscallArguments, output []string) {
	for arg := range output {
		switch i.format[arg] {
		case PostWaitStatus:
			output[arg] = waitStatus(t, args[arg].Pointer())
		case PostTimeval:
			output[arg] = timeval(t, args[arg].Pointer())
		case PostTaskInfo:
			output[arg] = taskInfo(t, args[arg].Pointer())
		}
	}
}

// SyscallEnter implements kernel.Stracer.SyscallEnter.
func (s SyscallMap) SyscallEnter(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) any {
	info, ok := s[sysno]
	if !ok {
		info = SyscallInfo{
			name:   fmt.Sprintf("sys_%d", sysno),
			format: defaultFormat,
		}
	}
	output := info.pre(t, args)
	t.Infof("E %s(%s)", info.name, strings.Join(output, ", "))
	return &syscallEvent{
		info:   info,
		args:   args,
		output: output,
		start:  t.Kernel().Cycles(),
	}
}

// SyscallExit implements kernel.Stracer.SyscallExit.
func (s SyscallMap) SyscallExit(cookie any, t *kernel.Task, sysno, rval uintptr, err error) {
	ev := cookie.(*syscallEvent)
	elapsed := t.Kernel().Cycles() - ev.start
	if t.State() == kernel.TaskZombie {
		// The address space is gone.
		t.Infof("X %s(%s) = ? (exited) (%d cycles)", ev.info.name, strings.Join(ev.output, ", "), elapsed)
		return
	}

	var ret string
	switch {
	case err == nil:
		ev.info.post(t, ev.args, ev.output)
		ret = fmt.Sprintf("%d (%#x)", int64(rval), rval)
	case linuxerr.Equals(linuxerr.ERESTARTSYS, err):
		ret = "? (to be restarted)"
	default:
		e, ok := linuxerr.TranslateError(err)
		if !ok {
			e = linuxerr.EINVAL
		}
		ret = fmt.Sprintf("%d %s (%v)", -int64(e.Errno()), e.Name(), err)
	}
	t.Infof("X %s(%s) = %s (%d cycles)", ev.info.name, strings.Join(ev.output, ", "), ret, elapsed)
}

// Enable installs a Stracer on table. If names is empty every syscall is
// traced; otherwise only the named ones are.
func Enable(table *kernel.SyscallTable, names []string) error {
	m := Lookup()
	if len(names) == 0 {
		table.Stracer = m
		return nil
	}
	filtered := make(SyscallMap, len(names))
	for _, n := range names {
		sysno, err := table.LookupNo(n)
		if err != nil {
			return err
		}
		info, ok := m[sysno]
		if !ok {
			info = SyscallInfo{name: n, format: defaultFormat}
		}
		filtered[sysno] = info
	}
	table.Stracer = filter(filtered)
	return nil
}

// filter traces only the syscalls it contains.
type filter SyscallMap

// SyscallEnter implements kernel.Stracer.SyscallEnter.
func (f filter) SyscallEnter(t *kernel.Task, sysno uintptr, args arch.SyscallArguments) any {
	if _, ok := f[sysno]; !ok {
		return nil
	}
	return SyscallMap(f).SyscallEnter(t, sysno, args)
}

// SyscallExit implements kernel.Stracer.SyscallExit.
func (f filter) SyscallExit(cookie any, t *kernel.Task, sysno, rval uintptr, err error) {
	if cookie == nil {
		return
	}
	SyscallMap(f).SyscallExit(cookie, t, sysno, rval, err)
}

// Disable removes the Stracer from table.
func Disable(table *kernel.SyscallTable) {
	table.Stracer = nil
}
