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

// Package errno holds errno codes for the syscall ABI exposed to
// user programs.
package errno

import "golang.org/x/sys/unix"

// Errno represents a Linux errno value.
type Errno uint32

// Errno values used by the syscall ABI. Values are the generic Linux ones,
// which is also what RISC-V Linux uses.
const (
	NOERRNO = Errno(0)
	EPERM   = Errno(unix.EPERM)
	ENOENT  = Errno(unix.ENOENT)
	ESRCH   = Errno(unix.ESRCH)
	EINTR   = Errno(unix.EINTR)
	EIO     = Errno(unix.EIO)
	E2BIG   = Errno(unix.E2BIG)
	ENOEXEC = Errno(unix.ENOEXEC)
	EBADF   = Errno(unix.EBADF)
	ECHILD  = Errno(unix.ECHILD)
	EAGAIN  = Errno(unix.EAGAIN)
	ENOMEM  = Errno(unix.ENOMEM)
	EACCES  = Errno(unix.EACCES)
	EFAULT  = Errno(unix.EFAULT)
	EBUSY   = Errno(unix.EBUSY)
	EEXIST  = Errno(unix.EEXIST)
	EINVAL  = Errno(unix.EINVAL)
	ENOSPC  = Errno(unix.ENOSPC)
	ERANGE  = Errno(unix.ERANGE)
	EDEADLK = Errno(unix.EDEADLK)

	ENAMETOOLONG = Errno(unix.ENAMETOOLONG)
	ENOSYS       = Errno(unix.ENOSYS)

	EWOULDBLOCK = EAGAIN

	// ERESTARTSYS is internal: the syscall must be re-executed once the
	// task is woken. It is never visible to user programs.
	ERESTARTSYS = Errno(512)
)
