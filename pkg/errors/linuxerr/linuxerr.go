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

// Package linuxerr contains syscall error codes exported as error interface
// pointers. This allows for fast comparison and return operations comparable
// to unix.Errno constants.
package linuxerr

import (
	goerrors "errors"

	"gvisor.dev/rvkernel/pkg/abi/linux/errno"
	"gvisor.dev/rvkernel/pkg/errors"
)

// The following varables have the same meaning as their errno equivalent.
var (
	EPERM        = errors.New(errno.EPERM, "operation not permitted")
	ENOENT       = errors.New(errno.ENOENT, "no such file or directory")
	ESRCH        = errors.New(errno.ESRCH, "no such process")
	EINTR        = errors.New(errno.EINTR, "interrupted system call")
	EIO          = errors.New(errno.EIO, "I/O error")
	E2BIG        = errors.New(errno.E2BIG, "argument list too long")
	ENOEXEC      = errors.New(errno.ENOEXEC, "exec format error")
	EBADF        = errors.New(errno.EBADF, "bad file number")
	ECHILD       = errors.New(errno.ECHILD, "no child processes")
	EAGAIN       = errors.New(errno.EAGAIN, "try again")
	ENOMEM       = errors.New(errno.ENOMEM, "out of memory")
	EACCES       = errors.New(errno.EACCES, "permission denied")
	EFAULT       = errors.New(errno.EFAULT, "bad address")
	EBUSY        = errors.New(errno.EBUSY, "device or resource busy")
	EEXIST       = errors.New(errno.EEXIST, "file exists")
	EINVAL       = errors.New(errno.EINVAL, "invalid argument")
	ENOSPC       = errors.New(errno.ENOSPC, "no space left on device")
	ERANGE       = errors.New(errno.ERANGE, "math result not representable")
	EDEADLK      = errors.New(errno.EDEADLK, "resource deadlock would occur")
	ENAMETOOLONG = errors.New(errno.ENAMETOOLONG, "file name too long")
	ENOSYS       = errors.New(errno.ENOSYS, "invalid system call number")

	// Errors equivalent to other errors.
	EWOULDBLOCK = EAGAIN
)

// ERESTARTSYS is returned by a syscall that blocked the calling task. The
// syscall is re-executed from the beginning once the task runs again.
var ERESTARTSYS = errors.New(errno.ERESTARTSYS, "to be restarted")

var errorMap = map[errno.Errno]*errors.Error{
	errno.EPERM:        EPERM,
	errno.ENOENT:       ENOENT,
	errno.ESRCH:        ESRCH,
	errno.EINTR:        EINTR,
	errno.EIO:          EIO,
	errno.E2BIG:        E2BIG,
	errno.ENOEXEC:      ENOEXEC,
	errno.EBADF:        EBADF,
	errno.ECHILD:       ECHILD,
	errno.EAGAIN:       EAGAIN,
	errno.ENOMEM:       ENOMEM,
	errno.EACCES:       EACCES,
	errno.EFAULT:       EFAULT,
	errno.EBUSY:        EBUSY,
	errno.EEXIST:       EEXIST,
	errno.EINVAL:       EINVAL,
	errno.ENOSPC:       ENOSPC,
	errno.ERANGE:       ERANGE,
	errno.EDEADLK:      EDEADLK,
	errno.ENAMETOOLONG: ENAMETOOLONG,
	errno.ENOSYS:       ENOSYS,
	errno.ERESTARTSYS:  ERESTARTSYS,
}

// FromErrno returns the *errors.Error for e, or nil if e is unknown or
// NOERRNO.
func FromErrno(e errno.Errno) *errors.Error {
	return errorMap[e]
}

// errorUnwrappers is an array of unwrap functions to extract typed errors.
var errorUnwrappers = []func(error) (*errors.Error, bool){}

// AddErrorUnwrapper registers an unwrap method that can extract a concrete error
// from a typed, but not initialized, error.
func AddErrorUnwrapper(unwrap func(e error) (*errors.Error, bool)) {
	errorUnwrappers = append(errorUnwrappers, unwrap)
}

// TranslateError translates errors to errnos, it will return false if
// the error was not registered.
func TranslateError(from error) (*errors.Error, bool) {
	var e *errors.Error
	if goerrors.As(from, &e) {
		return e, true
	}
	// Try to unwrap the error if we couldn't match an error exactly. This
	// might mean that a package has its own error type.
	for _, unwrap := range errorUnwrappers {
		if err, ok := unwrap(from); ok {
			return err, true
		}
	}
	return nil, false
}

// ToErrno translates err to the errno written back to user programs. Errors
// that cannot be translated become EINVAL.
func ToErrno(err error) errno.Errno {
	if err == nil {
		return errno.NOERRNO
	}
	if e, ok := TranslateError(err); ok {
		return e.Errno()
	}
	return errno.EINVAL
}

// Equals compares a linuxerr to a given error.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == nil
	}
	got, ok := TranslateError(err)
	if !ok {
		return false
	}
	return got == e || (e != nil && got.Errno() == e.Errno())
}
