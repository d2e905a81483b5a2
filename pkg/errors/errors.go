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

// Package errors holds the standardized error definition for the kernel.
package errors

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
	"gvisor.dev/rvkernel/pkg/abi/linux/errno"
)

// Error is a syscall failure: the errno handed back to the user program plus
// a message for the kernel's own logs.
type Error struct {
	errno   errno.Errno
	message string
}

// New creates a new *Error.
func New(err errno.Errno, message string) *Error {
	return &Error{
		errno:   err,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Errno returns the underlying errno.Errno value.
func (e *Error) Errno() errno.Errno { return e.errno }

// Name returns the symbolic errno name, e.g. "ENOENT".
func (e *Error) Name() string {
	if e.errno == errno.ERESTARTSYS {
		return "ERESTARTSYS"
	}
	if n := unix.ErrnoName(syscall.Errno(e.errno)); n != "" {
		return n
	}
	return fmt.Sprintf("errno %d", e.errno)
}

// Is reports whether target is an *Error carrying the same errno, so aliases
// such as EWOULDBLOCK match through errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.errno == e.errno
}
