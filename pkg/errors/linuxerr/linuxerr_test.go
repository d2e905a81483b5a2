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

package linuxerr

import (
	goerrors "errors"
	"fmt"
	"testing"

	"gvisor.dev/rvkernel/pkg/abi/linux/errno"
	"gvisor.dev/rvkernel/pkg/errors"
)

type faultError struct{ addr uint64 }

func (f faultError) Error() string { return fmt.Sprintf("fault at %#x", f.addr) }

func TestEquals(t *testing.T) {
	for _, tc := range []struct {
		name string
		e    *errors.Error
		err  error
		want bool
	}{
		{"same", ECHILD, ECHILD, true},
		{"different", ECHILD, ESRCH, false},
		{"wrapped", ENOMEM, fmt.Errorf("loading image: %w", ENOMEM), true},
		{"alias", EWOULDBLOCK, EAGAIN, true},
		{"nil both", nil, nil, true},
		{"nil error", EINVAL, nil, false},
		{"untranslatable", EINVAL, fmt.Errorf("plain"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equals(tc.e, tc.err); got != tc.want {
				t.Errorf("Equals(%v, %v) = %t, want %t", tc.e, tc.err, got, tc.want)
			}
		})
	}
}

func TestToErrno(t *testing.T) {
	AddErrorUnwrapper(func(err error) (*errors.Error, bool) {
		if _, ok := err.(faultError); ok {
			return EFAULT, true
		}
		return nil, false
	})
	for _, tc := range []struct {
		err  error
		want errno.Errno
	}{
		{nil, errno.NOERRNO},
		{ESRCH, errno.ESRCH},
		{faultError{0x1000}, errno.EFAULT},
		{fmt.Errorf("who knows"), errno.EINVAL},
	} {
		if got := ToErrno(tc.err); got != tc.want {
			t.Errorf("ToErrno(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestFromErrno(t *testing.T) {
	if got := FromErrno(errno.ECHILD); got != ECHILD {
		t.Errorf("FromErrno(ECHILD) = %v, want %v", got, ECHILD)
	}
	if got := FromErrno(errno.NOERRNO); got != nil {
		t.Errorf("FromErrno(NOERRNO) = %v, want nil", got)
	}
}

func TestName(t *testing.T) {
	for _, tc := range []struct {
		e    *errors.Error
		want string
	}{
		{ENOENT, "ENOENT"},
		{ECHILD, "ECHILD"},
		{ENOSYS, "ENOSYS"},
		{ERESTARTSYS, "ERESTARTSYS"},
	} {
		if got := tc.e.Name(); got != tc.want {
			t.Errorf("%v.Name() = %q, want %q", tc.e, got, tc.want)
		}
	}
}

func TestIsMatchesErrno(t *testing.T) {
	wrapped := fmt.Errorf("3 tasks exist: %w", EAGAIN)
	if !goerrors.Is(wrapped, EWOULDBLOCK) {
		t.Errorf("errors.Is(%v, EWOULDBLOCK) = false, want true", wrapped)
	}
	if goerrors.Is(wrapped, ENOMEM) {
		t.Errorf("errors.Is(%v, ENOMEM) = true, want false", wrapped)
	}
}
