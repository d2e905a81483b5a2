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

import "gvisor.dev/rvkernel/pkg/hostarch"

// SizeOfTimeval is the size of a Timeval struct in bytes.
const SizeOfTimeval = 16

// Timeval represents struct timeval in <time.h>, as written by get_time.
type Timeval struct {
	Sec  int64
	Usec int64
}

// NsecToTimeval translates nanoseconds to Timeval (rounded down to
// microseconds).
func NsecToTimeval(nsec int64) Timeval {
	return Timeval{Sec: nsec / 1e9, Usec: (nsec % 1e9) / 1e3}
}

// MarshalBytes serializes tv into dst.
//
// Preconditions: len(dst) >= SizeOfTimeval.
func (tv *Timeval) MarshalBytes(dst []byte) {
	hostarch.ByteOrder.PutUint64(dst[0:], uint64(tv.Sec))
	hostarch.ByteOrder.PutUint64(dst[8:], uint64(tv.Usec))
}

// UnmarshalBytes deserializes tv from src.
//
// Preconditions: len(src) >= SizeOfTimeval.
func (tv *Timeval) UnmarshalBytes(src []byte) {
	tv.Sec = int64(hostarch.ByteOrder.Uint64(src[0:]))
	tv.Usec = int64(hostarch.ByteOrder.Uint64(src[8:]))
}
