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

// Package ktime provides the simulated machine's notion of time, derived from
// the hart's cycle counter.
package ktime

import (
	"fmt"
	"math"
	"time"

	"gvisor.dev/rvkernel/pkg/abi/linux"
)

// Time represents an instant in time with nanosecond precision, measured from
// boot.
//
// Time may represent time with respect to any clock and may not have any
// meaning in the real world.
type Time struct {
	ns int64
}

var (
	// ZeroTime is the instant the machine booted.
	ZeroTime = Time{ns: 0}

	// MaxTime is the highest possible time that can be represented by
	// Time.
	MaxTime = Time{ns: math.MaxInt64}
)

// FromNanoseconds returns a Time representing the point ns nanoseconds after
// boot.
func FromNanoseconds(ns int64) Time {
	return Time{ns}
}

// Nanoseconds returns nanoseconds elapsed since boot.
func (t Time) Nanoseconds() int64 {
	return t.ns
}

// Microseconds returns microseconds elapsed since boot.
func (t Time) Microseconds() int64 {
	return t.ns / 1000
}

// Milliseconds returns milliseconds elapsed since boot.
func (t Time) Milliseconds() int64 {
	return t.ns / 1e6
}

// Timeval converts Time to a Linux timeval.
func (t Time) Timeval() linux.Timeval {
	return linux.NsecToTimeval(t.ns)
}

// Add adds the duration of d to t, saturating at MaxTime.
func (t Time) Add(d time.Duration) Time {
	if t.ns > 0 && d.Nanoseconds() > math.MaxInt64-t.ns {
		return MaxTime
	}
	return Time{t.ns + d.Nanoseconds()}
}

// Sub returns the duration of t - u.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t.ns - u.ns)
}

// Before returns true if t is before u.
func (t Time) Before(u Time) bool {
	return t.ns < u.ns
}

// After returns true if t is after u.
func (t Time) After(u Time) bool {
	return t.ns > u.ns
}

// String returns the time since boot.
func (t Time) String() string {
	return fmt.Sprintf("%v", time.Duration(t.ns))
}

// Clock converts between hart cycles and Time at a fixed frequency.
type Clock struct {
	// Hz is the number of cycles per second.
	Hz uint64
}

// Time returns the instant cycles cycles after boot.
func (c Clock) Time(cycles uint64) Time {
	sec := cycles / c.Hz
	rem := cycles % c.Hz
	if sec > uint64(math.MaxInt64)/1_000_000_000 {
		return MaxTime
	}
	ns := sec*1e9 + rem*1e9/c.Hz
	if ns > math.MaxInt64 {
		return MaxTime
	}
	return Time{int64(ns)}
}

// Cycles returns the number of cycles in d, rounded up so that a non-zero
// duration is never zero cycles.
func (c Clock) Cycles(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	ns := uint64(d.Nanoseconds())
	sec, rem := ns/1e9, ns%1e9
	return sec*c.Hz + (rem*c.Hz+1e9-1)/1e9
}
