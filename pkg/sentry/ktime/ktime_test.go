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

package ktime

import (
	"math"
	"testing"
	"time"
)

func TestClockConversions(t *testing.T) {
	c := Clock{Hz: 1_000_000}
	for _, tc := range []struct {
		cycles uint64
		want   time.Duration
	}{
		{0, 0},
		{1, time.Microsecond},
		{1_500_000, 1500 * time.Millisecond},
	} {
		if got := c.Time(tc.cycles).Sub(ZeroTime); got != tc.want {
			t.Errorf("Time(%d) = %v, want %v", tc.cycles, got, tc.want)
		}
	}
	if got := c.Cycles(10 * time.Millisecond); got != 10_000 {
		t.Errorf("Cycles(10ms) = %d, want 10000", got)
	}
	if got := c.Cycles(time.Nanosecond); got != 1 {
		t.Errorf("Cycles(1ns) = %d, want 1 (rounded up)", got)
	}
	if got := c.Time(c.Cycles(math.MaxInt64)); got != MaxTime {
		t.Errorf("Time(Cycles(MaxInt64)) = %v, want MaxTime", got)
	}
	if got := c.Time(math.MaxUint64); got != MaxTime {
		t.Errorf("Time(MaxUint64) = %v, want MaxTime", got)
	}
}

func TestTimeval(t *testing.T) {
	tv := FromNanoseconds(3*1e9 + 250_000).Timeval()
	if tv.Sec != 3 || tv.Usec != 250 {
		t.Errorf("Timeval() = %+v, want {Sec:3 Usec:250}", tv)
	}
}
