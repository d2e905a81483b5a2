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

package hostarch

import "testing"

func TestRounding(t *testing.T) {
	for _, tc := range []struct {
		addr     Addr
		down, up Addr
		upOK     bool
	}{
		{0, 0, 0, true},
		{1, 0, PageSize, true},
		{PageSize, PageSize, PageSize, true},
		{PageSize + 1, PageSize, 2 * PageSize, true},
		{^Addr(0), ^Addr(PageSize - 1), 0, false},
	} {
		if got := tc.addr.RoundDown(); got != tc.down {
			t.Errorf("%v.RoundDown() = %v, want %v", tc.addr, got, tc.down)
		}
		got, ok := tc.addr.RoundUp()
		if ok != tc.upOK || (ok && got != tc.up) {
			t.Errorf("%v.RoundUp() = (%v, %t), want (%v, %t)", tc.addr, got, ok, tc.up, tc.upOK)
		}
	}
}

func TestAccessTypeString(t *testing.T) {
	for _, tc := range []struct {
		at   AccessType
		want string
	}{
		{NoAccess, "---"},
		{Read, "r--"},
		{ReadWrite, "rw-"},
		{ReadExec, "r-x"},
		{AnyAccess, "rwx"},
	} {
		if got := tc.at.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.at, got, tc.want)
		}
	}
}

func TestSupersetOf(t *testing.T) {
	if !ReadWrite.SupersetOf(Read) {
		t.Errorf("rw- should be a superset of r--")
	}
	if ReadExec.SupersetOf(Write) {
		t.Errorf("r-x should not be a superset of -w-")
	}
	if !Read.SupersetOf(NoAccess) {
		t.Errorf("every access type is a superset of ---")
	}
}

func TestAddrRange(t *testing.T) {
	ar, ok := Addr(0x1000).ToRange(0x2000)
	if !ok {
		t.Fatalf("ToRange overflowed")
	}
	if ar.Length() != 0x2000 {
		t.Errorf("Length() = %#x, want 0x2000", ar.Length())
	}
	if !ar.Contains(0x2fff) || ar.Contains(0x3000) {
		t.Errorf("Contains is not half-open: %v", ar)
	}
	if !ar.Overlaps(AddrRange{0x2000, 0x4000}) || ar.Overlaps(AddrRange{0x3000, 0x4000}) {
		t.Errorf("Overlaps is wrong for %v", ar)
	}
	if _, ok := (^Addr(0)).ToRange(2); ok {
		t.Errorf("ToRange should report wraparound")
	}
}
