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

// Protections for mmap(2).
const (
	PROT_NONE  = 0
	PROT_READ  = 1 << 0
	PROT_WRITE = 1 << 1
	PROT_EXEC  = 1 << 2

	// protMask is every valid protection bit.
	protMask = PROT_READ | PROT_WRITE | PROT_EXEC
)

// ProtToAccessType converts prot to the access it grants. ok is false if
// prot has bits outside protMask or grants no access at all.
func ProtToAccessType(prot uint64) (at hostarch.AccessType, ok bool) {
	if prot&^protMask != 0 || prot == PROT_NONE {
		return hostarch.NoAccess, false
	}
	return hostarch.AccessType{
		Read:    prot&PROT_READ != 0,
		Write:   prot&PROT_WRITE != 0,
		Execute: prot&PROT_EXEC != 0,
	}, true
}
