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

package kernel

import (
	"fmt"

	"gvisor.dev/rvkernel/pkg/abi/linux"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
)

// pageRange returns [addr, addr+length) with the end rounded up to a page.
func pageRange(addr hostarch.Addr, length uint64) (hostarch.AddrRange, error) {
	if !addr.IsPageAligned() {
		return hostarch.AddrRange{}, fmt.Errorf("address %v is not page aligned: %w", addr, linuxerr.EINVAL)
	}
	end, ok := addr.AddLength(length)
	if ok {
		end, ok = end.RoundUp()
	}
	if !ok {
		return hostarch.AddrRange{}, fmt.Errorf("range at %v of %#x bytes wraps: %w", addr, length, linuxerr.EINVAL)
	}
	return hostarch.AddrRange{Start: addr, End: end}, nil
}

// Mmap maps zeroed memory at addr, which must be page aligned, for length
// bytes rounded up to whole pages. prot is a combination of PROT_READ,
// PROT_WRITE and PROT_EXEC granting at least one access.
//
// Errors: EINVAL for bad arguments, EEXIST if a page in the range is
// already mapped and ENOMEM when physical memory is exhausted.
func (k *Kernel) Mmap(t *Task, addr hostarch.Addr, length, prot uint64) error {
	at, ok := linux.ProtToAccessType(prot)
	if !ok {
		return fmt.Errorf("protection %#x: %w", prot, linuxerr.EINVAL)
	}
	ar, err := pageRange(addr, length)
	if err != nil {
		return err
	}
	if err := t.as.MapAnonymous(ar, at); err != nil {
		return err
	}
	t.Debugf("Mapped %v %v", ar, at)
	return nil
}

// Munmap unmaps length bytes, rounded up to whole pages, at the page aligned
// addr. Every page in the range must be mapped; otherwise nothing is
// unmapped and EINVAL is returned.
func (k *Kernel) Munmap(t *Task, addr hostarch.Addr, length uint64) error {
	ar, err := pageRange(addr, length)
	if err != nil {
		return err
	}
	if err := t.as.Unmap(ar); err != nil {
		return err
	}
	t.Debugf("Unmapped %v", ar)
	return nil
}

// Sbrk moves the end of t's heap by delta bytes and returns the previous
// end. The heap starts at the page after the highest loaded segment and is
// mapped read-write a page at a time.
//
// It returns ENOMEM if the heap would end below its start, run into another
// mapping or exhaust physical memory.
func (k *Kernel) Sbrk(t *Task, delta int64) (hostarch.Addr, error) {
	old := t.brk
	brk := old + hostarch.Addr(delta)
	switch {
	case delta < 0 && (brk > old || brk < t.heapBottom):
		return 0, fmt.Errorf("heap would end below %v: %w", t.heapBottom, linuxerr.ENOMEM)
	case delta > 0 && brk < old:
		return 0, fmt.Errorf("heap end wraps: %w", linuxerr.ENOMEM)
	}
	oldEnd, _ := old.RoundUp()
	end, ok := brk.RoundUp()
	if !ok {
		return 0, fmt.Errorf("heap end wraps: %w", linuxerr.ENOMEM)
	}
	switch {
	case end > oldEnd:
		ar := hostarch.AddrRange{Start: oldEnd, End: end}
		if err := t.as.MapAnonymous(ar, hostarch.ReadWrite); err != nil {
			return 0, fmt.Errorf("growing the heap over %v: %v: %w", ar, err, linuxerr.ENOMEM)
		}
	case end < oldEnd:
		// Pages the task unmapped itself are skipped.
		for page := end; page < oldEnd; page += hostarch.PageSize {
			_ = t.as.Unmap(hostarch.AddrRange{Start: page, End: page + hostarch.PageSize})
		}
	}
	t.brk = brk
	return old, nil
}
