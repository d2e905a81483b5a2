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

package mm

import (
	"fmt"
	"sort"

	"gvisor.dev/rvkernel/pkg/cleanup"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

type pte struct {
	pfn   uint64
	perms hostarch.AccessType
}

// Mapping describes one mapped page.
type Mapping struct {
	Addr  hostarch.Addr
	Frame uint64
	Perms hostarch.AccessType
}

// AddressSpace is a set of page mappings. Every mapped page has its own frame;
// frames are never shared between address spaces.
//
// AddressSpace implements platform.AddressSpace.
type AddressSpace struct {
	mf       *MemoryFile
	pages    map[hostarch.Addr]pte
	released bool
}

var _ platform.AddressSpace = (*AddressSpace)(nil)

// NewAddressSpace maps and fills segs in a new address space. Pages shared by
// several segments get the union of their permissions. If the frame budget is
// exhausted, every frame allocated so far is freed and ENOMEM is returned.
func (mf *MemoryFile) NewAddressSpace(segs []platform.Segment) (*AddressSpace, error) {
	as := &AddressSpace{
		mf:    mf,
		pages: make(map[hostarch.Addr]pte),
	}
	cu := cleanup.Make(as.Release)
	defer cu.Clean()

	for _, seg := range segs {
		if err := as.mapSegment(seg); err != nil {
			return nil, err
		}
	}
	cu.Release()
	return as, nil
}

func (as *AddressSpace) mapSegment(seg platform.Segment) error {
	if uint64(len(seg.Data)) > seg.Size {
		return fmt.Errorf("segment at %v: %d bytes of data in %d byte segment: %w", seg.Addr, len(seg.Data), seg.Size, linuxerr.EINVAL)
	}
	if seg.Size == 0 {
		return nil
	}
	ar, ok := seg.Range()
	if !ok {
		return fmt.Errorf("segment at %v wraps: %w", seg.Addr, linuxerr.EINVAL)
	}
	end, ok := ar.End.RoundUp()
	if !ok {
		return fmt.Errorf("segment %v wraps: %w", ar, linuxerr.EINVAL)
	}
	for page := ar.Start.RoundDown(); page < end; page += hostarch.PageSize {
		p, ok := as.pages[page]
		if !ok {
			pfn, err := as.mf.Allocate()
			if err != nil {
				return err
			}
			p.pfn = pfn
		}
		p.perms = p.perms.Union(seg.Perms)
		as.pages[page] = p
	}
	// Initial contents are written without permission checks.
	as.rw(seg.Addr, seg.Data, hostarch.NoAccess, true)
	return nil
}

// rw moves data between buf and the address space starting at addr. at is
// the access required of every page touched. It stops at the first page that
// is unmapped or denies at.
func (as *AddressSpace) rw(addr hostarch.Addr, buf []byte, at hostarch.AccessType, out bool) (int, error) {
	done := 0
	for done < len(buf) {
		cur := addr + hostarch.Addr(done)
		p, ok := as.pages[cur.RoundDown()]
		if !ok || !p.perms.SupersetOf(at) {
			return done, platform.SegmentationFault{Addr: cur, Access: at}
		}
		mem := as.mf.page(p.pfn)[cur.PageOffset():]
		var n int
		if out {
			n = copy(mem, buf[done:])
		} else {
			n = copy(buf[done:], mem)
		}
		done += n
	}
	return done, nil
}

// CopyOut implements platform.AddressSpace.CopyOut.
func (as *AddressSpace) CopyOut(addr hostarch.Addr, src []byte) (int, error) {
	return as.rw(addr, src, hostarch.Write, true)
}

// CopyIn implements platform.AddressSpace.CopyIn.
func (as *AddressSpace) CopyIn(addr hostarch.Addr, dst []byte) (int, error) {
	return as.rw(addr, dst, hostarch.Read, false)
}

// Fetch implements platform.AddressSpace.Fetch.
func (as *AddressSpace) Fetch(addr hostarch.Addr) (uint32, error) {
	var b [4]byte
	if _, err := as.rw(addr, b[:], hostarch.Execute, false); err != nil {
		return 0, err
	}
	return hostarch.ByteOrder.Uint32(b[:]), nil
}

// CopyInString copies a NUL-terminated string of at most maxlen bytes
// (excluding the NUL) from addr. It returns ENAMETOOLONG if no NUL is found
// within maxlen bytes.
func (as *AddressSpace) CopyInString(addr hostarch.Addr, maxlen int) (string, error) {
	return CopyInString(as, addr, maxlen)
}

// CopyInString is AddressSpace.CopyInString for any platform.AddressSpace.
func CopyInString(as platform.AddressSpace, addr hostarch.Addr, maxlen int) (string, error) {
	var buf []byte
	var b [1]byte
	for len(buf) <= maxlen {
		if _, err := as.CopyIn(addr+hostarch.Addr(len(buf)), b[:]); err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return "", linuxerr.ENAMETOOLONG
}

// Activate implements platform.AddressSpace.Activate.
func (as *AddressSpace) Activate() {
	if as.released {
		panic("activating a released address space")
	}
	as.mf.active = as
}

// Deactivate implements platform.AddressSpace.Deactivate.
func (as *AddressSpace) Deactivate() {
	if as.mf.active == as {
		as.mf.active = nil
	}
}

// Release implements platform.AddressSpace.Release.
func (as *AddressSpace) Release() {
	if as.released {
		return
	}
	as.Deactivate()
	for _, p := range as.pages {
		as.mf.Free(p.pfn)
	}
	as.pages = nil
	as.released = true
}

// MapAnonymous implements platform.AddressSpace.MapAnonymous.
func (as *AddressSpace) MapAnonymous(ar hostarch.AddrRange, perms hostarch.AccessType) error {
	if err := checkPageRange(ar); err != nil {
		return err
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		if _, ok := as.pages[page]; ok {
			return fmt.Errorf("page %v is already mapped: %w", page, linuxerr.EEXIST)
		}
	}
	var mapped []hostarch.Addr
	cu := cleanup.Make(func() {
		for _, page := range mapped {
			as.unmapPage(page)
		}
	})
	defer cu.Clean()

	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		pfn, err := as.mf.Allocate()
		if err != nil {
			return err
		}
		as.pages[page] = pte{pfn: pfn, perms: perms}
		mapped = append(mapped, page)
	}
	cu.Release()
	return nil
}

// Unmap implements platform.AddressSpace.Unmap.
func (as *AddressSpace) Unmap(ar hostarch.AddrRange) error {
	if err := checkPageRange(ar); err != nil {
		return err
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		if _, ok := as.pages[page]; !ok {
			return fmt.Errorf("page %v is not mapped: %w", page, linuxerr.EINVAL)
		}
	}
	for page := ar.Start; page < ar.End; page += hostarch.PageSize {
		as.unmapPage(page)
	}
	return nil
}

func (as *AddressSpace) unmapPage(page hostarch.Addr) {
	as.mf.Free(as.pages[page].pfn)
	delete(as.pages, page)
}

// checkPageRange returns EINVAL unless ar is a page-aligned range.
func checkPageRange(ar hostarch.AddrRange) error {
	if !ar.Start.IsPageAligned() || !ar.End.IsPageAligned() || ar.End < ar.Start {
		return fmt.Errorf("range %v is not page aligned: %w", ar, linuxerr.EINVAL)
	}
	return nil
}

// Mappings returns the mapped pages in address order.
func (as *AddressSpace) Mappings() []Mapping {
	ms := make([]Mapping, 0, len(as.pages))
	for addr, p := range as.pages {
		ms = append(ms, Mapping{Addr: addr, Frame: p.pfn, Perms: p.perms})
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].Addr < ms[j].Addr })
	return ms
}

// WritableFrames returns the frames backing writable pages, in address order.
func (as *AddressSpace) WritableFrames() []uint64 {
	var frames []uint64
	for _, m := range as.Mappings() {
		if m.Perms.Write {
			frames = append(frames, m.Frame)
		}
	}
	return frames
}

// Pages returns the number of mapped pages.
func (as *AddressSpace) Pages() int {
	return len(as.pages)
}
