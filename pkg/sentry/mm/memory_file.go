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

// Package mm provides the reference address-space implementation: page
// granular address spaces backed by a fixed budget of physical frames.
package mm

import (
	"fmt"

	"github.com/google/btree"
	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
)

// frame is one physical page.
type frame [hostarch.PageSize]byte

// MemoryFile is the physical memory of the machine: a fixed number of frames,
// allocated lowest-numbered first.
type MemoryFile struct {
	frames []*frame

	// free holds the numbers of unallocated frames.
	free *btree.BTreeG[uint64]

	// active is the address space currently installed on the hart.
	active *AddressSpace
}

// NewMemoryFile returns a MemoryFile with the given number of frames.
func NewMemoryFile(pages int) *MemoryFile {
	mf := &MemoryFile{
		frames: make([]*frame, pages),
		free:   btree.NewOrderedG[uint64](8),
	}
	for pfn := 0; pfn < pages; pfn++ {
		mf.free.ReplaceOrInsert(uint64(pfn))
	}
	return mf
}

// Allocate returns the lowest free frame, zeroed.
func (mf *MemoryFile) Allocate() (uint64, error) {
	pfn, ok := mf.free.DeleteMin()
	if !ok {
		return 0, linuxerr.ENOMEM
	}
	if mf.frames[pfn] == nil {
		mf.frames[pfn] = new(frame)
	}
	return pfn, nil
}

// Free returns pfn to the free set.
func (mf *MemoryFile) Free(pfn uint64) {
	if pfn >= uint64(len(mf.frames)) {
		panic(fmt.Sprintf("freeing frame %d of %d", pfn, len(mf.frames)))
	}
	if _, dup := mf.free.ReplaceOrInsert(pfn); dup {
		panic(fmt.Sprintf("double free of frame %d", pfn))
	}
	*mf.frames[pfn] = frame{}
}

// FreeFrames returns the number of unallocated frames.
func (mf *MemoryFile) FreeFrames() int {
	return mf.free.Len()
}

// TotalFrames returns the size of the frame budget.
func (mf *MemoryFile) TotalFrames() int {
	return len(mf.frames)
}

// Active returns the address space installed on the hart, if any.
func (mf *MemoryFile) Active() *AddressSpace {
	return mf.active
}

func (mf *MemoryFile) page(pfn uint64) []byte {
	return mf.frames[pfn][:]
}
