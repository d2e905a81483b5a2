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

// Package loader turns executable images into the entry point, initial stack
// and segment list a new task is created from.
package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"

	"gvisor.dev/rvkernel/pkg/errors/linuxerr"
	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

const (
	// UserStackTop is the initial stack pointer of every task. The stack
	// grows down from here.
	UserStackTop = hostarch.Addr(0x4000_0000)

	// DefaultStackPages is the default user stack size in pages.
	DefaultStackPages = 2

	// maxSegments bounds the number of PT_LOAD segments.
	maxSegments = 16
)

// Image is a loaded executable.
type Image struct {
	// Entry is the address execution starts at.
	Entry hostarch.Addr

	// Stack is the initial stack pointer.
	Stack hostarch.Addr

	// Segments are the regions to map, including the stack.
	Segments []platform.Segment

	// Brk is the page-aligned end of the highest loaded segment, where the
	// heap starts.
	Brk hostarch.Addr
}

// Load parses an ELF64 RISC-V executable and returns its Image with a stack
// of stackPages pages below UserStackTop. All format errors are ENOEXEC.
func Load(data []byte, stackPages int) (*Image, error) {
	if stackPages <= 0 {
		return nil, fmt.Errorf("invalid stack size %d pages: %w", stackPages, linuxerr.EINVAL)
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing ELF: %v: %w", err, linuxerr.ENOEXEC)
	}
	defer f.Close()

	switch {
	case f.Class != elf.ELFCLASS64:
		return nil, fmt.Errorf("unsupported ELF class %v: %w", f.Class, linuxerr.ENOEXEC)
	case f.Data != elf.ELFDATA2LSB:
		return nil, fmt.Errorf("unsupported ELF byte order %v: %w", f.Data, linuxerr.ENOEXEC)
	case f.Machine != elf.EM_RISCV:
		return nil, fmt.Errorf("unsupported machine %v: %w", f.Machine, linuxerr.ENOEXEC)
	case f.Type != elf.ET_EXEC:
		return nil, fmt.Errorf("unsupported ELF type %v: %w", f.Type, linuxerr.ENOEXEC)
	}

	stackBottom := UserStackTop - hostarch.Addr(stackPages)*hostarch.PageSize
	img := &Image{
		Entry: hostarch.Addr(f.Entry),
		Stack: UserStackTop,
	}
	entryOK := false
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if len(img.Segments) == maxSegments {
			return nil, fmt.Errorf("more than %d PT_LOAD segments: %w", maxSegments, linuxerr.ENOEXEC)
		}
		seg, err := segmentOf(p, uint64(len(data)))
		if err != nil {
			return nil, err
		}
		ar, ok := seg.Range()
		if !ok || ar.End > stackBottom.RoundDown() {
			return nil, fmt.Errorf("segment %v overlaps the stack: %w", seg, linuxerr.ENOEXEC)
		}
		if seg.Perms.Execute && ar.Contains(img.Entry) {
			entryOK = true
		}
		if end, _ := ar.End.RoundUp(); end > img.Brk {
			img.Brk = end
		}
		img.Segments = append(img.Segments, seg)
	}
	if !entryOK {
		return nil, fmt.Errorf("entry point %v is not in an executable segment: %w", img.Entry, linuxerr.ENOEXEC)
	}

	img.Segments = append(img.Segments, platform.Segment{
		Addr:  stackBottom,
		Size:  uint64(stackPages) * hostarch.PageSize,
		Perms: hostarch.ReadWrite,
	})
	return img, nil
}

// segmentOf reads a PT_LOAD header from an image of fileSize bytes.
func segmentOf(p *elf.Prog, fileSize uint64) (platform.Segment, error) {
	if p.Memsz < p.Filesz {
		return platform.Segment{}, fmt.Errorf("segment at %#x has memsz %#x < filesz %#x: %w", p.Vaddr, p.Memsz, p.Filesz, linuxerr.ENOEXEC)
	}
	if end := p.Off + p.Filesz; p.Filesz > fileSize || end < p.Off || end > fileSize {
		return platform.Segment{}, fmt.Errorf("segment at %#x has file range [%#x, +%#x) outside the %d byte image: %w", p.Vaddr, p.Off, p.Filesz, fileSize, linuxerr.ENOEXEC)
	}
	data := make([]byte, p.Filesz)
	if _, err := io.ReadFull(p.Open(), data); err != nil {
		return platform.Segment{}, fmt.Errorf("reading segment at %#x: %v: %w", p.Vaddr, err, linuxerr.ENOEXEC)
	}
	return platform.Segment{
		Addr: hostarch.Addr(p.Vaddr),
		Size: p.Memsz,
		Perms: hostarch.AccessType{
			Read:    p.Flags&elf.PF_R != 0,
			Write:   p.Flags&elf.PF_W != 0,
			Execute: p.Flags&elf.PF_X != 0,
		},
		Data: data,
	}, nil
}
