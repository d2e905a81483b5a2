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

package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"gvisor.dev/rvkernel/pkg/hostarch"
	"gvisor.dev/rvkernel/pkg/sentry/platform"
)

const (
	ehdrSize = 64
	phdrSize = 56
)

// BuildELF writes a minimal ELF64 RISC-V executable with one PT_LOAD
// program header per segment. Each segment's data is placed at a file offset
// congruent to its address modulo the page size.
func BuildELF(entry hostarch.Addr, segs []platform.Segment) ([]byte, error) {
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     uint64(entry),
		Phoff:     ehdrSize,
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(len(segs)),
		Shentsize: 64,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Ident[elf.EI_OSABI] = byte(elf.ELFOSABI_NONE)

	progs := make([]elf.Prog64, len(segs))
	off := uint64(ehdrSize + phdrSize*len(segs))
	for i, seg := range segs {
		if uint64(len(seg.Data)) > seg.Size {
			return nil, fmt.Errorf("segment %d has %d bytes of data but size %d", i, len(seg.Data), seg.Size)
		}
		// Align the offset with the address.
		want := uint64(seg.Addr.PageOffset())
		if cur := off % hostarch.PageSize; cur != want {
			off += (want - cur + hostarch.PageSize) % hostarch.PageSize
		}
		var flags elf.ProgFlag
		if seg.Perms.Read {
			flags |= elf.PF_R
		}
		if seg.Perms.Write {
			flags |= elf.PF_W
		}
		if seg.Perms.Execute {
			flags |= elf.PF_X
		}
		progs[i] = elf.Prog64{
			Type:   uint32(elf.PT_LOAD),
			Flags:  uint32(flags),
			Off:    off,
			Vaddr:  uint64(seg.Addr),
			Paddr:  uint64(seg.Addr),
			Filesz: uint64(len(seg.Data)),
			Memsz:  seg.Size,
			Align:  hostarch.PageSize,
		}
		off += uint64(len(seg.Data))
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, progs); err != nil {
		return nil, err
	}
	for i, seg := range segs {
		if pad := int(progs[i].Off) - buf.Len(); pad > 0 {
			buf.Write(make([]byte, pad))
		}
		buf.Write(seg.Data)
	}
	return buf.Bytes(), nil
}
