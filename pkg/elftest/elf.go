// Package elftest builds small synthetic ELF images for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const noteTypeGNUBuildID = 3

type section struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint64
	data  []byte
	// noteSegment also covers the section with a PT_NOTE program header.
	noteSegment bool
}

// Builder assembles an ELF image section by section.
type Builder struct {
	class    elf.Class
	order    binary.ByteOrder
	machine  elf.Machine
	sections []section
}

func New(class elf.Class, order binary.ByteOrder) *Builder {
	machine := elf.EM_X86_64
	if class == elf.ELFCLASS32 {
		machine = elf.EM_386
	}
	return &Builder{class: class, order: order, machine: machine}
}

func (b *Builder) AddSection(name string, typ elf.SectionType, data []byte) *Builder {
	b.sections = append(b.sections, section{name: name, typ: typ, data: data})
	return b
}

// AddText adds an executable .text section at addr.
func (b *Builder) AddText(addr uint64, data []byte) *Builder {
	b.sections = append(b.sections, section{
		name:  ".text",
		typ:   elf.SHT_PROGBITS,
		flags: elf.SHF_ALLOC | elf.SHF_EXECINSTR,
		addr:  addr,
		data:  data,
	})
	return b
}

// AddBuildIDNote adds a .note.gnu.build-id section holding id. With segment
// set the note is also reachable through a PT_NOTE program header.
func (b *Builder) AddBuildIDNote(id []byte, segment bool) *Builder {
	b.sections = append(b.sections, section{
		name:        ".note.gnu.build-id",
		typ:         elf.SHT_NOTE,
		flags:       elf.SHF_ALLOC,
		data:        Note(b.order, "GNU", noteTypeGNUBuildID, id),
		noteSegment: segment,
	})
	return b
}

// Note encodes a single ELF note.
func Note(order binary.ByteOrder, name string, typ uint32, desc []byte) []byte {
	var buf bytes.Buffer
	n := append([]byte(name), 0)
	_ = binary.Write(&buf, order, uint32(len(n)))
	_ = binary.Write(&buf, order, uint32(len(desc)))
	_ = binary.Write(&buf, order, typ)
	buf.Write(pad(n, 4))
	buf.Write(pad(desc, 4))
	return buf.Bytes()
}

func pad(b []byte, align int) []byte {
	if r := len(b) % align; r != 0 {
		b = append(append([]byte{}, b...), make([]byte, align-r)...)
	}
	return b
}

func (b *Builder) is64() bool {
	return b.class == elf.ELFCLASS64
}

func (b *Builder) sizes() (ehdr, phdr, shdr int) {
	if b.is64() {
		return 64, 56, 64
	}
	return 52, 32, 40
}

// Bytes lays out the image: header, program headers, section contents,
// .shstrtab and finally the section header table.
func (b *Builder) Bytes() []byte {
	ehdrSize, phdrSize, shdrSize := b.sizes()

	sections := append([]section{}, b.sections...)
	shstrtab := []byte{0}
	nameOffsets := make([]uint32, len(sections)+1)
	for i, s := range sections {
		nameOffsets[i] = uint32(len(shstrtab))
		shstrtab = append(append(shstrtab, s.name...), 0)
	}
	nameOffsets[len(sections)] = uint32(len(shstrtab))
	shstrtab = append(append(shstrtab, ".shstrtab"...), 0)
	sections = append(sections, section{name: ".shstrtab", typ: elf.SHT_STRTAB, data: shstrtab})

	var notes []int
	for i, s := range sections {
		if s.noteSegment {
			notes = append(notes, i)
		}
	}

	offsets := make([]uint64, len(sections))
	off := uint64(ehdrSize + phdrSize*len(notes))
	for i, s := range sections {
		off = align(off, 8)
		offsets[i] = off
		if s.typ != elf.SHT_NOBITS {
			off += uint64(len(s.data))
		}
	}
	shoff := align(off, 8)

	out := &bytes.Buffer{}
	w := func(v interface{}) { _ = binary.Write(out, b.order, v) }
	word := func(v uint64) {
		if b.is64() {
			w(v)
		} else {
			w(uint32(v))
		}
	}

	data := elf.ELFDATA2LSB
	if b.order == binary.BigEndian {
		data = elf.ELFDATA2MSB
	}
	ident := [elf.EI_NIDENT]byte{0x7f, 'E', 'L', 'F', byte(b.class), byte(data), byte(elf.EV_CURRENT)}
	out.Write(ident[:])
	w(uint16(elf.ET_EXEC))
	w(uint16(b.machine))
	w(uint32(elf.EV_CURRENT))
	word(0) // entry
	if len(notes) > 0 {
		word(uint64(ehdrSize))
	} else {
		word(0)
	}
	word(shoff)
	w(uint32(0)) // flags
	w(uint16(ehdrSize))
	w(uint16(phdrSize))
	w(uint16(len(notes)))
	w(uint16(shdrSize))
	w(uint16(len(sections) + 1))
	w(uint16(len(sections))) // .shstrtab is last; index 0 is the null section

	for _, i := range notes {
		s := sections[i]
		size := uint64(len(s.data))
		if b.is64() {
			w(uint32(elf.PT_NOTE))
			w(uint32(elf.PF_R))
			w(offsets[i])
			w(s.addr)
			w(s.addr)
			w(size)
			w(size)
			w(uint64(4))
		} else {
			w(uint32(elf.PT_NOTE))
			w(uint32(offsets[i]))
			w(uint32(s.addr))
			w(uint32(s.addr))
			w(uint32(size))
			w(uint32(size))
			w(uint32(elf.PF_R))
			w(uint32(4))
		}
	}

	for i, s := range sections {
		out.Write(make([]byte, int(offsets[i])-out.Len()))
		if s.typ != elf.SHT_NOBITS {
			out.Write(s.data)
		}
	}
	out.Write(make([]byte, int(shoff)-out.Len()))

	out.Write(make([]byte, shdrSize))
	for i, s := range sections {
		w(nameOffsets[i])
		w(uint32(s.typ))
		word(uint64(s.flags))
		word(s.addr)
		word(offsets[i])
		word(uint64(len(s.data)))
		w(uint32(0)) // link
		w(uint32(0)) // info
		word(1)      // addralign
		word(0)      // entsize
	}
	return out.Bytes()
}

func align(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}
