package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// STABS entry types.
const (
	NUndf  = 0x00
	NFun   = 0x24
	NSLine = 0x44
	NSO    = 0x64
	NSol   = 0x84
)

// Stabs builds unitized 32-bit .stab/.stabstr contents, the layout found in
// ELF object files: every unit starts with an N_UNDF header and owns a slice
// of the string table.
type Stabs struct {
	order   binary.ByteOrder
	stab    bytes.Buffer
	stabstr []byte

	header  int
	count   uint16
	strings []byte
}

func NewStabs(order binary.ByteOrder) *Stabs {
	return &Stabs{order: order, header: -1}
}

// Unit starts a new string table scope.
func (s *Stabs) Unit() *Stabs {
	s.closeUnit()
	s.header = s.stab.Len()
	s.count = 0
	s.strings = []byte{0}
	s.raw(0, NUndf, 0, 0)
	return s
}

func (s *Stabs) closeUnit() {
	if s.header < 0 {
		return
	}
	b := s.stab.Bytes()[s.header:]
	s.order.PutUint16(b[6:8], s.count)
	s.order.PutUint32(b[8:12], uint32(len(s.strings)))
	s.stabstr = append(s.stabstr, s.strings...)
	s.header = -1
}

// Entry appends an entry whose string is str.
func (s *Stabs) Entry(typ uint8, desc uint16, value uint32, str string) *Stabs {
	var strx uint32
	if str != "" {
		strx = uint32(len(s.strings))
		s.strings = append(append(s.strings, str...), 0)
	}
	s.raw(strx, typ, desc, value)
	s.count++
	return s
}

func (s *Stabs) raw(strx uint32, typ uint8, desc uint16, value uint32) {
	var b [12]byte
	s.order.PutUint32(b[0:4], strx)
	b[4] = typ
	s.order.PutUint16(b[6:8], desc)
	s.order.PutUint32(b[8:12], value)
	s.stab.Write(b[:])
}

// Sections returns the finished .stab and .stabstr contents.
func (s *Stabs) Sections() (stab, stabstr []byte) {
	s.closeUnit()
	return s.stab.Bytes(), s.stabstr
}

// AddStabs adds the .stab and .stabstr sections built by s.
func (b *Builder) AddStabs(s *Stabs) *Builder {
	stab, stabstr := s.Sections()
	b.AddSection(".stab", elf.SHT_PROGBITS, stab)
	b.AddSection(".stabstr", elf.SHT_STRTAB, stabstr)
	return b
}
