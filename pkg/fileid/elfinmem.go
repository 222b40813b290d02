package fileid

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
)

// InMemElfFile keeps the headers of an ELF image whose bytes are already in
// memory, without copying section contents.
type InMemElfFile struct {
	elf.FileHeader
	Sections []elf.SectionHeader
	Progs    []elf.ProgHeader

	data []byte
}

func NewInMemElfFile(data []byte) (*InMemElfFile, error) {
	if len(data) < elf.EI_NIDENT || !bytes.Equal(data[:4], []byte(elf.ELFMAG)) {
		return nil, fmt.Errorf("%w: bad magic", ErrNotELF)
	}
	switch elf.Class(data[elf.EI_CLASS]) {
	case elf.ELFCLASS32, elf.ELFCLASS64:
	default:
		return nil, fmt.Errorf("%w: unsupported class %d", ErrNotELF, data[elf.EI_CLASS])
	}
	elfFile, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotELF, err)
	}
	res := &InMemElfFile{
		FileHeader: elfFile.FileHeader,
		Progs:      make([]elf.ProgHeader, 0, len(elfFile.Progs)),
		Sections:   make([]elf.SectionHeader, 0, len(elfFile.Sections)),
		data:       data,
	}
	for i := range elfFile.Progs {
		res.Progs = append(res.Progs, elfFile.Progs[i].ProgHeader)
	}
	for i := range elfFile.Sections {
		res.Sections = append(res.Sections, elfFile.Sections[i].SectionHeader)
	}
	return res, nil
}

func (f *InMemElfFile) Section(name string) *elf.SectionHeader {
	for i := range f.Sections {
		s := &f.Sections[i]
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (f *InMemElfFile) sectionsByType(typ elf.SectionType) []*elf.SectionHeader {
	var res []*elf.SectionHeader
	for i := range f.Sections {
		if f.Sections[i].Type == typ {
			res = append(res, &f.Sections[i])
		}
	}
	return res
}

// SectionData returns a sub-slice of the image; callers must not modify it.
func (f *InMemElfFile) SectionData(s *elf.SectionHeader) ([]byte, error) {
	if s.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	return f.slice(s.Offset, s.Size)
}

func (f *InMemElfFile) progData(p *elf.ProgHeader) ([]byte, error) {
	return f.slice(p.Off, p.Filesz)
}

func (f *InMemElfFile) slice(off, size uint64) ([]byte, error) {
	end := off + size
	if end < off || end > uint64(len(f.data)) {
		return nil, fmt.Errorf("range [0x%x, 0x%x) out of file bounds 0x%x: %w", off, end, len(f.data), io.ErrUnexpectedEOF)
	}
	return f.data[off:end], nil
}
