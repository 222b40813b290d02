// Package fileid computes the identifier that pairs a symbol file with the
// ELF binary it was generated from.
//
// The identifier is the GNU build ID when the binary carries one. Otherwise
// it is derived from the contents of .text by XOR-folding it into 16 bytes.
// The fold is cheap and deterministic but it is not a secure hash.
package fileid

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size is the length of an identifier in bytes.
const Size = 16

// Identifier is the 16-byte module identifier.
type Identifier [Size]byte

// Source tells where an identifier came from.
type Source string

const (
	SourceBuildID  Source = "build_id"
	SourceTextHash Source = "text_hash"
)

var (
	ErrNotELF        = errors.New("not an ELF image")
	ErrNoTextSection = errors.New(".text section not found or empty")
)

// ComputeIdentifier returns the identifier of the ELF image in data. data
// must stay unmodified for the duration of the call.
func ComputeIdentifier(data []byte) (Identifier, error) {
	id, _, err := ComputeIdentifierWithSource(data)
	return id, err
}

// ComputeIdentifierWithSource is ComputeIdentifier that also reports whether
// a build ID note or the text hash was used.
func ComputeIdentifierWithSource(data []byte) (Identifier, Source, error) {
	f, err := NewInMemElfFile(data)
	if err != nil {
		return Identifier{}, "", err
	}
	return f.Identifier()
}

// Identifier computes the identifier of the file.
func (f *InMemElfFile) Identifier() (Identifier, Source, error) {
	if desc, ok := f.GNUBuildID(); ok {
		var id Identifier
		copy(id[:], desc)
		return id, SourceBuildID, nil
	}
	id, err := f.TextHash()
	if err != nil {
		return Identifier{}, "", err
	}
	return id, SourceTextHash, nil
}

// GNUBuildID looks for an NT_GNU_BUILD_ID note, first in PT_NOTE segments
// and then in SHT_NOTE sections, and returns its payload.
func (f *InMemElfFile) GNUBuildID() ([]byte, bool) {
	for i := range f.Progs {
		p := &f.Progs[i]
		if p.Type != elf.PT_NOTE {
			continue
		}
		data, err := f.progData(p)
		if err != nil {
			continue
		}
		if desc, ok := findBuildIDNote(data, f.ByteOrder); ok {
			return desc, true
		}
	}
	for _, s := range f.sectionsByType(elf.SHT_NOTE) {
		data, err := f.SectionData(s)
		if err != nil {
			continue
		}
		if desc, ok := findBuildIDNote(data, f.ByteOrder); ok {
			return desc, true
		}
	}
	return nil, false
}

// NoteTypeGNUBuildID is the type of the note holding the GNU build ID.
const NoteTypeGNUBuildID = 3

var gnuNoteName = []byte("GNU\x00")

func findBuildIDNote(data []byte, order binary.ByteOrder) ([]byte, bool) {
	const noteHeaderSize = 12
	for len(data) >= noteHeaderSize {
		nameSize := uint64(order.Uint32(data[0:4]))
		descSize := uint64(order.Uint32(data[4:8]))
		typ := order.Uint32(data[8:12])
		data = data[noteHeaderSize:]

		nameEnd := align4(nameSize)
		descEnd := nameEnd + align4(descSize)
		if nameEnd > uint64(len(data)) || nameEnd+descSize > uint64(len(data)) {
			return nil, false
		}
		name := data[:nameSize]
		if typ == NoteTypeGNUBuildID && bytes.Equal(name, gnuNoteName) {
			return data[nameEnd : nameEnd+descSize], true
		}
		if descEnd > uint64(len(data)) {
			return nil, false
		}
		data = data[descEnd:]
	}
	return nil, false
}

func align4(v uint64) uint64 {
	return (v + 3) &^ 3
}

// TextHash XOR-folds the contents of .text into an identifier, 16 bytes at a
// time; a short last block contributes only the bytes it has.
func (f *InMemElfFile) TextHash() (Identifier, error) {
	var id Identifier
	text := f.Section(".text")
	if text == nil {
		return id, ErrNoTextSection
	}
	data, err := f.SectionData(text)
	if err != nil {
		return id, fmt.Errorf("reading .text: %w", err)
	}
	if len(data) == 0 {
		return id, ErrNoTextSection
	}
	for len(data) >= Size {
		for i := 0; i < Size; i++ {
			id[i] ^= data[i]
		}
		data = data[Size:]
	}
	for i := range data {
		id[i] ^= data[i]
	}
	return id, nil
}

// ConvertIdentifierToString renders id as lowercase hex grouped 4-2-2-2-6
// bytes, e.g. 00010203-0405-0607-0809-0a0b0c0d0e0f.
func ConvertIdentifierToString(id Identifier) string {
	var sb strings.Builder
	sb.Grow(Size*2 + 4)
	for i, b := range id {
		if i == 4 || i == 6 || i == 8 || i == 10 {
			sb.WriteByte('-')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

func (id Identifier) String() string {
	return ConvertIdentifierToString(id)
}

// ModuleID is the identifier in the form used by MODULE records of symbol
// files: uppercase hex without separators followed by an age of 0.
func (id Identifier) ModuleID() string {
	return strings.ToUpper(hex.EncodeToString(id[:])) + "0"
}

// ParseIdentifier parses the form produced by ConvertIdentifierToString.
// Hex digits may be of either case.
func ParseIdentifier(s string) (Identifier, error) {
	var id Identifier
	if len(s) != Size*2+4 {
		return id, fmt.Errorf("invalid identifier %q: want %d characters", s, Size*2+4)
	}
	for _, pos := range []int{8, 13, 18, 23} {
		if s[pos] != '-' {
			return id, fmt.Errorf("invalid identifier %q: missing separator at %d", s, pos)
		}
	}
	raw, err := hex.DecodeString(strings.ReplaceAll(s, "-", ""))
	if err != nil {
		return id, fmt.Errorf("invalid identifier %q: %w", s, err)
	}
	copy(id[:], raw)
	return id, nil
}
