package fileid

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/symdump/pkg/elftest"
)

var classes = []elf.Class{elf.ELFCLASS32, elf.ELFCLASS64}

func sequence(n int, f func(i int) byte) []byte {
	res := make([]byte, n)
	for i := range res {
		res[i] = f(i)
	}
	return res
}

func TestTextHash(t *testing.T) {
	text := sequence(128, func(i int) byte { return byte(i * 3) })
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, class := range classes {
			t.Run(fmt.Sprintf("%s/%s", class, order), func(t *testing.T) {
				image := elftest.New(class, order).AddText(0x1000, text).Bytes()
				id, src, err := ComputeIdentifierWithSource(image)
				require.NoError(t, err)
				require.Equal(t, SourceTextHash, src)
				require.Equal(t, "80808080-8080-0000-0000-008080808080", ConvertIdentifierToString(id))
			})
		}
	}
}

func TestTextHashShortTail(t *testing.T) {
	text := sequence(20, func(i int) byte { return byte(i + 1) })
	image := elftest.New(elf.ELFCLASS64, binary.LittleEndian).AddText(0x1000, text).Bytes()
	id, err := ComputeIdentifier(image)
	require.NoError(t, err)

	var expected Identifier
	copy(expected[:], text[:16])
	for i, b := range text[16:] {
		expected[i] ^= b
	}
	require.Equal(t, expected, id)
}

func TestBuildID(t *testing.T) {
	buildID := sequence(16, func(i int) byte { return byte(i) })
	for _, class := range classes {
		for _, segment := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/segment=%t", class, segment), func(t *testing.T) {
				image := elftest.New(class, binary.LittleEndian).
					AddText(0x1000, make([]byte, 4096)).
					AddBuildIDNote(buildID, segment).
					Bytes()
				id, src, err := ComputeIdentifierWithSource(image)
				require.NoError(t, err)
				require.Equal(t, SourceBuildID, src)
				require.Equal(t, buildID, id[:])
				require.Equal(t, "00010203-0405-0607-0809-0a0b0c0d0e0f", id.String())
			})
		}
	}
}

func TestBuildIDSizes(t *testing.T) {
	long := sequence(20, func(i int) byte { return byte(0xa0 + i) })
	short := sequence(8, func(i int) byte { return byte(0xf0 + i) })

	for _, tc := range []struct {
		name     string
		buildID  []byte
		expected string
	}{
		{"sha1", long, "a0a1a2a3-a4a5-a6a7-a8a9-aaabacadaeaf"},
		{"xxhash", short, "f0f1f2f3-f4f5-f6f7-0000-000000000000"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			image := elftest.New(elf.ELFCLASS64, binary.BigEndian).
				AddText(0x1000, make([]byte, 32)).
				AddBuildIDNote(tc.buildID, true).
				Bytes()
			id, err := ComputeIdentifier(image)
			require.NoError(t, err)
			require.Equal(t, tc.expected, id.String())
		})
	}
}

func TestForeignNotesAreIgnored(t *testing.T) {
	text := sequence(16, func(i int) byte { return byte(i) })
	notes := append(
		elftest.Note(binary.LittleEndian, "Go", 4, []byte("some go build id")),
		elftest.Note(binary.LittleEndian, "GNU", 1, []byte{0, 0, 0, 0, 3, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0})...,
	)
	image := elftest.New(elf.ELFCLASS64, binary.LittleEndian).
		AddText(0x1000, text).
		AddSection(".note.other", elf.SHT_NOTE, notes).
		Bytes()
	id, src, err := ComputeIdentifierWithSource(image)
	require.NoError(t, err)
	require.Equal(t, SourceTextHash, src)
	require.Equal(t, text, id[:])
}

func TestMalformed(t *testing.T) {
	valid := elftest.New(elf.ELFCLASS64, binary.LittleEndian).AddText(0x1000, make([]byte, 16)).Bytes()

	badClass := append([]byte{}, valid...)
	badClass[elf.EI_CLASS] = 3

	badMagic := append([]byte{}, valid...)
	badMagic[1] = 'X'

	for _, tc := range []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, ErrNotELF},
		{"bad magic", badMagic, ErrNotELF},
		{"bad class", badClass, ErrNotELF},
		{"truncated header", valid[:30], ErrNotELF},
		{"no text", elftest.New(elf.ELFCLASS32, binary.LittleEndian).AddSection(".data", elf.SHT_PROGBITS, []byte{1}).Bytes(), ErrNoTextSection},
		{"empty text", elftest.New(elf.ELFCLASS32, binary.LittleEndian).AddText(0x1000, nil).Bytes(), ErrNoTextSection},
		{"nobits text", elftest.New(elf.ELFCLASS64, binary.LittleEndian).AddSection(".text", elf.SHT_NOBITS, make([]byte, 64)).Bytes(), ErrNoTextSection},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeIdentifier(tc.data)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestIdentifierString(t *testing.T) {
	id := Identifier{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0xbb, 0xcc}
	s := ConvertIdentifierToString(id)
	require.Equal(t, "deadbeef-0102-0304-0506-0708090abbcc", s)
	require.Len(t, s, 36)

	parsed, err := ParseIdentifier(s)
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	parsed, err = ParseIdentifier("DEADBEEF-0102-0304-0506-0708090ABBCC")
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	require.Equal(t, "DEADBEEF0102030405060708090ABBCC0", id.ModuleID())
}

func TestParseIdentifierErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"deadbeef0102-0304-0506-0708090abbcc",
		"deadbeef-0102-0304-0506-0708090abbc",
		"deadbeef-0102-0304-0506-0708090abbcz",
		"deadbeef-01020-304-0506-0708090abbcc",
	} {
		_, err := ParseIdentifier(s)
		require.Error(t, err, s)
	}
}
