package symbols

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrCreateFile(t *testing.T) {
	m := NewModule("a.out", "Linux", "x86", "0")
	a := m.GetOrCreateFile("foo.c")
	// a distinct allocation of the same name must resolve to the same entity
	name := strings.Join([]string{"foo", "c"}, ".")
	b := m.GetOrCreateFile(name)
	require.Same(t, a, b)
	require.Same(t, a, m.FindExistingFile("foo.c"))
	require.Nil(t, m.FindExistingFile("bar.c"))
	require.Len(t, m.Files(), 1)
}

func TestFunctionsOrder(t *testing.T) {
	m := NewModule("a.out", "Linux", "x86", "0")
	m.AddFunction(&Function{Name: "c", Address: 0x300})
	m.AddFunctions(
		&Function{Name: "a", Address: 0x100},
		&Function{Name: "b1", Address: 0x200},
		&Function{Name: "b2", Address: 0x200},
	)
	var names []string
	for _, f := range m.Functions() {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"a", "b1", "b2", "c"}, names)
}

func TestWrite(t *testing.T) {
	m := NewModule("a.out", "Linux", "x86_64", "0011223344556677889900AABBCCDDEE0")
	unused := m.GetOrCreateFile("unused.h")
	main := m.GetOrCreateFile("main.c")
	util := m.GetOrCreateFile("util.c")
	m.AddFunction(&Function{
		Name: "helper", Address: 0x2000, Size: 0x10,
		Lines: []Line{{Address: 0x2000, Size: 0x10, File: util, Number: 3}},
	})
	m.AddFunction(&Function{
		Name: "main", Address: 0x1000, Size: 0x20,
		Lines: []Line{
			{Address: 0x1000, Size: 0x8, File: main, Number: 10},
			{Address: 0x1008, Size: 0x18, File: main, Number: 11},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, m.Write(&buf))
	require.Equal(t, `MODULE Linux x86_64 0011223344556677889900AABBCCDDEE0 a.out
FILE 0 main.c
FILE 1 util.c
FUNC 1000 20 0 main
1000 8 10 0
1008 18 11 0
FUNC 2000 10 0 helper
2000 10 3 1
`, buf.String())
	require.Equal(t, 0, unused.ID)
	require.Equal(t, 1, util.ID)
}
