package symbols

import (
	"bufio"
	"fmt"
	"io"

	"github.com/samber/lo"
)

// Write serializes the module as a Breakpad text symbol file. Only files
// referenced by at least one line are written; their IDs are assigned in name
// order starting at zero.
func (m *Module) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	functions := m.Functions()

	used := make(map[*File]struct{})
	for _, f := range functions {
		for i := range f.Lines {
			if f.Lines[i].File != nil {
				used[f.Lines[i].File] = struct{}{}
			}
		}
	}
	files := lo.Filter(m.Files(), func(f *File, _ int) bool {
		_, ok := used[f]
		return ok
	})
	for i, f := range files {
		f.ID = i
	}

	if _, err := fmt.Fprintf(bw, "MODULE %s %s %s %s\n", m.OS, m.Arch, m.ID, m.Name); err != nil {
		return err
	}
	for _, f := range files {
		if _, err := fmt.Fprintf(bw, "FILE %d %s\n", f.ID, f.Name); err != nil {
			return err
		}
	}
	for _, f := range functions {
		// parameter size is not known for any of the formats we read
		if _, err := fmt.Fprintf(bw, "FUNC %x %x %x %s\n", f.Address, f.Size, 0, f.Name); err != nil {
			return err
		}
		for _, l := range f.Lines {
			fileID := -1
			if l.File != nil {
				fileID = l.File.ID
			}
			if _, err := fmt.Fprintf(bw, "%x %x %d %d\n", l.Address, l.Size, l.Number, fileID); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
