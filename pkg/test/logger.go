package test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/go-kit/log"
)

// Logger forwards entries to testing.TB and keeps them for inspection.
type Logger struct {
	t testing.TB

	mtx     sync.Mutex
	entries []map[string]string
}

func NewTestingLogger(t testing.TB) *Logger {
	return &Logger{t: t}
}

func (l *Logger) Log(keyvals ...interface{}) error {
	l.t.Helper()
	l.t.Log(keyvals...)

	e := make(map[string]string, len(keyvals)/2)
	for i := 0; i+1 < len(keyvals); i += 2 {
		e[fmt.Sprint(keyvals[i])] = fmt.Sprint(keyvals[i+1])
	}
	l.mtx.Lock()
	l.entries = append(l.entries, e)
	l.mtx.Unlock()
	return nil
}

// Entries returns the logged entries whose "level" key equals lvl, or every
// entry when lvl is empty.
func (l *Logger) Entries(lvl string) []map[string]string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	var res []map[string]string
	for _, e := range l.entries {
		if lvl == "" || e["level"] == lvl {
			res = append(res, e)
		}
	}
	return res
}

var _ log.Logger = (*Logger)(nil)
