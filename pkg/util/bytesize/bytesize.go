// Package bytesize parses and prints human readable sizes. Units are binary:
// 1KB is 1024 bytes.
package bytesize

import (
	"errors"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
)

type ByteSize uint64

const (
	Byte ByteSize = 1
	KB            = Byte << 10
	MB            = KB << 10
	GB            = MB << 10
	TB            = GB << 10
)

var errParse = errors.New("could not parse ByteSize")

func Parse(s string) (ByteSize, error) {
	s = strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
	// humanize treats "kb" as 1000 bytes and "kib" as 1024
	if n := len(s); n >= 2 && s[n-1] == 'b' && s[n-2] >= 'a' && s[n-2] <= 'z' && s[n-2] != 'i' {
		s = s[:n-1] + "ib"
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errParse
	}
	return ByteSize(v), nil
}

func (b ByteSize) String() string {
	return strings.ReplaceAll(humanize.IBytes(uint64(b)), "i", "")
}

// Set implements flag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return b.Set(s)
}

func (b ByteSize) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}
