package symdump

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"

	"github.com/grafana/symdump/pkg/util/bytesize"
)

// LoadBinary reads the binary at path, transparently decompressing gzip and
// zstd files. Binaries larger than maxSize are rejected.
func LoadBinary(fs afero.Fs, path string, maxSize bytesize.ByteSize) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := readLimited(f, maxSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return detectCompression(data, maxSize)
}

func readLimited(r io.Reader, maxSize bytesize.ByteSize) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, maxSize)
	}
	return data, nil
}

// detectCompression checks if data is compressed and decompresses it if needed
func detectCompression(data []byte, maxSize bytesize.ByteSize) ([]byte, error) {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		defer r.Close()

		decompressed, err := readLimited(r, maxSize)
		if err != nil {
			return nil, fmt.Errorf("decompress gzip data: %w", err)
		}

		return decompressed, nil
	}

	// Check for zstd (magic bytes: 0x28, 0xb5, 0x2f, 0xfd)
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer r.Close()

		decompressed, err := readLimited(r, maxSize)
		if err != nil {
			return nil, fmt.Errorf("decompress zstd data: %w", err)
		}

		return decompressed, nil
	}

	return data, nil
}
