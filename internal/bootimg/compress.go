package bootimg

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Format identifies the compression of a ramdisk payload.
type Format int

const (
	FormatUnknown Format = iota
	FormatGzip
	FormatXZ
	// FormatCpio is an uncompressed newc cpio archive.
	FormatCpio
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatXZ:
		return "xz"
	case FormatCpio:
		return "cpio"
	default:
		return "unknown"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	cpioMagic = []byte("070701")
)

// DetectFormat sniffs the compression format of a ramdisk payload.
func DetectFormat(b []byte) Format {
	switch {
	case bytes.HasPrefix(b, gzipMagic):
		return FormatGzip
	case bytes.HasPrefix(b, xzMagic):
		return FormatXZ
	case bytes.HasPrefix(b, cpioMagic):
		return FormatCpio
	default:
		return FormatUnknown
	}
}

// NewDecompressor wraps r with the decoder for f. FormatCpio payloads are
// passed through unchanged.
func NewDecompressor(r io.Reader, f Format) (io.Reader, error) {
	switch f {
	case FormatGzip:
		return gzip.NewReader(r)
	case FormatXZ:
		return xz.NewReader(r)
	case FormatCpio:
		return r, nil
	default:
		return nil, fmt.Errorf("cannot decompress ramdisk of unknown format")
	}
}
