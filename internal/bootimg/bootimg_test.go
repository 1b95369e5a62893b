package bootimg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func testParams() Params {
	return Params{
		PageSize:      DefaultPageSize,
		Base:          0x80000000,
		KernelOffset:  0x00008000,
		RamdiskOffset: 0x01000000,
		SecondOffset:  0x00f00000,
		TagsOffset:    0x00000100,
		Board:         "rp2",
		Cmdline:       "console=ttyS0,115200 root=/dev/mmcblk0p2 rootwait",
	}
}

func TestPaddingSize(t *testing.T) {
	for _, tt := range []struct {
		n, pageSize, want int
	}{
		{0, 2048, 0},
		{1, 2048, 2047},
		{2048, 2048, 0},
		{2049, 2048, 2047},
		{8000000, 2048, 1536},
		{4096, 4096, 0},
	} {
		if got := PaddingSize(tt.n, tt.pageSize); got != tt.want {
			t.Errorf("PaddingSize(%d, %d) = %d; want %d", tt.n, tt.pageSize, got, tt.want)
		}
	}
}

func TestAlign(t *testing.T) {
	// The documented scenario for this device family: an 8,000,000 byte
	// kernel must occupy 8,001,536 bytes before the ramdisk section begins.
	if got, want := Align(8000000, 2048), 8001536; got != want {
		t.Errorf("Align(8000000, 2048) = %d; want %d", got, want)
	}
}

func TestWriteParseRoundtrip(t *testing.T) {
	kernel := bytes.Repeat([]byte{0xaa}, 5000)
	ramdisk := bytes.Repeat([]byte{0x42}, 1234)
	dt := bytes.Repeat([]byte{0xd0}, 77)

	img, err := New(testParams(), kernel, ramdisk, nil, dt)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := img.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.Len()%DefaultPageSize != 0 {
		t.Errorf("image size %d is not page aligned", buf.Len())
	}

	parsed, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(img, parsed); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}
	if got, want := parsed.Base(), uint32(0x80000000); got != want {
		t.Errorf("Base() = %#x; want %#x", got, want)
	}
}

func TestSectionLayout(t *testing.T) {
	kernel := bytes.Repeat([]byte{0x11}, 8000000)
	ramdisk := bytes.Repeat([]byte{0x22}, 500000)

	img, err := New(testParams(), kernel, ramdisk, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := img.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()

	// Kernel starts after the header page, ramdisk after the padded kernel
	// section: 2048 + 8001536.
	ramdiskOff := 2048 + 8001536
	if ramdiskOff%2048 != 0 {
		t.Fatalf("ramdisk offset %d not a multiple of the page size", ramdiskOff)
	}
	if got := b[2048 : 2048+4]; !bytes.Equal(got, kernel[:4]) {
		t.Errorf("kernel section does not start at offset 2048")
	}
	if got := b[ramdiskOff : ramdiskOff+4]; !bytes.Equal(got, ramdisk[:4]) {
		t.Errorf("ramdisk section does not start at offset %d", ramdiskOff)
	}
}

func TestLongCmdline(t *testing.T) {
	long := strings.Repeat("quiet ", 100) // 600 bytes, spills into extra cmdline
	p := testParams()
	p.Cmdline = strings.TrimSpace(long)
	img, err := New(p, []byte{1}, []byte{2}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := img.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := parsed.Cmdline, p.Cmdline; got != want {
		t.Errorf("cmdline roundtrip: got %q, want %q", got, want)
	}
}

func TestParseBadMagic(t *testing.T) {
	b := make([]byte, 4096)
	copy(b, "NOTBOOT!")
	if _, err := Parse(b); err != ErrBadMagic {
		t.Errorf("Parse of garbage: got %v, want ErrBadMagic", err)
	}
}

func TestParamsValidate(t *testing.T) {
	p := testParams()
	p.PageSize = 2000
	if _, err := New(p, []byte{1}, nil, nil, nil); err == nil {
		t.Error("New accepted a non-power-of-two page size")
	}
	p = testParams()
	if _, err := New(p, nil, []byte{1}, nil, nil); err == nil {
		t.Error("New accepted an empty kernel")
	}
}

func TestDetectFormat(t *testing.T) {
	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	zw.Write([]byte("hello"))
	zw.Close()

	for _, tt := range []struct {
		name string
		b    []byte
		want Format
	}{
		{"gzip", gz.Bytes(), FormatGzip},
		{"xz", []byte{0xfd, '7', 'z', 'X', 'Z', 0x00, 1, 2}, FormatXZ},
		{"cpio", []byte("070701deadbeef"), FormatCpio},
		{"unknown", []byte("garbage"), FormatUnknown},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.b); got != tt.want {
				t.Errorf("DetectFormat = %v; want %v", got, tt.want)
			}
		})
	}
}
