// Package bootimg reads and writes Android-style boot images: a fixed
// little-endian header followed by page-aligned kernel, ramdisk and
// (optional) second-stage/device-tree sections. This is the image format the
// bootloaders of the supported handheld devices load directly.
package bootimg

import (
	"fmt"
	"strings"
)

// Boot image format constants.
const (
	Magic         = "ANDROID!"
	MagicSize     = 8
	NameSize      = 16
	ArgsSize      = 512
	ExtraArgsSize = 1024

	// HeaderSize is the size of the raw header before page padding. The
	// header always occupies one full page in the image.
	HeaderSize = MagicSize + 10*4 + NameSize + ArgsSize + 32 + ExtraArgsSize
)

// DefaultPageSize is the page size mandated by the bootloaders of the
// supported device family. Writing an image with any other page size bricks
// the boot sequence.
const DefaultPageSize = 2048

// DefaultKernelOffset is the conventional kernel load offset relative to the
// image base address. Inspection backends that only report absolute load
// addresses have the base derived using this offset.
const DefaultKernelOffset = 0x00008000

// Params are the header parameters under the builder's control. Sizes and
// load addresses in the header are derived from them.
type Params struct {
	PageSize      uint32
	Base          uint32
	KernelOffset  uint32
	RamdiskOffset uint32
	SecondOffset  uint32
	TagsOffset    uint32
	Board         string
	Cmdline       string
}

func (p Params) validate() error {
	if p.PageSize == 0 || p.PageSize&(p.PageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", p.PageSize)
	}
	if p.PageSize < HeaderSize {
		return fmt.Errorf("page size %d cannot hold the %d byte header", p.PageSize, HeaderSize)
	}
	if len(p.Board) >= NameSize {
		return fmt.Errorf("board name %q exceeds %d bytes", p.Board, NameSize-1)
	}
	if len(p.Cmdline) > ArgsSize+ExtraArgsSize {
		return fmt.Errorf("command line exceeds %d bytes", ArgsSize+ExtraArgsSize)
	}
	return nil
}

// Image is the parsed or to-be-written content of a boot image.
type Image struct {
	Board    string
	Cmdline  string
	PageSize uint32

	KernelAddr  uint32
	RamdiskAddr uint32
	SecondAddr  uint32
	TagsAddr    uint32

	Kernel     []byte
	Ramdisk    []byte
	Second     []byte
	DeviceTree []byte
}

// New combines a kernel, a ramdisk and optional second-stage/device-tree
// payloads with header parameters into an Image ready to be written.
func New(p Params, kernel, ramdisk, second, deviceTree []byte) (*Image, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if len(kernel) == 0 {
		return nil, fmt.Errorf("refusing to build a boot image with an empty kernel")
	}
	return &Image{
		Board:       p.Board,
		Cmdline:     p.Cmdline,
		PageSize:    p.PageSize,
		KernelAddr:  p.Base + p.KernelOffset,
		RamdiskAddr: p.Base + p.RamdiskOffset,
		SecondAddr:  p.Base + p.SecondOffset,
		TagsAddr:    p.Base + p.TagsOffset,
		Kernel:      kernel,
		Ramdisk:     ramdisk,
		Second:      second,
		DeviceTree:  deviceTree,
	}, nil
}

// Base derives the image base address from the kernel load address using the
// conventional kernel offset.
func (img *Image) Base() uint32 {
	return img.KernelAddr - DefaultKernelOffset
}

func cString(b []byte) string {
	if idx := strings.IndexByte(string(b), 0); idx != -1 {
		return string(b[:idx])
	}
	return string(b)
}
