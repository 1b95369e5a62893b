package bootimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrBadMagic is returned when the input does not start with the boot image
// magic marker.
var ErrBadMagic = errors.New("bootimg: missing ANDROID! magic")

// Parse reads a boot image from b. It validates the magic, the page size and
// the section bounds, and returns the header fields together with the
// embedded payloads.
func Parse(b []byte) (*Image, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("bootimg: %d bytes is too short for a %d byte header", len(b), HeaderSize)
	}
	if !bytes.Equal(b[:MagicSize], []byte(Magic)) {
		return nil, ErrBadMagic
	}

	var hdr rawHeader
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}

	pageSize := int(hdr.PageSize)
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("bootimg: page size %d is not a power of two", pageSize)
	}
	if pageSize < HeaderSize {
		return nil, fmt.Errorf("bootimg: page size %d is smaller than the header", pageSize)
	}

	section := func(offset, size int) ([]byte, error) {
		if size == 0 {
			return nil, nil
		}
		if offset+size > len(b) {
			return nil, fmt.Errorf("bootimg: section [%d:%d] exceeds image size %d", offset, offset+size, len(b))
		}
		return b[offset : offset+size], nil
	}

	// Sections follow the header page in order, each padded to a page
	// boundary.
	kernelOff := pageSize
	ramdiskOff := kernelOff + Align(int(hdr.KernelSize), pageSize)
	secondOff := ramdiskOff + Align(int(hdr.RamdiskSize), pageSize)
	dtOff := secondOff + Align(int(hdr.SecondSize), pageSize)

	kernel, err := section(kernelOff, int(hdr.KernelSize))
	if err != nil {
		return nil, err
	}
	ramdisk, err := section(ramdiskOff, int(hdr.RamdiskSize))
	if err != nil {
		return nil, err
	}
	second, err := section(secondOff, int(hdr.SecondSize))
	if err != nil {
		return nil, err
	}
	dt, err := section(dtOff, int(hdr.DtSize))
	if err != nil {
		return nil, err
	}

	cmdline := cString(hdr.Cmdline[:])
	if extra := cString(hdr.ExtraCmdline[:]); extra != "" {
		cmdline += extra
	}

	return &Image{
		Board:       cString(hdr.Board[:]),
		Cmdline:     cmdline,
		PageSize:    hdr.PageSize,
		KernelAddr:  hdr.KernelAddr,
		RamdiskAddr: hdr.RamdiskAddr,
		SecondAddr:  hdr.SecondAddr,
		TagsAddr:    hdr.TagsAddr,
		Kernel:      kernel,
		Ramdisk:     ramdisk,
		Second:      second,
		DeviceTree:  dt,
	}, nil
}

// ParseFile reads and parses the boot image at path.
func ParseFile(path string) (*Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
