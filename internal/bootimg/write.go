package bootimg

import (
	"bufio"
	"crypto/sha1"
	"encoding/binary"
	"io"
	"os"
)

// rawHeader is the on-disk header layout, in field order.
type rawHeader struct {
	Magic [MagicSize]byte

	KernelSize  uint32
	KernelAddr  uint32
	RamdiskSize uint32
	RamdiskAddr uint32
	SecondSize  uint32
	SecondAddr  uint32

	TagsAddr uint32
	PageSize uint32
	DtSize   uint32

	// Unused on this device family (OS version on Android proper).
	Unused uint32

	Board   [NameSize]byte
	Cmdline [ArgsSize]byte

	// SHA-1 over the section payloads and their sizes, as mkbootimg
	// computes it. Bootloaders ignore it; tooling uses it as a checksum.
	ID [32]byte

	ExtraCmdline [ExtraArgsSize]byte
}

func (img *Image) header() rawHeader {
	var hdr rawHeader
	copy(hdr.Magic[:], Magic)

	hdr.KernelSize = uint32(len(img.Kernel))
	hdr.KernelAddr = img.KernelAddr
	hdr.RamdiskSize = uint32(len(img.Ramdisk))
	hdr.RamdiskAddr = img.RamdiskAddr
	hdr.SecondSize = uint32(len(img.Second))
	hdr.SecondAddr = img.SecondAddr
	hdr.TagsAddr = img.TagsAddr
	hdr.PageSize = img.PageSize
	hdr.DtSize = uint32(len(img.DeviceTree))

	copy(hdr.Board[:], img.Board)
	if len(img.Cmdline) <= ArgsSize {
		copy(hdr.Cmdline[:], img.Cmdline)
	} else {
		copy(hdr.Cmdline[:], img.Cmdline[:ArgsSize])
		copy(hdr.ExtraCmdline[:], img.Cmdline[ArgsSize:])
	}

	id := img.checksum(&hdr)
	copy(hdr.ID[:], id)

	return hdr
}

func (img *Image) checksum(hdr *rawHeader) []byte {
	le32 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}
	h := sha1.New()
	h.Write(img.Kernel)
	h.Write(le32(hdr.KernelSize))
	h.Write(img.Ramdisk)
	h.Write(le32(hdr.RamdiskSize))
	h.Write(img.Second)
	h.Write(le32(hdr.SecondSize))
	if len(img.DeviceTree) > 0 {
		h.Write(img.DeviceTree)
		h.Write(le32(hdr.DtSize))
	}
	return h.Sum(nil)
}

func (img *Image) writePadding(w io.Writer, written int) error {
	size := PaddingSize(written, int(img.PageSize))
	if size == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, size))
	return err
}

func (img *Image) writePaddedSection(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	return img.writePadding(w, len(data))
}

// WriteTo writes the full image (header page plus padded sections) to w.
func (img *Image) WriteTo(w io.Writer) error {
	hdr := img.header()
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	if err := img.writePadding(w, HeaderSize); err != nil {
		return err
	}
	if err := img.writePaddedSection(w, img.Kernel); err != nil {
		return err
	}
	if err := img.writePaddedSection(w, img.Ramdisk); err != nil {
		return err
	}
	if len(img.Second) > 0 {
		if err := img.writePaddedSection(w, img.Second); err != nil {
			return err
		}
	}
	if len(img.DeviceTree) > 0 {
		if err := img.writePaddedSection(w, img.DeviceTree); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes the image to path. The file is created fresh; boot images
// are never patched in place.
func (img *Image) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	if err := img.WriteTo(bufw); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
