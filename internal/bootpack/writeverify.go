package bootpack

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
)

// VerifyWrite checks that the boot image at imagePath was written intact to
// the start of device (a block device, or any file standing in for one): the
// device must be large enough to hold the image, and the SHA-256 of the
// image must match the SHA-256 of the device's first bytes. The flashing
// transport calls this after writing, before declaring success.
func VerifyWrite(imagePath, device string) error {
	img, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer img.Close()
	st, err := img.Stat()
	if err != nil {
		return err
	}
	size := st.Size()

	dev, err := os.Open(device)
	if err != nil {
		return err
	}
	defer dev.Close()
	capacity, err := deviceCapacity(dev)
	if err != nil {
		return fmt.Errorf("determining size of %s: %v", device, err)
	}
	if capacity < uint64(size) {
		return fmt.Errorf("%s holds %s, too small for image %s (%s)",
			device, humanize.Bytes(capacity), imagePath, humanize.Bytes(uint64(size)))
	}

	want := sha256.New()
	if _, err := io.Copy(want, img); err != nil {
		return err
	}
	got := sha256.New()
	if _, err := io.CopyN(got, dev, size); err != nil {
		return fmt.Errorf("reading %d bytes back from %s: %v", size, device, err)
	}
	if !bytes.Equal(got.Sum(nil), want.Sum(nil)) {
		return fmt.Errorf("%s does not match %s: sha256 %x on device, want %x",
			device, imagePath, got.Sum(nil), want.Sum(nil))
	}
	return nil
}
