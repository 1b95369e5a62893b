//go:build linux

package bootpack

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceCapacity returns how many bytes fit into f. Block devices report
// st_size 0, their capacity comes from the BLKGETSIZE64 ioctl instead.
func deviceCapacity(f *os.File) (uint64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if st.Mode()&os.ModeDevice == 0 {
		return uint64(st.Size()), nil
	}
	var size uint64
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size))); errno != 0 {
		return 0, errno
	}
	return size, nil
}
