//go:build !linux

package bootpack

import "os"

func deviceCapacity(f *os.File) (uint64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(st.Size()), nil
}
