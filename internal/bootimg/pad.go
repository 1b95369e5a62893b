package bootimg

// Align returns the smallest multiple of pageSize that is >= n.
func Align(n, pageSize int) int {
	return n + PaddingSize(n, pageSize)
}

// PaddingSize returns the number of padding bytes needed to bring n up to
// the next pageSize boundary. pageSize must be a power of two. This is the
// one piece of layout logic every assembly backend must agree on: a section
// that does not end on a page boundary is indistinguishable from a wrong
// page size to the bootloader.
func PaddingSize(n, pageSize int) int {
	rem := n & (pageSize - 1)
	if rem == 0 {
		return 0
	}
	return pageSize - rem
}
