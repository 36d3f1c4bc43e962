//go:build !windows

package pageio

import "golang.org/x/sys/unix"

// systemPageSize is the OS's memory page size, queried once. Grounded on
// Giulio2002-gdbx's env.go (sysPageSize = syscall.Getpagesize()), adapted to
// the portable golang.org/x/sys/unix equivalent.
var systemPageSize = unix.Getpagesize()

// AlignToSystemPage rounds size up to a multiple of the OS page size. It is
// an exported helper that no Store method calls; it never changes the
// logical page boundaries read_page/write_page compute from PageID.
func AlignToSystemPage(size int64) int64 {
	psize := int64(systemPageSize)
	if psize <= 0 {
		return size
	}
	if size%psize == 0 {
		return size
	}
	return (size/psize + 1) * psize
}
