package hardware

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// FilesystemReadonly reports whether the filesystem holding path is mounted
// read-only. The device's data partition is remounted read-only while it is
// exported to the host as mass storage, so this doubles as the "drive
// exported" indicator at startup.
func FilesystemReadonly(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Flags&unix.ST_RDONLY != 0, nil
}
