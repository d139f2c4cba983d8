//go:build linux || darwin || freebsd

// ABOUTME: Free space lookup through statfs on linux and the BSDs
// ABOUTME: Counts blocks available to unprivileged users
package kvstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func freeBytes(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem: %w", err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
