//go:build linux

package netutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// Socket 创建非阻塞、close-on-exec 的 TCP socket。
func Socket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	return fd, nil
}
