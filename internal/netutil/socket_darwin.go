//go:build darwin

package netutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// Socket 创建非阻塞、close-on-exec 的 TCP socket。
// darwin 没有 SOCK_NONBLOCK，需要逐项设置；SO_NOSIGPIPE 避免写断开连接时收到信号。
func Socket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)
	if err := SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("setnonblock", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("setsockopt", err)
	}
	return fd, nil
}
