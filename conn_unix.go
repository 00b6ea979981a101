//go:build linux || darwin

package niotcp

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/legamerdc/niotcp/internal/netutil"
	"github.com/legamerdc/niotcp/poller"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// fdConn 直接在非阻塞 fd 上读写，不经过 Go runtime 的 netpoller
type fdConn struct {
	fd int
}

func (c *fdConn) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if netutil.IsTemporary(err) {
			return 0, nil
		}
		if netutil.IsReset(err) {
			return 0, io.EOF
		}
		return 0, os.NewSyscallError("read", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *fdConn) Write(p []byte) (int, error) {
	n, err := unix.Write(c.fd, p)
	if err != nil {
		if netutil.IsTemporary(err) {
			return 0, nil
		}
		if netutil.IsReset(err) {
			return 0, io.EOF
		}
		return 0, os.NewSyscallError("write", err)
	}
	return n, nil
}

func (c *fdConn) Close() error {
	return os.NewSyscallError("close", unix.Close(c.fd))
}

// dial 发起非阻塞 connect，成功后 fd 已以只读关注注册到 pl。
// ctx 的截止时间即建连超时；ctx 被取消时返回 ErrConnectAborted。
func dial(ctx context.Context, pl poller.Poller, addr *net.TCPAddr, cfg Config) (rawConn, int, error) {
	sa, family, err := netutil.Sockaddr(addr)
	if err != nil {
		return nil, -1, errors.Wrapf(err, "address %s", addr)
	}
	fd, err := netutil.Socket(family)
	if err != nil {
		return nil, -1, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	if err := setSockopts(fd, cfg); err != nil {
		return nil, -1, err
	}

	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		if err := pl.Register(fd, true, false); err != nil {
			return nil, -1, errors.Wrap(err, "register socket")
		}
	case err == unix.EINPROGRESS || err == unix.EINTR:
		if err := awaitConnect(ctx, pl, fd); err != nil {
			return nil, -1, err
		}
	default:
		return nil, -1, errors.Wrapf(os.NewSyscallError("connect", err), "dial %s", addr)
	}
	ok = true
	return &fdConn{fd: fd}, fd, nil
}

// awaitConnect 等待 fd 可写后读取 SO_ERROR 判定建连结果
func awaitConnect(ctx context.Context, pl poller.Poller, fd int) error {
	if err := pl.Register(fd, false, true); err != nil {
		return errors.Wrap(err, "register socket")
	}
	deadline, hasDeadline := ctx.Deadline()
	events := make([]poller.Event, maxEvents)
	for {
		if err := ctx.Err(); err != nil {
			return connectCtxErr(err)
		}
		timeout := -1
		if hasDeadline {
			left := time.Until(deadline)
			if left <= 0 {
				return ErrConnectTimeout
			}
			// 向上取整，避免 0 退化为忙等
			timeout = int((left + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := pl.Wait(events, timeout)
		if err != nil {
			return errors.Wrap(err, "poller wait")
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			if ev.FD != fd || !(ev.Writable || ev.Hangup) {
				continue
			}
			if err := netutil.SocketError(fd); err != nil {
				return err
			}
			if err := pl.Mod(fd, true, false); err != nil {
				return errors.Wrap(err, "register socket")
			}
			return nil
		}
	}
}

func setSockopts(fd int, cfg Config) error {
	if err := netutil.SetNoDelay(fd, true); err != nil {
		return err
	}
	if err := netutil.SetKeepAlive(fd, cfg.KeepAlive); err != nil {
		return err
	}
	if err := netutil.SetSendBuf(fd, cfg.BufferSize); err != nil {
		return err
	}
	return netutil.SetRecvBuf(fd, cfg.BufferSize)
}
