//go:build linux

package poller

import (
	"os"

	"golang.org/x/sys/unix"
)

type epollPoller struct {
	efd int
	wfd int // eventfd for wakeup
	raw []unix.EpollEvent
}

const Supported = true

func New() (Poller, error) {
	efd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	wfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(efd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &epollPoller{efd: efd, wfd: wfd}
	// 注册 wakeup fd（边缘触发，Wait 中读空）
	ev := &unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET, Fd: int32(wfd)}
	if err := unix.EpollCtl(efd, unix.EPOLL_CTL_ADD, wfd, ev); err != nil {
		unix.Close(wfd)
		unix.Close(efd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}
	return p, nil
}

func interest(readable, writable bool) uint32 {
	var flag uint32 = unix.EPOLLRDHUP
	if readable {
		flag |= unix.EPOLLIN
	}
	if writable {
		flag |= unix.EPOLLOUT
	}
	return flag
}

func (p *epollPoller) Register(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interest(readable, writable), Fd: int32(fd)}
	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.efd, unix.EPOLL_CTL_ADD, fd, ev))
}

func (p *epollPoller) Mod(fd FD, readable, writable bool) error {
	ev := &unix.EpollEvent{Events: interest(readable, writable), Fd: int32(fd)}
	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.efd, unix.EPOLL_CTL_MOD, fd, ev))
}

func (p *epollPoller) Unregister(fd FD) error {
	return os.NewSyscallError("epoll_ctl", unix.EpollCtl(p.efd, unix.EPOLL_CTL_DEL, fd, nil))
}

func (p *epollPoller) Wake() error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(p.wfd, buf[:])
	if err == unix.EAGAIN {
		// 计数器已满，说明唤醒尚未被消费
		return nil
	}
	return os.NewSyscallError("write", err)
}

func (p *epollPoller) Close() error {
	werr := unix.Close(p.wfd)
	if err := unix.Close(p.efd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return os.NewSyscallError("close", werr)
}

func (p *epollPoller) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	// 多留一个位置给 wakeup fd
	if cap(p.raw) < len(events)+1 {
		p.raw = make([]unix.EpollEvent, len(events)+1)
	}
	raw := p.raw[:len(events)+1]
	n, err := unix.EpollWait(p.efd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	k := 0
	for i := 0; i < n && k < len(events); i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		if fd == p.wfd {
			p.drain()
			continue
		}
		events[k] = Event{
			FD:       fd,
			Readable: ev.Events&unix.EPOLLIN != 0,
			Writable: ev.Events&unix.EPOLLOUT != 0,
			Hangup:   ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0,
		}
		k++
	}
	return k, nil
}

// drain 清空 eventfd 计数
func (p *epollPoller) drain() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wfd, buf[:]); err != nil {
			return
		}
	}
}
