//go:build darwin

package poller

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq  int
	wfd int // 写端，用于唤醒
	rfd int // 读端，注册到 kqueue
	raw []unix.Kevent_t
}

const Supported = true

func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	// 使用管道作为唤醒
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		unix.Close(kq)
		return nil, os.NewSyscallError("pipe", err)
	}
	rfd, wfd := p[0], p[1]
	for _, fd := range p {
		unix.CloseOnExec(fd)
		_ = unix.SetNonblock(fd, true)
	}
	kev := unix.Kevent_t{
		Ident:  uint64(rfd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{kev}, nil, nil); err != nil {
		unix.Close(rfd)
		unix.Close(wfd)
		unix.Close(kq)
		return nil, os.NewSyscallError("kevent", err)
	}
	return &kqueuePoller{kq: kq, wfd: wfd, rfd: rfd}, nil
}

// apply 对单个过滤器做增删；删除未注册的过滤器不算错误。
func (p *kqueuePoller) apply(fd FD, filter int16, on bool) error {
	flags := uint16(unix.EV_DELETE)
	if on {
		flags = unix.EV_ADD
	}
	kev := unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	if err == unix.ENOENT && !on {
		return nil
	}
	return os.NewSyscallError("kevent", err)
}

func (p *kqueuePoller) Register(fd FD, readable, writable bool) error {
	return p.Mod(fd, readable, writable)
}

func (p *kqueuePoller) Mod(fd FD, readable, writable bool) error {
	if err := p.apply(fd, unix.EVFILT_READ, readable); err != nil {
		return err
	}
	return p.apply(fd, unix.EVFILT_WRITE, writable)
}

func (p *kqueuePoller) Unregister(fd FD) error {
	return p.Mod(fd, false, false)
}

func (p *kqueuePoller) Wake() error {
	var b [1]byte
	b[0] = 1
	_, err := unix.Write(p.wfd, b[:])
	if err == unix.EAGAIN {
		return nil
	}
	return os.NewSyscallError("write", err)
}

func (p *kqueuePoller) Close() error {
	unix.Close(p.rfd)
	unix.Close(p.wfd)
	return os.NewSyscallError("close", unix.Close(p.kq))
}

func (p *kqueuePoller) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(p.raw) < len(events)+1 {
		p.raw = make([]unix.Kevent_t, len(events)+1)
	}
	raw := p.raw[:len(events)+1]
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(time.Duration(timeoutMs) * time.Millisecond))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("kevent", err)
	}
	k := 0
	for i := 0; i < n && k < len(events); i++ {
		ev := raw[i]
		fd := int(ev.Ident)
		if fd == p.rfd {
			p.drain()
			continue
		}
		e := Event{FD: fd, Hangup: ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0}
		switch ev.Filter {
		case unix.EVFILT_READ:
			e.Readable = true
		case unix.EVFILT_WRITE:
			e.Writable = true
		}
		events[k] = e
		k++
	}
	return k, nil
}

func (p *kqueuePoller) drain() {
	var buf [16]byte
	for {
		if _, err := unix.Read(p.rfd, buf[:]); err != nil {
			return
		}
	}
}
