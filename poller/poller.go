package poller

import "errors"

// FD 表示文件描述符。
type FD = int

// ErrUnsupported 当前平台没有可用的就绪选择器。
var ErrUnsupported = errors.New("poller: platform not supported (requires epoll or kqueue)")

// Event 为一次就绪通知。唤醒 fd 的事件在 Wait 内部消化，不会出现在结果中。
type Event struct {
	FD       FD
	Readable bool
	Writable bool
	// Hangup 表示对端关闭或 socket 出错，后续读写会给出具体结果。
	Hangup bool
}

// Poller 提供注册与单次等待。
// 除 Wake 外所有方法只允许在拥有它的 goroutine 中调用。
// 注册的 fd 为水平触发：每个就绪事件只做一次读或写，剩余的数据下一轮仍会就绪。
type Poller interface {
	Register(fd FD, readable, writable bool) error
	Mod(fd FD, readable, writable bool) error
	Unregister(fd FD) error
	// Wait 阻塞直到有事件、被 Wake 唤醒或超时；timeoutMs < 0 表示不超时。
	// 被唤醒或被信号打断时返回 0。
	Wait(events []Event, timeoutMs int) (int, error)
	// Wake 使阻塞中的（或下一次）Wait 立即返回，可在任意 goroutine 调用。
	Wake() error
	Close() error
}
