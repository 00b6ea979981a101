package niotcp

import (
	"fmt"

	"github.com/legamerdc/niotcp/poller"
	"github.com/pkg/errors"
)

var (
	// ErrPlatformNotSupported 当前平台没有 epoll/kqueue
	ErrPlatformNotSupported = poller.ErrUnsupported

	// ErrInvalidArgument 参数非法
	ErrInvalidArgument = errors.New("niotcp: invalid argument")

	// ErrAlreadyConnected 已有连接（或正在连接/断开）时再次 Connect
	ErrAlreadyConnected = errors.New("niotcp: already connected or connecting")

	// ErrNotConnected 未处于 Connected 状态时发送
	ErrNotConnected = errors.New("niotcp: not connected")

	// ErrConnectionClosed 消息在写出前连接已关闭
	ErrConnectionClosed = errors.New("niotcp: connection closed")

	// ErrQueueFull 发送队列已达 WithMaxPending 上限
	ErrQueueFull = errors.New("niotcp: send queue full")

	// ErrCanceled 调用方取消了 Result
	ErrCanceled = errors.New("niotcp: canceled")

	// ErrConnectTimeout 在 ConnectTimeout 内未完成解析与建连
	ErrConnectTimeout = errors.New("niotcp: connect timeout")

	// ErrConnectAborted 建连过程中收到断开请求
	ErrConnectAborted = errors.New("niotcp: connect aborted")
)

// Phase 标识错误发生时所处的连接阶段
type Phase int

const (
	PhaseConnecting Phase = iota
	PhaseSending
	PhaseReceiving
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseSending:
		return "sending"
	case PhaseReceiving:
		return "receiving"
	case PhaseDisconnecting:
		return "disconnecting"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Error 为交给 Listener.OnError 的错误记录。
// Sending 阶段一定带有出错的消息；其余阶段 HasMessage 为 false。
type Error[T any] struct {
	Phase      Phase
	Message    T
	HasMessage bool
	Err        error
}

func (e *Error[T]) Error() string {
	return fmt.Sprintf("niotcp: %s: %v", e.Phase, e.Err)
}

func (e *Error[T]) Unwrap() error { return e.Err }

// panicError 将 recover 的值转为 error
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.Wrap(err, "panic")
	}
	return errors.Errorf("panic: %v", r)
}
