package niotcp

import (
	"context"
	"sync"
	"sync/atomic"
)

// Result 为单次发送的完成句柄，只会有一个终态：成功（Err 为 nil）或失败。
// Cancel 只是建议性的：它让 Result 立即以 ErrCanceled 结束并屏蔽之后的完成通知，
// 但不会撤回已经写出的字节。
type Result struct {
	once     sync.Once
	done     chan struct{}
	err      error
	canceled atomic.Bool
}

func newResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Done 在 Result 进入终态后关闭。
func (r *Result) Done() <-chan struct{} { return r.done }

// Err 返回终态错误；尚未结束时返回 nil。
func (r *Result) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Wait 阻塞直到 Result 结束或 ctx 结束。
func (r *Result) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Result) Cancel() {
	r.canceled.Store(true)
	r.resolve(ErrCanceled)
}

func (r *Result) Canceled() bool { return r.canceled.Load() }

// resolve 设置终态，只有第一次调用生效；nil 接收者忽略。
func (r *Result) resolve(err error) {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}
