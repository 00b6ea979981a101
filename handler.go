package niotcp

// Framer 在字节流与消息边界之间转换，有状态，需要缓存半包。
// 同一时刻只会被一个连接 worker 串行调用。
type Framer interface {
	// Decode 接收一段新到达的字节，按到达顺序返回零或多个完整帧。
	// 返回错误时，错误之前解出的帧仍会被投递，随后引擎调用 Reset。
	Decode(p []byte) ([][]byte, error)
	// Encode 将一条消息的线上形式追加到 dst 并返回。
	Encode(dst, p []byte) ([]byte, error)
	// Reset 丢弃内部缓存，在每次 Connect 与每次断开时各调用一次。
	Reset()
}

// Serializer 在帧字节与应用消息之间转换。
type Serializer[T any] interface {
	Serialize(v T) ([]byte, error)
	Deserialize(p []byte) (T, error)
}

// Listener 为连接事件回调。
// 除 ForceDisconnect 触发的 OnDisconnected 在调用方 goroutine 中执行外，
// 其余回调都在连接 worker goroutine 中执行，不应长时间阻塞。
// 回调中的 panic 会被捕获并记录日志，不影响事件循环。
type Listener[T any] interface {
	OnConnected(c *Client[T])
	OnDisconnected(c *Client[T])
	OnMessageSent(c *Client[T], msg T)
	OnMessageReceived(c *Client[T], msg T)
	OnError(c *Client[T], err *Error[T])
}

// ListenerFuncs 用函数字段实现 Listener，未设置的回调忽略。
type ListenerFuncs[T any] struct {
	Connected       func(c *Client[T])
	Disconnected    func(c *Client[T])
	MessageSent     func(c *Client[T], msg T)
	MessageReceived func(c *Client[T], msg T)
	Error           func(c *Client[T], err *Error[T])
}

func (l ListenerFuncs[T]) OnConnected(c *Client[T]) {
	if l.Connected != nil {
		l.Connected(c)
	}
}

func (l ListenerFuncs[T]) OnDisconnected(c *Client[T]) {
	if l.Disconnected != nil {
		l.Disconnected(c)
	}
}

func (l ListenerFuncs[T]) OnMessageSent(c *Client[T], msg T) {
	if l.MessageSent != nil {
		l.MessageSent(c, msg)
	}
}

func (l ListenerFuncs[T]) OnMessageReceived(c *Client[T], msg T) {
	if l.MessageReceived != nil {
		l.MessageReceived(c, msg)
	}
}

func (l ListenerFuncs[T]) OnError(c *Client[T], err *Error[T]) {
	if l.Error != nil {
		l.Error(c, err)
	}
}

// NopListener 提供全部空实现，嵌入后只需覆盖关心的回调。
type NopListener[T any] struct{}

func (NopListener[T]) OnConnected(*Client[T])          {}
func (NopListener[T]) OnDisconnected(*Client[T])       {}
func (NopListener[T]) OnMessageSent(*Client[T], T)     {}
func (NopListener[T]) OnMessageReceived(*Client[T], T) {}
func (NopListener[T]) OnError(*Client[T], *Error[T])   {}
