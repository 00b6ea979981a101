package niotcp

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Config 为单条客户端连接的配置
type Config struct {
	Host           string        // 远端地址，域名或 IP
	Port           int           // 远端端口
	KeepAlive      bool          // SO_KEEPALIVE
	BufferSize     int           // SO_SNDBUF/SO_RCVBUF 以及接收缓冲大小（字节）
	ConnectTimeout time.Duration // 解析 + 建连的总超时
}

const (
	DefaultBufferSize     = 8192
	DefaultConnectTimeout = 5000 * time.Millisecond
)

// DefaultConfig 返回指向 host:port 的默认配置
func DefaultConfig(host string, port int) Config {
	return Config{
		Host:           host,
		Port:           port,
		KeepAlive:      true,
		BufferSize:     DefaultBufferSize,
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// Addr 返回 host:port 形式的地址
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// normalize 校验必填项并补齐零值
func (c *Config) normalize() error {
	if c.Host == "" {
		return errors.Wrap(ErrInvalidArgument, "empty host")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Wrapf(ErrInvalidArgument, "port %d out of range", c.Port)
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	return nil
}
