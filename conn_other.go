//go:build !linux && !darwin

package niotcp

import (
	"context"
	"net"

	"github.com/legamerdc/niotcp/poller"
)

func dial(context.Context, poller.Poller, *net.TCPAddr, Config) (rawConn, int, error) {
	return nil, -1, ErrPlatformNotSupported
}
