//go:build !linux && !darwin

package poller

// Supported 报告当前平台是否有可用的就绪选择器
const Supported = false

func New() (Poller, error) { return nil, ErrUnsupported }
