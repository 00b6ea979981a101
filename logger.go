package niotcp

import "log/slog"

// Logger 为结构化日志接口，与 *slog.Logger 兼容。
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.Default()
}
