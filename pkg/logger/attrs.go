package logger

import (
	"log/slog"
	"time"
)

// commonAttrs — постоянные атрибуты процесса; вешаются на хендлер один раз
// при инициализации.
func commonAttrs(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
}
