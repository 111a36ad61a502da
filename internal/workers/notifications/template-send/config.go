// internal/workers/notifications/template-send/config.go
package templatesend

import (
	"time"

	"notification-dispatch/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// MaxSubjectLength bounds caller-supplied subjects; longer ones are cut.
	MaxSubjectLength int
}

func LoadConfig(cfg config.WorkerConfig) *Config {
	c := &Config{Timeout: 30 * time.Second, MaxSubjectLength: 512}
	if cfg.Timeout > 0 {
		c.Timeout = time.Duration(cfg.Timeout) * time.Millisecond
	}
	return c
}
