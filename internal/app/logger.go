package app

import (
	"strings"

	"github.com/matchbook/notifier/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, logger.Options{
		Format: strings.TrimSpace(format),
		Fields: map[string]string{"service": "notifier"},
	})
}
