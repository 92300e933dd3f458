package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/matchbook/notifier/pkg/logger"
)

const defaultSlowThreshold = 500 * time.Millisecond

// zapWriter forwards gorm's printf-style log lines to the module logger.
type zapWriter struct {
	log *zap.Logger
}

func (w zapWriter) Printf(format string, args ...interface{}) {
	w.log.Info(fmt.Sprintf(format, args...))
}

func newGormLogger(level string, slow time.Duration) gormlogger.Interface {
	if slow <= 0 {
		slow = defaultSlowThreshold
	}
	return gormlogger.New(zapWriter{log: logger.WithModule("gorm")}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  parseGormLogLevel(level),
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
