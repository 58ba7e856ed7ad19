package http

import (
	"fmt"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/apirequests/pkg/apireq"
)

// leveledLogger adapts apireq.Logger to retryablehttp.LeveledLogger.
// Per-attempt debug lines are dropped; Client logs each call itself.
type leveledLogger struct {
	logger apireq.Logger
}

var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)

func newLeveledLogger(logger apireq.Logger) retryablehttp.LeveledLogger {
	if logger == nil {
		return nil
	}

	return &leveledLogger{logger: logger}
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, toFields(keysAndValues))
}

func (l *leveledLogger) Debug(string, ...interface{}) {}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, toFields(keysAndValues))
}

func toFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2) //nolint:mnd // key/value pairs

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}
