package strapi

import (
	"sort"

	"github.com/hashicorp/go-hclog"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]interface{}) {}
func (NoopLogger) Info(string, map[string]interface{})  {}
func (NoopLogger) Warn(string, map[string]interface{})  {}
func (NoopLogger) Error(string, map[string]interface{}) {}

// HCLogger adapts an hclog.Logger to Logger.
type HCLogger struct {
	logger hclog.Logger
}

// NewHCLogger wraps logger. A nil logger gets a default "strapi" logger at
// info level.
func NewHCLogger(logger hclog.Logger) *HCLogger {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:  "strapi",
			Level: hclog.Info,
		})
	}

	return &HCLogger{logger: logger}
}

func (l *HCLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, flatten(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, flatten(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, flatten(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, flatten(fields)...)
}

// flatten turns a field map into hclog's alternating key/value arguments,
// sorted by key so log lines are stable.
func flatten(fields map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	args := make([]interface{}, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	return args
}
