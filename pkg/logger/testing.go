package logger

import "go.uber.org/zap"

// NewNop returns a logger that discards everything. Intended for tests
// and for components where logging is optional.
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}
