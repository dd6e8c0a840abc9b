package websocket

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// SetLogLevel parses level ("debug", "info", ...) and applies it to the
// package logger.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("websocket: log level: %w", err)
	}
	logrus.SetLevel(lvl)
	return nil
}
