package logging

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// NewLogger creates the process logger. Each service constructs one at
// startup and hands sub-loggers to its components via Named().
func NewLogger(name, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}
