package uam

import "github.com/oarkflow/uam/logger"

// Logger is re-exported so callers configure logging without importing the
// logger subpackage directly.
type Logger = logger.Logger

// WithLogger installs a Logger on the Engine via EngineOption
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}
