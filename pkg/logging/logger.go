package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger. Production config (JSON, info level) for
// deployed environments; development config (console, debug level) locally.
func New(env string) (*zap.Logger, error) {
	if env == "local" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
