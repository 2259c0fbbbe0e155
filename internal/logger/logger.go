package logger

import "go.uber.org/zap"

// New builds the service logger: human-readable output in development,
// JSON in every other environment.
func New(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
