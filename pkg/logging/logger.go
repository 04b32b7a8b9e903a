// Package logging builds the process-wide zap logger. Services receive a
// *zap.Logger and derive named children rather than constructing their own.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New creates a logger appropriate for the given environment.
// Local and development environments get human-readable console output;
// everything else gets production JSON.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	switch env {
	case "local", "development":
		logger, err = zap.NewDevelopment()
	default:
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
