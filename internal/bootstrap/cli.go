package bootstrap

import (
	"context"
	"log/slog"

	"github.com/yanqian/location-insights/internal/interface/cli"
)

// CLI runs a single interactive campaign run.
type CLI struct {
	runner *cli.Runner
	logger *slog.Logger
}

// NewCLI is used by Wire to build the terminal entry point.
func NewCLI(runner *cli.Runner, logger *slog.Logger) *CLI {
	return &CLI{runner: runner, logger: logger.With("component", "bootstrap")}
}

// Run executes one run and returns once results are printed.
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Debug("interactive run starting")
	return c.runner.Run(ctx)
}
