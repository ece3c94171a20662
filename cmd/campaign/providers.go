package main

import (
	"log/slog"
	"os"

	"github.com/yanqian/location-insights/internal/domain/pipeline"
	"github.com/yanqian/location-insights/internal/infra/config"
	"github.com/yanqian/location-insights/internal/interface/cli"
	"github.com/yanqian/location-insights/pkg/logger"
)

func provideLogger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr)
}

func provideRunner(cfg *config.Config, svc pipeline.Service, logger *slog.Logger) *cli.Runner {
	return cli.NewRunner(svc, os.Stdin, os.Stdout, cfg.Campaign.SelectCount, logger)
}
