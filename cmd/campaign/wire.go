//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/yanqian/location-insights/internal/bootstrap"
	"github.com/yanqian/location-insights/internal/infra/config"
)

func initializeCLI(ctx context.Context) (*bootstrap.CLI, func(), error) {
	wire.Build(
		config.Load,
		provideLogger,
		bootstrap.PipelineSet,
		bootstrap.ProvideResultStore,
		provideRunner,
		bootstrap.NewCLI,
	)
	return nil, nil, nil
}
