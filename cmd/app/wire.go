//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/yanqian/location-insights/internal/bootstrap"
	"github.com/yanqian/location-insights/internal/infra/config"
	httpiface "github.com/yanqian/location-insights/internal/interface/http"
	"github.com/yanqian/location-insights/pkg/logger"
)

func initializeApp(ctx context.Context) (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		bootstrap.PipelineSet,
		bootstrap.ProvideServerResultStore,
		bootstrap.AuthSet,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
