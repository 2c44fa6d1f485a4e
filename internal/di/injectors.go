//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"smd/internal"
	"smd/internal/alerts"
	"smd/internal/capture"
	"smd/internal/controllers"
	"smd/internal/incidents"
	"smd/internal/providers"
	"smd/internal/statistic"
	"smd/internal/storage"
	"smd/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewSessionCounterHolder,
		ProvideSessionCounter,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,

		alerts.NewAlertSinks,
		alerts.NewThrottler,

		statistic.NewZstdCompressor,
		ProvideStatsArchive,
		statistic.NewPreferencesManager,

		storage.NewSnapshotStore,
		incidents.NewComposer,

		ProvideMonitorService,
		ProvideSessionReader,
		capture.NewPipeline,

		statistic.NewScheduler,
		controllers.NewApiController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}
